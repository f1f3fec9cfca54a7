package ports

// PasswordHasher performs one-way password hashing and verification.
type PasswordHasher interface {
	Hash(plain string) (string, error)
	// Verify reports whether plain matches digest. Malformed digests yield false.
	Verify(plain, digest string) bool
}

// TokenIssuer creates signed, time-bound identity tokens.
type TokenIssuer interface {
	Issue(subject string) (string, error)
}

// TokenValidator checks a token and returns its subject. Every failure,
// whatever the cause, is reported as ok == false.
type TokenValidator interface {
	Validate(token string) (subject string, ok bool)
}

type TokenService interface {
	TokenIssuer
	TokenValidator
}
