package auth

import "crypto/subtle"

// CredentialKind tags how a stored password is represented.
type CredentialKind int

const (
	// CredentialPlaintext is a legacy value written before hashing existed.
	CredentialPlaintext CredentialKind = iota + 1
	// CredentialHashed is a bcrypt hash.
	CredentialHashed
)

func (k CredentialKind) String() string {
	switch k {
	case CredentialPlaintext:
		return "plaintext"
	case CredentialHashed:
		return "hashed"
	default:
		return "unknown"
	}
}

// Credential is a stored password, verified according to its kind.
type Credential interface {
	Kind() CredentialKind
	Verify(plain string) bool
}

// PlaintextCredential is compared byte for byte in constant time.
type PlaintextCredential struct {
	value string
}

func (PlaintextCredential) Kind() CredentialKind { return CredentialPlaintext }

func (c PlaintextCredential) Verify(plain string) bool {
	return subtle.ConstantTimeCompare([]byte(c.value), []byte(plain)) == 1
}

// HashedCredential is verified with bcrypt.
type HashedCredential struct {
	hash string
}

func (HashedCredential) Kind() CredentialKind { return CredentialHashed }

func (c HashedCredential) Verify(plain string) bool {
	return ComparePassword(c.hash, plain) == nil
}

// ParseCredential classifies a stored password by hash-format detection.
// It returns false when nothing is stored.
func ParseCredential(stored string) (Credential, bool) {
	if stored == "" {
		return nil, false
	}
	if IsHash(stored) {
		return HashedCredential{hash: stored}, true
	}
	return PlaintextCredential{value: stored}, true
}
