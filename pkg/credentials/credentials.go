// pkg/credentials/credentials.go
package credentials

import "golang.org/x/crypto/bcrypt"

// Hash hashes a secret (login password or 4-digit PIN) using bcrypt.
func Hash(secret string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(secret), bcrypt.DefaultCost)
	return string(bytes), err
}

// Verify checks whether a secret matches a stored digest.
func Verify(secret, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(secret)) == nil
}
