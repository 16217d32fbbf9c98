package utils

import "golang.org/x/crypto/bcrypt"

// HashSecret returns a bcrypt hash of the operator bypass secret using the
// given cost.  Used by provisioning tooling; the running bot only verifies.
func HashSecret(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// VerifySecret safely compares a bcrypt hash against a candidate secret.
func VerifySecret(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
