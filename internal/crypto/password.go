package crypto

import "golang.org/x/crypto/bcrypt"

// dummyHash is compared against when no account matches, so a failed login
// costs the same whether or not the name exists.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("gradebook-dummy-secret"), bcrypt.DefaultCost)

// MaxPasswordBytes is the longest secret bcrypt accepts.
const MaxPasswordBytes = 72

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

// BurnPasswordCheck performs a comparison that always fails.
func BurnPasswordCheck(password string) {
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
}
