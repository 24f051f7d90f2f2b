package security

import (
	"golang.org/x/crypto/bcrypt"

	"github.com/baechuer/real-time-ressys/services/account-service/internal/domain"
)

// MinBcryptCost is the lowest work factor the service will hash with.
const MinBcryptCost = 10

type BcryptHasher struct {
	cost int
}

// NewBcryptHasher clamps cost to at least MinBcryptCost.
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < MinBcryptCost {
		cost = MinBcryptCost
	}
	return &BcryptHasher{cost: cost}
}

func (h *BcryptHasher) Hash(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", domain.ErrHashFailed(err)
	}
	return string(b), nil
}

func (h *BcryptHasher) Compare(hash string, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}
