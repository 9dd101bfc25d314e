package credentials

import (
	"golang.org/x/crypto/bcrypt"
)

// Hasher hashes and verifies local passwords with bcrypt.
// The cost is fixed at construction so the work factor is a deployment
// decision, not ambient state.
type Hasher struct {
	cost int
}

func NewHasher(cost int) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost}
}

// Hash returns a salted bcrypt digest of password. Two hashes of the
// same password differ but both verify.
func (h *Hasher) Hash(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), h.cost)
	if err != nil {
		return "", err
	}
	return string(bytes), nil
}

// Verify reports whether password matches the stored digest. A malformed
// digest verifies as false rather than surfacing an error.
func (h *Hasher) Verify(password, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(password)) == nil
}
