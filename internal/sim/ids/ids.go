package ids

import (
	"encoding/hex"
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// ID identifies an entity. The high 32 bits carry the Unix-seconds creation
// time so IDs sort roughly by age; the low 32 bits are random.
type ID uint64

func New() ID {
	return At(time.Now(), rand.Uint32())
}

func At(t time.Time, low uint32) ID {
	return ID(uint64(uint32(t.Unix()))<<32 | uint64(low))
}

// CreatedAt recovers the creation timestamp embedded in the ID.
func (id ID) CreatedAt() time.Time {
	return time.Unix(int64(uint64(id)>>32), 0)
}

func (id ID) String() string {
	return strconv.FormatUint(uint64(id), 16)
}

func Parse(s string) (ID, error) {
	n, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return 0, fmt.Errorf("parse id %q: %w", s, err)
	}
	return ID(n), nil
}

// NewToken mints an opaque client identity token: a random UUID as 32
// plain hex chars.
func NewToken() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("mint token: %w", err)
	}
	return hex.EncodeToString(u[:]), nil
}
