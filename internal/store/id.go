package store

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

// IDGenerator produces opaque unique identifiers. Projects, steps, and
// subtasks all share one id type and one generation strategy.
type IDGenerator func() string

// NewID is the default IDGenerator: a random UUID when crypto randomness
// is available, otherwise a pseudo-random string concatenated with the
// current timestamp to keep collision probability acceptable for a
// client-only store.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Sprintf("%x-%d", rand.Int63(), time.Now().UnixMilli())
	}
	return id.String()
}
