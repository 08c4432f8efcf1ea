package postgresadapter

import (
	"context"

	"github.com/google/uuid"
)

// UUIDGenerator creates identifiers for events, notifications and tasks.
type UUIDGenerator struct{}

func (UUIDGenerator) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
