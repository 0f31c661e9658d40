package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/npezzotti/go-whiteboard/internal/types"
)

const (
	// MaxMessageSize is the read limit applied to every frame by both the
	// relay and the sync client.
	MaxMessageSize = 1 << 20

	// frameReserve is the part of a frame kept free of elements for the
	// envelope and an init-state participant list.
	frameReserve = 64 << 10

	// MaxCollectionSize bounds the JSON encoding of a room's element
	// collection so that init-state and element-update frames stay under
	// MaxMessageSize.
	MaxCollectionSize = MaxMessageSize - frameReserve

	MaxNameLength  = 64
	MaxColorLength = 32
)

var ErrCollectionTooLarge = errors.New("element collection too large")

// CheckCollectionSize fails with ErrCollectionTooLarge when elements
// encode to more than limit bytes.
func CheckCollectionSize(elements []types.Element, limit int) error {
	raw, err := json.Marshal(nonNil(elements))
	if err != nil {
		return fmt.Errorf("encode collection: %w", err)
	}
	if len(raw) > limit {
		return fmt.Errorf("%w: %d bytes exceeds %d", ErrCollectionTooLarge, len(raw), limit)
	}
	return nil
}

func validateIdentity(user types.Identity) error {
	if len(user.Name) > MaxNameLength {
		return fmt.Errorf("%w: name longer than %d bytes", ErrInvalidMessage, MaxNameLength)
	}
	if len(user.Color) > MaxColorLength {
		return fmt.Errorf("%w: color longer than %d bytes", ErrInvalidMessage, MaxColorLength)
	}
	return nil
}
