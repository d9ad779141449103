package stickers

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText    Kind = "text"
	KindDrawing Kind = "drawing"
)

const (
	MaxNameLength    = 50
	MaxMessageLength = 500
)

var (
	ErrNameMissing    = errors.New("sticker name missing")
	ErrNameTooLong    = errors.New("sticker name too long")
	ErrInvalidKind    = errors.New("sticker kind must be text or drawing")
	ErrMessageMissing = errors.New("sticker message missing")
	ErrMessageTooLong = errors.New("sticker message too long")
	ErrContentClash   = errors.New("sticker can hold either a message or a drawing, not both")
)

// Sticker is a single visitor board entry, a short text note or a
// freehand canvas drawing. ID and CreatedAt are assigned by the store
// on insert and never by clients; entries are immutable once created.
type Sticker struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Kind      Kind      `json:"kind"`
	Message   string    `json:"message,omitempty"`
	Drawing   string    `json:"drawing,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Validate checks a submission before it is allowed anywhere near the
// store. Exactly one of Message/Drawing must be set, matching Kind;
// drawings must decode and contain at least one visible pixel.
func (s *Sticker) Validate() error {
	if s.Name == "" {
		return ErrNameMissing
	}
	if len(s.Name) > MaxNameLength {
		return ErrNameTooLong
	}

	switch s.Kind {
	case KindText:
		if s.Drawing != "" {
			return ErrContentClash
		}
		if s.Message == "" {
			return ErrMessageMissing
		}
		if len(s.Message) > MaxMessageLength {
			return ErrMessageTooLong
		}
	case KindDrawing:
		if s.Message != "" {
			return ErrContentClash
		}
		return ValidateDrawing(s.Drawing)
	default:
		return ErrInvalidKind
	}

	return nil
}
