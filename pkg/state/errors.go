package state

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// Effect and model-output failures. All of them reject the whole effect batch.
var (
	ErrMalformedModelOutput = errors.New("malformed model output")
	ErrUnsupportedEffect    = errors.New("unsupported effect")
	ErrUnknownEntity        = errors.New("unknown entity")
	ErrInvalidEffect        = errors.New("invalid effect")

	// ErrModelTimeout is a narrator that did not finish in time. The turn
	// treats it like malformed output.
	ErrModelTimeout = errors.New("model timeout")
)

// Error codes attached to oops errors.
const (
	CodeMalformedModelOutput = "MALFORMED_MODEL_OUTPUT"
	CodeUnsupportedEffect    = "UNSUPPORTED_EFFECT"
	CodeUnknownEntity        = "UNKNOWN_ENTITY"
	CodeInvalidEffect        = "INVALID_EFFECT"
	CodeModelTimeout         = "MODEL_TIMEOUT"
)

// IsRejection reports whether err should reject an effect batch and count as a
// parse failure for the turn.
func IsRejection(err error) bool {
	return errors.Is(err, ErrMalformedModelOutput) ||
		errors.Is(err, ErrUnsupportedEffect) ||
		errors.Is(err, ErrUnknownEntity) ||
		errors.Is(err, ErrInvalidEffect) ||
		errors.Is(err, ErrModelTimeout)
}

// Malformed wraps ErrMalformedModelOutput with a formatted reason.
func Malformed(format string, args ...any) error {
	return malformed(format, args...)
}

// ModelTimeout wraps ErrModelTimeout for a narrator that ran past limit.
func ModelTimeout(limit time.Duration) error {
	return oops.In("narrator").Code(CodeModelTimeout).With("timeout", limit.String()).
		Wrapf(ErrModelTimeout, "no complete reply within %s", limit)
}

func unknownNPC(name string) error {
	return oops.In("state").Code(CodeUnknownEntity).With("npc", name).
		Wrapf(ErrUnknownEntity, "npc %q", name)
}

func unknownItem(name string) error {
	return oops.In("state").Code(CodeUnknownEntity).With("item", name).
		Wrapf(ErrUnknownEntity, "item %q not in inventory", name)
}

func unknownScene(id string) error {
	return oops.In("state").Code(CodeUnknownEntity).With("scene", id).
		Wrapf(ErrUnknownEntity, "scene %q", id)
}

func unsupported(kind string) error {
	return oops.In("effects").Code(CodeUnsupportedEffect).With("kind", kind).
		Wrapf(ErrUnsupportedEffect, "kind %q", kind)
}

func malformed(format string, args ...any) error {
	return oops.In("effects").Code(CodeMalformedModelOutput).
		Wrapf(ErrMalformedModelOutput, format, args...)
}

func invalid(kind Kind, format string, args ...any) error {
	return oops.In("effects").Code(CodeInvalidEffect).With("kind", string(kind)).
		Wrapf(ErrInvalidEffect, format, args...)
}

func withIndex(err error, i int) error {
	return oops.With("index", i).Wrapf(err, "effect %d", i)
}
