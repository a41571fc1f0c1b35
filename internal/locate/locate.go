package locate

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/field-dispatch/internal/geo"
	"github.com/example/field-dispatch/internal/models"
)

// Provider produces a single GPS fix from whatever positioning API the
// host runtime offers. Concrete variants are chosen at composition time;
// business logic never inspects the runtime itself.
type Provider interface {
	Current(ctx context.Context) (models.Coordinates, error)
}

// Kind classifies why a capture failed so the operator knows whether to
// retry, grant a permission, or escalate.
type Kind string

const (
	KindServicesDisabled Kind = "services-disabled"
	KindPermissionDenied Kind = "permission-denied"
	KindCaptureFailed    Kind = "capture-failed"
	KindOutOfRange       Kind = "out-of-range"
)

// Error is the one failure type crossing the capture boundary.
type Error struct {
	Kind  Kind
	Cause string
}

func (e *Error) Error() string {
	if e.Cause == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Cause)
}

func failed(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Sprintf(format, args...)}
}

// Capture asks the provider for one fix and validates it. Degenerate
// (0,0) readings and out-of-range values are rejected, never stored.
func Capture(ctx context.Context, p Provider) (models.Coordinates, error) {
	c, err := p.Current(ctx)
	if err != nil {
		var le *Error
		if errors.As(err, &le) {
			return models.Coordinates{}, le
		}
		return models.Coordinates{}, failed(KindCaptureFailed, "%v", err)
	}
	if !geo.Valid(c) {
		return models.Coordinates{}, failed(KindOutOfRange, "lat=%f lon=%f", c.Latitude, c.Longitude)
	}
	return c, nil
}
