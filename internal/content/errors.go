package content

import (
	"context"
	"errors"
	"fmt"

	"github.com/almarpuit/site/internal/repositories"
)

var (
	// ErrUnauthenticated is returned by write paths invoked without a session.
	ErrUnauthenticated = errors.New("content: authentication required")
	// ErrRegistryMissing signals that the repository registry dependency is absent.
	ErrRegistryMissing = errors.New("content: repository registry is not configured")
	// ErrNoRequirement is returned by item operations when the section has no requirement record.
	ErrNoRequirement = errors.New("content: no requirement found")
	// ErrItemIndex is returned when an item index is out of range.
	ErrItemIndex = errors.New("content: item index out of range")
	// ErrCardNotFound is returned when a milestone card id is unknown.
	ErrCardNotFound = errors.New("content: milestone card not found")
	// ErrStaleOrder is returned when a reorder does not list every card of the section exactly once.
	ErrStaleOrder = errors.New("content: milestone order does not match the stored cards")
	// ErrSectionUnavailable is returned by writes when the section could not be resolved.
	ErrSectionUnavailable = errors.New("content: section unavailable")
)

// SaveError reports a failed remote write. The local projection has already
// been reconciled with the store when it is returned.
type SaveError struct {
	Op  string
	Err error
}

func (e *SaveError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("content: %s: %v", e.Op, e.Err)
}

func (e *SaveError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// UserMessage converts an error into an editor facing message.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrUnauthenticated):
		return "Sessioon on aegunud. Palun logige uuesti sisse."
	case errors.Is(err, ErrNoRequirement):
		return "Nõuete kirjet ei leitud."
	case errors.Is(err, ErrItemIndex):
		return "Valitud rida ei ole enam olemas."
	case errors.Is(err, ErrCardNotFound):
		return "Verstaposti kaarti ei leitud."
	case errors.Is(err, ErrStaleOrder):
		return "Kaarte muudeti vahepeal. Järjekord laaditi uuesti, palun proovige uuesti."
	case errors.Is(err, context.DeadlineExceeded), repositories.IsUnavailable(err):
		return "Andmebaas ei ole hetkel kättesaadav. Palun proovige hiljem uuesti."
	case repositories.IsConflict(err):
		return "Sisu muudeti samal ajal mujal. Andmed laaditi uuesti."
	}
	var saveErr *SaveError
	if errors.As(err, &saveErr) {
		return "Muudatuste salvestamine ebaõnnestus."
	}
	return "Tekkis viga. Palun proovige uuesti."
}
