package agent

import (
	"errors"

	"github.com/shreyansh232/planfirst/internal/search"
	"github.com/shreyansh232/planfirst/internal/tripstore"
)

var (
	// ErrGenerationInvalid fires when the generator's output still fails
	// schema validation after the one internal correction retry.
	ErrGenerationInvalid = errors.New("agent: generation output invalid")

	// ErrStagnation fires when two consecutive clarify turns return the
	// same nonzero number of outstanding questions; the loop is not
	// converging and the third call refuses to run.
	ErrStagnation = errors.New("agent: clarification not converging")

	// ErrWrongPhase fires when an entry point is called against a trip
	// whose current phase does not accept it.
	ErrWrongPhase = errors.New("agent: operation not valid for current phase")
)

// ErrorCode maps an orchestrator error to the stable code carried by the
// stream's error event and the HTTP error body.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, search.ErrToolUnavailable):
		return "TOOL_UNAVAILABLE"
	case errors.Is(err, ErrGenerationInvalid):
		return "GENERATION_INVALID"
	case errors.Is(err, tripstore.ErrConcurrentPhaseInProgress):
		return "CONCURRENT_PHASE_IN_PROGRESS"
	case errors.Is(err, tripstore.ErrVersionAlreadyFinalized):
		return "VERSION_ALREADY_FINALIZED"
	case errors.Is(err, ErrStagnation):
		return "STAGNATION"
	case errors.Is(err, ErrWrongPhase):
		return "WRONG_PHASE"
	case errors.Is(err, tripstore.ErrTripExists):
		return "TRIP_EXISTS"
	case errors.Is(err, tripstore.ErrNotFound):
		return "NOT_FOUND"
	default:
		return "INTERNAL"
	}
}
