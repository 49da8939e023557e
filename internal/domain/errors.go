package domain

import "fmt"

// ArenaError is the unified error type for the engine.
// Each error has a numeric code and human-readable message.
type ArenaError struct {
	Code    int
	Message string
}

// Error implements the error interface.
func (e *ArenaError) Error() string {
	return fmt.Sprintf("arena error %d: %s", e.Code, e.Message)
}

// Is makes wrapped ArenaError values match their catalog sentinel by code.
func (e *ArenaError) Is(target error) bool {
	t, ok := target.(*ArenaError)
	return ok && t.Code == e.Code
}

// NewArenaError creates a new ArenaError.
func NewArenaError(code int, msg string) *ArenaError {
	return &ArenaError{Code: code, Message: msg}
}

// WrapArenaError creates an ArenaError that includes a cause.
func WrapArenaError(code int, msg string, cause error) *ArenaError {
	return &ArenaError{Code: code, Message: fmt.Sprintf("%s: %v", msg, cause)}
}

// ---- Debate lifecycle errors (-32010 to -32039) ----

var (
	ErrInvalidTransition   = &ArenaError{Code: -32010, Message: "invalid debate state transition"}
	ErrInvalidParticipants = &ArenaError{Code: -32011, Message: "invalid participant list"}
	ErrDebateNotFound      = &ArenaError{Code: -32012, Message: "debate not found"}
	ErrDebateAlreadyDone   = &ArenaError{Code: -32013, Message: "debate already in a terminal state"}
	ErrOptimisticLock      = &ArenaError{Code: -32014, Message: "optimistic lock conflict: debate state was modified concurrently"}
	ErrDuplicateDebate     = &ArenaError{Code: -32015, Message: "debate already exists"}
	ErrInvalidRounds       = &ArenaError{Code: -32016, Message: "total rounds must be positive"}
	ErrDebateNotRunning    = &ArenaError{Code: -32017, Message: "debate is not running"}
)

// ---- Collaborator lookup errors (-32040 to -32069) ----

var (
	ErrUnknownAgent        = &ArenaError{Code: -32040, Message: "unknown agent"}
	ErrDocumentUnavailable = &ArenaError{Code: -32041, Message: "document unavailable"}
	ErrStatementNotFound   = &ArenaError{Code: -32042, Message: "statement not found"}
	ErrDuplicateAgent      = &ArenaError{Code: -32043, Message: "agent already exists"}
)

// ---- Inference errors (-32070 to -32099) ----

var (
	ErrInferenceUnavailable = &ArenaError{Code: -32070, Message: "inference unavailable after retries"}
	ErrInferenceRejected    = &ArenaError{Code: -32071, Message: "inference request rejected"}
	ErrEmptyCompletion      = &ArenaError{Code: -32072, Message: "inference returned no content"}
)

// ---- Round / debate execution errors (-32100 to -32129) ----

var (
	ErrDebateFailed = &ArenaError{Code: -32100, Message: "agent failure threshold exceeded"}
	ErrRoundAborted = &ArenaError{Code: -32101, Message: "round aborted before the barrier was reached"}
)

// ---- Store / Config errors (-32130 to -32159) ----

var (
	ErrStoreInit          = &ArenaError{Code: -32130, Message: "failed to initialize store"}
	ErrStoreQuery         = &ArenaError{Code: -32131, Message: "store query failed"}
	ErrPersistenceFailure = &ArenaError{Code: -32132, Message: "transcript write failed"}
	ErrConfigInvalid      = &ArenaError{Code: -32136, Message: "invalid configuration"}
)
