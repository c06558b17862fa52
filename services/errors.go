package services

import "errors"

// Shared errors used across services and HTTP mapping.
var (
	ErrNotFound = errors.New("requested resource not found")

	// Validation and business-rule errors, rejected before any mutation.
	ErrValidationFailed      = errors.New("validation failed")
	ErrPlayerNameRequired    = errors.New("player name is required")
	ErrSessionNameRequired   = errors.New("session name is required")
	ErrScoreNegative         = errors.New("scores must not be negative")
	ErrPlayersNotDistinct    = errors.New("match players must be distinct")
	ErrDoublesPlayersMissing = errors.New("doubles match requires four players")
	ErrRoundOrderInvalid     = errors.New("round number and match order must be positive")
	ErrMatchAlreadyCompleted = errors.New("match result already recorded")
	ErrMatchNotCompleted     = errors.New("match has no recorded result")
	ErrMatchNotInSession     = errors.New("match does not belong to this session")
	ErrDoublesEditForbidden  = errors.New("doubles match results cannot be corrected")
	ErrSessionNotActive      = errors.New("session is not active")
	ErrSessionNotCompleted   = errors.New("session is not completed")
	ErrSessionNotLatest      = errors.New("only the most recent completed session can be deleted")

	// Conflict errors.
	ErrRecalculationInProgress = errors.New("a recalculation is already in progress for this session")
	ErrPlayerNameConflict      = errors.New("player name is already in use")
	ErrMatchSlotConflict       = errors.New("a match already occupies this round and order")

	// Entity-specific not-found errors.
	ErrPlayerNotFound     = errors.New("player not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrDoubleTeamNotFound = errors.New("double team not found")
)
