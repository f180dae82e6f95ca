package bracket

import "errors"

// Error classes. Every domain error unwraps to exactly one of them.
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInvalidState  = errors.New("invalid state")
	ErrInvalidInput  = errors.New("invalid input")
	ErrUpstreamEmpty = errors.New("upstream empty")
)

type Error struct {
	Class error
	Code  string
	Msg   string
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Class }

func newError(class error, code, msg string) *Error {
	return &Error{Class: class, Code: code, Msg: msg}
}

var (
	ErrTournamentNotFound  = newError(ErrNotFound, "tournament_not_found", "tournament not found")
	ErrPairNotFound        = newError(ErrNotFound, "pair_not_found", "pair not found in the current stage of this tournament")
	ErrParticipantNotFound = newError(ErrNotFound, "participant_not_found", "participant not found in this tournament")
	ErrWinnerNotFound      = newError(ErrNotFound, "winner_not_found", "winner not found")
	ErrItemNotFound        = newError(ErrNotFound, "item_not_found", "item not found in the catalog")

	ErrDuplicateVote   = newError(ErrConflict, "duplicate_vote", "you have already voted in this pair")
	ErrDuplicateWinner = newError(ErrConflict, "duplicate_winner", "a winner is already recorded for this tournament")
	ErrAdvanceConflict = newError(ErrConflict, "advance_conflict", "tournament stage changed while advancing")
	ErrIntegrity       = newError(ErrConflict, "integrity_error", "the change conflicts with existing data")

	ErrTournamentCompleted    = newError(ErrInvalidState, "tournament_completed", "tournament is already completed")
	ErrTournamentNotCompleted = newError(ErrInvalidState, "tournament_not_completed", "tournament is not completed yet")
	ErrVotingClosed           = newError(ErrInvalidState, "voting_closed", "voting for the current stage has ended")
	ErrStageNotYetOver        = newError(ErrInvalidState, "stage_not_over", "the current stage has not ended yet")
	ErrNoPairsForStage        = newError(ErrInvalidState, "no_pairs_for_stage", "no pairs found for the current stage")
	ErrKindMismatch           = newError(ErrInvalidState, "kind_mismatch", "item kind does not match the tournament type")

	ErrInvalidVoteTarget = newError(ErrInvalidInput, "invalid_vote_target", "voted participant is not part of this pair")
	ErrInvalidFilter     = newError(ErrInvalidInput, "invalid_filter", "invalid candidate filter")
	ErrInvalidDuration   = newError(ErrInvalidInput, "invalid_duration", "stage duration must be between 1 and 8760 hours")
	ErrInvalidItemRef    = newError(ErrInvalidInput, "invalid_item_ref", "exactly one of set_id or minifigure_id must be set")
	ErrPoolTooLarge      = newError(ErrInvalidInput, "pool_too_large", "too many candidates match the filter")

	ErrNoCandidates = newError(ErrUpstreamEmpty, "no_candidates", "no participants match the criteria")
)

var classes = []error{ErrNotFound, ErrConflict, ErrInvalidState, ErrInvalidInput, ErrUpstreamEmpty}

// ClassOf returns the taxonomy class of err, or nil for errors outside it.
func ClassOf(err error) error {
	for _, c := range classes {
		if errors.Is(err, c) {
			return c
		}
	}
	return nil
}

// CodeOf returns the machine readable code of the first domain error in the chain.
func CodeOf(err error) string {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	switch ClassOf(err) {
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrInvalidState:
		return "invalid_state"
	case ErrInvalidInput:
		return "invalid_input"
	case ErrUpstreamEmpty:
		return "upstream_empty"
	}
	return "internal_error"
}
