package models

import "errors"

// Domain error taxonomy. Callers classify with errors.Is; the HTTP layer maps
// these to status codes.
var (
	// ErrPoolNotFound: the referenced pool does not exist.
	ErrPoolNotFound = errors.New("pool not found")

	// ErrPoolNotOpen: bet placement against a pool that is not accepting
	// bets (closed, resolving, resolved, or outside its open window).
	ErrPoolNotOpen = errors.New("pool not open for betting")

	// ErrPoolAlreadyResolved: a second settlement attempt on a pool that is
	// already RESOLVING or RESOLVED. Never a silent no-op; callers can tell
	// "already done" from "done now".
	ErrPoolAlreadyResolved = errors.New("pool already resolved")

	// ErrPoolStillOpen: settlement attempted against an OPEN pool when
	// settlement is not configured to perform the close itself.
	ErrPoolStillOpen = errors.New("pool still open for betting")

	// ErrInvalidBetAmount: bet amount non-positive or outside the pool's
	// [minBet, maxBet] bounds.
	ErrInvalidBetAmount = errors.New("invalid bet amount")

	// ErrChoiceNotFound: the referenced choice does not belong to the pool.
	ErrChoiceNotFound = errors.New("choice not found in pool")

	// ErrUserNotFound: a bettor referenced by a settling pool has no streak
	// row. Fatal to that settlement transaction; the whole transaction rolls
	// back rather than paying out partially.
	ErrUserNotFound = errors.New("user streak state not found")
)
