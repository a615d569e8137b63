package session

import "errors"

var (
	// ErrSessionConflict indicates a live session already exists for the
	// customer. The existing session is left untouched.
	ErrSessionConflict = errors.New("a session is already open for this customer")

	// ErrEmptyBasket indicates checkout was requested with nothing in the
	// basket. The session stays in Conversing.
	ErrEmptyBasket = errors.New("cannot check out an empty basket")

	// ErrCheckoutFailed indicates the purchase write failed and was rolled
	// back. The basket is intact and checkout is safe to retry.
	ErrCheckoutFailed = errors.New("checkout failed, basket preserved")

	// ErrSessionClosed indicates the session has ended and accepts no
	// further turns.
	ErrSessionClosed = errors.New("session is closed")

	// ErrTurnInProgress indicates a turn is already being processed for
	// this session. Turns within one session are strictly sequential.
	ErrTurnInProgress = errors.New("a turn is already in progress")
)
