package intent

import (
	"errors"
	"fmt"
)

// ErrUnavailable indicates the interpreter backend could not be reached.
var ErrUnavailable = errors.New("interpreter unavailable")

// UnrecognizedError indicates no intent could be extracted from an utterance.
type UnrecognizedError struct {
	Utterance string
}

func (e UnrecognizedError) Error() string {
	return fmt.Sprintf("no intent recognized in %q", e.Utterance)
}
