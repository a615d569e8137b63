package intent

import (
	"context"
	"errors"
)

// Fallback tries a primary interpreter and, when the backend is unreachable,
// retries the utterance against a secondary one. It is how the engine stays
// usable with a deterministic parser while a language-model backend is down.
type Fallback struct {
	primary   Interpreter
	secondary Interpreter
}

func NewFallback(primary, secondary Interpreter) *Fallback {
	return &Fallback{primary: primary, secondary: secondary}
}

func (f *Fallback) Interpret(ctx context.Context, utterance string) (*Intent, error) {
	got, err := f.primary.Interpret(ctx, utterance)
	if err == nil {
		return got, nil
	}
	if !errors.Is(err, ErrUnavailable) {
		return nil, err
	}

	return f.secondary.Interpret(ctx, utterance)
}

func (f *Fallback) Close() error {
	return errors.Join(f.primary.Close(), f.secondary.Close())
}
