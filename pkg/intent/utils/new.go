// Package intentutils provides factory helpers for constructing interpreters
// from configuration.
package intentutils

import (
	"fmt"

	"github.com/ladleworks/pantry/pkg/intent"
	"github.com/ladleworks/pantry/pkg/intent/keyword"
	"github.com/ladleworks/pantry/pkg/intent/openai"
)

// NewInterpreterOpts holds the options for creating an interpreter.
type NewInterpreterOpts struct {
	ProviderType string
	BaseURL      string
	APIKey       string
	Model        string
}

// NewInterpreter creates an interpreter for the given provider type. The
// openai provider is wrapped so the keyword parser answers while the API is
// unreachable.
func NewInterpreter(opts NewInterpreterOpts) (intent.Interpreter, error) {
	switch opts.ProviderType {
	case "keyword":
		return keyword.NewInterpreter(), nil
	case "openai":
		primary, err := openai.NewInterpreter(openai.Config{
			BaseURL: opts.BaseURL,
			APIKey:  opts.APIKey,
			Model:   opts.Model,
		})
		if err != nil {
			return nil, err
		}
		return intent.NewFallback(primary, keyword.NewInterpreter()), nil
	}

	return nil, fmt.Errorf("unknown interpreter provider type: %s", opts.ProviderType)
}
