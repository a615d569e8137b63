// Package keyword provides a deterministic rule-based interpreter. It is the
// fallback when no language-model backend is configured or reachable.
package keyword

import (
	"context"
	"strconv"
	"strings"

	"github.com/ladleworks/pantry/pkg/intent"
)

// Interpreter parses utterances with a small verb-first grammar:
//
//	find|search|suggest <free text>
//	add [<n>] <meal-id>
//	remove|drop [<n>] <meal-id>
//	set <meal-id> [to] <n>
//	swap|substitute <ingredient-id> [for|with] <free text>
//	checkout
//	bye|done|quit|end
type Interpreter struct{}

func NewInterpreter() *Interpreter { return &Interpreter{} }

func (i *Interpreter) Interpret(_ context.Context, utterance string) (*intent.Intent, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(utterance)))
	if len(fields) == 0 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	verb, rest := fields[0], fields[1:]

	switch verb {
	case "find", "search", "suggest":
		if len(rest) == 0 {
			return nil, intent.UnrecognizedError{Utterance: utterance}
		}
		return &intent.Intent{Kind: intent.KindSearchMeals, Query: strings.Join(rest, " ")}, nil

	case "add":
		return parseAdd(utterance, rest)

	case "remove", "drop":
		return parseRemove(utterance, rest)

	case "set":
		return parseSet(utterance, rest)

	case "swap", "substitute":
		return parseSwap(utterance, rest)

	case "checkout":
		return &intent.Intent{Kind: intent.KindCheckout}, nil

	case "bye", "goodbye", "done", "quit", "end":
		return &intent.Intent{Kind: intent.KindEndSession}, nil
	}

	return nil, intent.UnrecognizedError{Utterance: utterance}
}

func parseAdd(utterance string, rest []string) (*intent.Intent, error) {
	if len(rest) == 0 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	quantity := 1
	if n, err := strconv.Atoi(rest[0]); err == nil {
		if len(rest) < 2 {
			return nil, intent.UnrecognizedError{Utterance: utterance}
		}
		quantity = n
		rest = rest[1:]
	}

	return &intent.Intent{Kind: intent.KindAddItem, MealID: rest[0], Quantity: quantity}, nil
}

func parseRemove(utterance string, rest []string) (*intent.Intent, error) {
	if len(rest) == 0 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	quantity := 0
	if n, err := strconv.Atoi(rest[0]); err == nil {
		if len(rest) < 2 {
			return nil, intent.UnrecognizedError{Utterance: utterance}
		}
		quantity = n
		rest = rest[1:]
	}

	return &intent.Intent{Kind: intent.KindRemoveItem, MealID: rest[0], Quantity: quantity}, nil
}

func parseSet(utterance string, rest []string) (*intent.Intent, error) {
	if len(rest) >= 3 && rest[1] == "to" {
		rest = []string{rest[0], rest[2]}
	}
	if len(rest) < 2 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	n, err := strconv.Atoi(rest[1])
	if err != nil {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	return &intent.Intent{Kind: intent.KindAdjustQuantity, MealID: rest[0], Quantity: n}, nil
}

func parseSwap(utterance string, rest []string) (*intent.Intent, error) {
	if len(rest) < 2 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	source := rest[0]
	rest = rest[1:]
	if rest[0] == "for" || rest[0] == "with" {
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	return &intent.Intent{
		Kind:         intent.KindSubstitute,
		IngredientID: source,
		Query:        strings.Join(rest, " "),
	}, nil
}

func (i *Interpreter) Close() error { return nil }
