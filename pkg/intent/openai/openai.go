// Package openai implements the intent interpreter over OpenAI's Chat
// Completions API using tool calling. Each intent kind is exposed to the
// model as one tool; the first tool call in the response is mapped back to
// the intent union.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ladleworks/pantry/pkg/intent"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

const systemPrompt = `You are the intent router for a grocery meal assistant.
Map the shopper's message to exactly one tool call. Do not answer in prose.`

// Config holds the OpenAI interpreter configuration.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Interpreter talks to the Chat Completions endpoint.
type Interpreter struct {
	config Config
	client *http.Client
}

func NewInterpreter(c Config) (*Interpreter, error) {
	if c.APIKey == "" {
		return nil, fmt.Errorf("openai interpreter requires an api key")
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Timeout == 0 {
		c.Timeout = 30 * time.Second
	}

	return &Interpreter{
		config: c,
		client: &http.Client{Timeout: c.Timeout},
	}, nil
}

type chatRequest struct {
	Model      string        `json:"model"`
	Messages   []chatMessage `json:"messages"`
	Tools      []tool        `json:"tools"`
	ToolChoice string        `json:"tool_choice"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type tool struct {
	Type     string       `json:"type"`
	Function toolFunction `json:"function"`
}

type toolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			ToolCalls []struct {
				Function struct {
					Name      string `json:"name"`
					Arguments string `json:"arguments"`
				} `json:"function"`
			} `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// toolArgs is the superset of every tool's argument schema.
type toolArgs struct {
	Query        string `json:"query"`
	MealID       string `json:"meal_id"`
	Quantity     int    `json:"quantity"`
	IngredientID string `json:"ingredient_id"`
	K            int    `json:"k"`
}

var tools = []tool{
	makeTool("search_meals", "Semantic search for meals matching a free-text craving or description.",
		`{"type":"object","properties":{"query":{"type":"string"},"k":{"type":"integer"}},"required":["query"]}`),
	makeTool("add_item", "Add a meal to the shopper's basket.",
		`{"type":"object","properties":{"meal_id":{"type":"string"},"quantity":{"type":"integer","default":1}},"required":["meal_id"]}`),
	makeTool("remove_item", "Remove a meal from the basket, entirely or by a partial quantity.",
		`{"type":"object","properties":{"meal_id":{"type":"string"},"quantity":{"type":"integer","description":"Omit to remove the whole line"}},"required":["meal_id"]}`),
	makeTool("adjust_quantity", "Set the absolute quantity of an existing basket line.",
		`{"type":"object","properties":{"meal_id":{"type":"string"},"quantity":{"type":"integer"}},"required":["meal_id","quantity"]}`),
	makeTool("substitute", "Find replacement ingredients for one the shopper wants to avoid.",
		`{"type":"object","properties":{"ingredient_id":{"type":"string"},"query":{"type":"string"}},"required":["ingredient_id","query"]}`),
	makeTool("checkout", "Finalize the basket and record the purchase.",
		`{"type":"object","properties":{}}`),
	makeTool("end_session", "End the shopping session without checking out.",
		`{"type":"object","properties":{}}`),
}

func makeTool(name, description, parameters string) tool {
	return tool{
		Type: "function",
		Function: toolFunction{
			Name:        name,
			Description: description,
			Parameters:  json.RawMessage(parameters),
		},
	}
}

func (i *Interpreter) Interpret(ctx context.Context, utterance string) (*intent.Intent, error) {
	body, err := json.Marshal(chatRequest{
		Model: i.config.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: utterance},
		},
		Tools:      tools,
		ToolChoice: "required",
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		i.config.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+i.config.APIKey)

	resp, err := i.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", intent.ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("%w: status %d: %s", intent.ErrUnavailable, resp.StatusCode, payload)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding chat response: %w", err)
	}

	if len(parsed.Choices) == 0 || len(parsed.Choices[0].Message.ToolCalls) == 0 {
		return nil, intent.UnrecognizedError{Utterance: utterance}
	}

	call := parsed.Choices[0].Message.ToolCalls[0].Function

	var args toolArgs
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("decoding tool arguments: %w", err)
		}
	}

	return mapCall(call.Name, args, utterance)
}

func mapCall(name string, args toolArgs, utterance string) (*intent.Intent, error) {
	switch name {
	case "search_meals":
		return &intent.Intent{Kind: intent.KindSearchMeals, Query: args.Query, K: args.K}, nil
	case "add_item":
		quantity := args.Quantity
		if quantity == 0 {
			quantity = 1
		}
		return &intent.Intent{Kind: intent.KindAddItem, MealID: args.MealID, Quantity: quantity}, nil
	case "remove_item":
		return &intent.Intent{Kind: intent.KindRemoveItem, MealID: args.MealID, Quantity: args.Quantity}, nil
	case "adjust_quantity":
		return &intent.Intent{Kind: intent.KindAdjustQuantity, MealID: args.MealID, Quantity: args.Quantity}, nil
	case "substitute":
		return &intent.Intent{Kind: intent.KindSubstitute, IngredientID: args.IngredientID, Query: args.Query}, nil
	case "checkout":
		return &intent.Intent{Kind: intent.KindCheckout}, nil
	case "end_session":
		return &intent.Intent{Kind: intent.KindEndSession}, nil
	}

	return nil, intent.UnrecognizedError{Utterance: utterance}
}

func (i *Interpreter) Close() error { return nil }
