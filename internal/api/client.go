// Package api wraps the authority's plain request/response endpoints: player
// registration and question submission. These are one-shot calls with no
// coordination; the push channel never acknowledges them.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/truthordare/gameclient/internal/identity"
	"github.com/truthordare/gameclient/internal/protocol"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL:    baseURL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

type createPlayerRequest struct {
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

type createPlayerResponse struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Age    int    `json:"age"`
	Gender string `json:"gender"`
}

// CreatePlayer registers a new player and returns the assigned identity. The
// caller persists it and joins the session; nothing is stored on failure.
func (c *Client) CreatePlayer(ctx context.Context, name string, age int, gender string) (*identity.LocalIdentity, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/api/players", createPlayerRequest{
		Name:   name,
		Age:    age,
		Gender: gender,
	})
	if err != nil {
		return nil, err
	}

	var resp createPlayerResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("decode player: %w", err)
	}

	return &identity.LocalIdentity{
		ID:     resp.ID,
		Name:   resp.Name,
		Age:    resp.Age,
		Gender: resp.Gender,
	}, nil
}

type createQuestionRequest struct {
	Text       string `json:"text"`
	Kind       string `json:"type"`
	Category   string `json:"category"`
	Difficulty int    `json:"difficulty"`
}

// CreateQuestion submits a new prompt definition to the shared pool.
func (c *Client) CreateQuestion(ctx context.Context, text, kind, category string, difficulty int) error {
	if text == "" {
		return fmt.Errorf("question text is required")
	}
	if !protocol.ValidKind(kind) {
		return fmt.Errorf("unknown question type %q", kind)
	}
	if !protocol.ValidCategory(category) {
		return fmt.Errorf("unknown category %q", category)
	}
	if difficulty < 1 || difficulty > 5 {
		return fmt.Errorf("difficulty must be between 1 and 5, got %d", difficulty)
	}

	_, err := c.doRequest(ctx, http.MethodPost, "/api/questions", createQuestionRequest{
		Text:       text,
		Kind:       kind,
		Category:   category,
		Difficulty: difficulty,
	})
	return err
}

func (c *Client) doRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &errResp) == nil && errResp.Message != "" {
			return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, errResp.Message)
		}
		return nil, fmt.Errorf("server error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}
