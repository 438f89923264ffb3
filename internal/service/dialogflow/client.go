package dialogflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// DefaultEndpoint is the public Dialogflow ES API root.
const DefaultEndpoint = "https://dialogflow.googleapis.com/v2"

// DefaultLanguageCode is sent with every query.
const DefaultLanguageCode = "en"

var (
	ErrTokenAcquisition  = errors.New("token acquisition failed")
	ErrNetwork           = errors.New("intent request failed")
	ErrMalformedResponse = errors.New("malformed intent response")
)

// TokenSource yields the bearer token attached to each request.
type TokenSource interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// Config describes the agent the client talks to.
type Config struct {
	ProjectID    string
	LanguageCode string
	Endpoint     string
}

// Client calls the detectIntent method of a Dialogflow agent.
type Client struct {
	cfg        Config
	tokens     TokenSource
	httpClient *http.Client
}

// NewClient returns a Client. A nil httpClient means http.DefaultClient,
// which carries no timeout.
func NewClient(cfg Config, tokens TokenSource, httpClient *http.Client) *Client {
	if cfg.LanguageCode == "" {
		cfg.LanguageCode = DefaultLanguageCode
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{cfg: cfg, tokens: tokens, httpClient: httpClient}
}

type textInput struct {
	Text         string `json:"text"`
	LanguageCode string `json:"languageCode"`
}

type queryInput struct {
	Text textInput `json:"text"`
}

type detectIntentRequest struct {
	QueryInput queryInput `json:"queryInput"`
}

type detectIntentResponse struct {
	QueryResult *struct {
		FulfillmentText string `json:"fulfillmentText"`
	} `json:"queryResult"`
}

// URL returns the detectIntent URL for sessionID.
func (c *Client) URL(sessionID string) string {
	return fmt.Sprintf("%s/projects/%s/agent/sessions/%s:detectIntent",
		c.cfg.Endpoint, url.PathEscape(c.cfg.ProjectID), url.PathEscape(sessionID))
}

// DetectIntent sends text for sessionID and returns the fulfillment text,
// which is empty when the agent produced none.
func (c *Client) DetectIntent(ctx context.Context, sessionID, text string) (string, error) {
	if c.tokens == nil {
		return "", ErrTokenAcquisition
	}
	token, err := c.tokens.GetAccessToken(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTokenAcquisition, err)
	}
	if token == "" {
		return "", ErrTokenAcquisition
	}

	payload, err := json.Marshal(detectIntentRequest{
		QueryInput: queryInput{Text: textInput{Text: text, LanguageCode: c.cfg.LanguageCode}},
	})
	if err != nil {
		return "", errors.Wrap(err, "encode intent request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL(sessionID), bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Warn().Int("status", resp.StatusCode).Str("session_id", sessionID).Msg("dialogflow rejected request")
		return "", errors.Wrapf(ErrNetwork, "status %d", resp.StatusCode)
	}

	var decoded detectIntentResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if decoded.QueryResult == nil {
		return "", nil
	}
	return decoded.QueryResult.FulfillmentText, nil
}
