// Package suggest asks an external text-generation endpoint for maintenance
// suggestions. The generated text is passed through as-is inside a fixed
// shape; pxd never interprets it.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rileyhilliard/pxd/internal/config"
	"github.com/rileyhilliard/pxd/internal/errors"
	"github.com/rileyhilliard/pxd/internal/logger"
	"github.com/rileyhilliard/pxd/internal/metrics"
	"github.com/sony/gobreaker"
)

// maxResponseBytes caps how much of the endpoint's reply is read.
const maxResponseBytes = 1 << 20

// Request is what the caller wants suggestions about.
type Request struct {
	Topic   string `json:"topic"`
	Context string `json:"context,omitempty"`
}

// Item is one suggestion.
type Item struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Source string `json:"source"`
}

// Suggestions is the fixed-shape reply.
type Suggestions struct {
	Items       []Item    `json:"items"`
	GeneratedAt time.Time `json:"generated_at"`
}

// generateRequest is the body posted to the endpoint.
type generateRequest struct {
	Model  string `json:"model,omitempty"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

// Client calls the endpoint through a circuit breaker so a dead endpoint
// fails fast instead of holding requests for the full timeout.
type Client struct {
	endpoint string
	model    string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker
	log      logger.Logger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// New creates a Client from config. m may be nil.
func New(cfg config.SuggestConfig, log logger.Logger, m *metrics.Metrics) *Client {
	log = logger.Named(log, "suggest")
	c := &Client{
		endpoint: strings.TrimSpace(cfg.Endpoint),
		model:    cfg.Model,
		http:     &http.Client{Timeout: cfg.Timeout},
		log:      log,
		metrics:  m,
		now:      time.Now,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "suggest",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("breaker %s: %s -> %s", name, from, to)
		},
	})
	return c
}

// Enabled reports whether an endpoint is configured.
func (c *Client) Enabled() bool { return c.endpoint != "" }

// Suggest asks the endpoint about req.
func (c *Client) Suggest(ctx context.Context, req Request) (Suggestions, error) {
	req.Topic = strings.TrimSpace(req.Topic)
	if req.Topic == "" {
		return Suggestions{}, errors.NewInvalidInput("suggestions need a topic")
	}
	if !c.Enabled() {
		return Suggestions{}, errors.New(errors.ErrSuggest,
			"No suggestion endpoint configured",
			"Set suggest.endpoint in .pxd.yaml.")
	}

	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.generate(ctx, prompt(req))
	})
	if err != nil {
		if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
			c.metrics.SuggestRequest("open")
			return Suggestions{}, errors.WrapWithCode(err, errors.ErrSuggest,
				"Suggestion endpoint is failing, not calling it for now",
				"Wait a bit and try again.")
		}
		c.metrics.SuggestRequest("error")
		return Suggestions{}, err
	}
	c.metrics.SuggestRequest("ok")

	source := c.model
	if source == "" {
		source = c.endpoint
	}
	return Suggestions{
		Items: []Item{{
			Title:  "Suggestions: " + req.Topic,
			Body:   out.(string),
			Source: source,
		}},
		GeneratedAt: c.now(),
	}, nil
}

func prompt(req Request) string {
	if req.Context == "" {
		return req.Topic
	}
	return req.Topic + "\n\n" + req.Context
}

// generate posts the prompt and returns the generated text. A JSON reply
// with a "response" field yields that field; anything else is returned
// verbatim.
func (c *Client) generate(ctx context.Context, p string) (string, error) {
	body, err := json.Marshal(generateRequest{Model: c.model, Prompt: p})
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSuggest, "Couldn't encode the suggestion request", "")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSuggest,
			"Invalid suggestion endpoint "+c.endpoint,
			"Check suggest.endpoint in .pxd.yaml.")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSuggest,
			"Couldn't reach the suggestion endpoint",
			"Check that "+c.endpoint+" is up.")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrSuggest, "Couldn't read the suggestion reply", "")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", errors.New(errors.ErrSuggest,
			fmt.Sprintf("Suggestion endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))),
			"Check the endpoint's logs.")
	}

	var decoded struct {
		Response *string `json:"response"`
	}
	if json.Unmarshal(raw, &decoded) == nil && decoded.Response != nil {
		return strings.TrimSpace(*decoded.Response), nil
	}
	return strings.TrimSpace(string(raw)), nil
}
