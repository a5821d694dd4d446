// Package client is a Go client for the tripmesh HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/hupe1980/tripmesh/planner"
)

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
}

// Client calls a tripmesh server.
type Client struct {
	baseURL string
	opts    Options
}

// APIError is returned for non-2xx responses.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("tripmesh: HTTP %d: %s", e.StatusCode, e.Message)
}

// Result is the outcome of Plan.
type Result struct {
	Itinerary string
	// ItineraryID is set when the server stored the itinerary.
	ItineraryID string
}

// New creates a client for baseURL (e.g. http://localhost:8080).
func New(baseURL string, optFns ...func(o *Options)) *Client {
	opts := Options{
		HTTPClient: &http.Client{Timeout: 6 * time.Minute},
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Client{baseURL: strings.TrimRight(baseURL, "/"), opts: opts}
}

// Plan sends req to POST /plan.
func (c *Client) Plan(ctx context.Context, req planner.TripRequest) (Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Result{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/plan", bytes.NewReader(body))
	if err != nil {
		return Result{}, err
	}

	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return Result{}, fmt.Errorf("tripmesh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, decodeError(resp)
	}

	var out planner.PlanResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, fmt.Errorf("tripmesh: decode response: %w", err)
	}

	return Result{Itinerary: out.Itinerary, ItineraryID: resp.Header.Get("X-Itinerary-ID")}, nil
}

// Itinerary downloads a stored itinerary.
func (c *Client) Itinerary(ctx context.Context, id string) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/itineraries/"+id, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.opts.HTTPClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("tripmesh: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	return string(data), nil
}

func decodeError(resp *http.Response) error {
	var body struct {
		Error string `json:"error"`
	}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	msg := strings.TrimSpace(string(data))
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		msg = body.Error
	}

	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
