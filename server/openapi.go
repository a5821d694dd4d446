package server

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/hupe1980/tripmesh/planner"
)

//go:embed openapi.yaml
var openapiSpec []byte

// OpenAPISpec returns the embedded API document.
func OpenAPISpec() []byte { return openapiSpec }

// tripSchema validates POST /plan bodies against the embedded document.
type tripSchema struct {
	schema *openapi3.Schema
}

func loadTripSchema() (*tripSchema, error) {
	loader := openapi3.NewLoader()

	doc, err := loader.LoadFromData(openapiSpec)
	if err != nil {
		return nil, fmt.Errorf("load openapi document: %w", err)
	}

	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("invalid openapi document: %w", err)
	}

	item := doc.Paths.Value("/plan")
	if item == nil || item.Post == nil || item.Post.RequestBody == nil {
		return nil, errors.New("openapi document: missing POST /plan request body")
	}

	media := item.Post.RequestBody.Value.Content.Get("application/json")
	if media == nil || media.Schema == nil {
		return nil, errors.New("openapi document: missing application/json schema for POST /plan")
	}

	return &tripSchema{schema: media.Schema.Value}, nil
}

// decode validates body and decodes it. Failures wrap planner.ErrInvalidRequest.
func (s *tripSchema) decode(body []byte) (planner.TripRequest, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return planner.TripRequest{}, fmt.Errorf("%w: malformed JSON: %v", planner.ErrInvalidRequest, err)
	}

	if err := s.schema.VisitJSON(raw); err != nil {
		return planner.TripRequest{}, fmt.Errorf("%w: %s", planner.ErrInvalidRequest, schemaMessage(err))
	}

	var req planner.TripRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return planner.TripRequest{}, fmt.Errorf("%w: %v", planner.ErrInvalidRequest, err)
	}

	return req, nil
}

func schemaMessage(err error) string {
	var se *openapi3.SchemaError
	if !errors.As(err, &se) {
		return err.Error()
	}

	if path := strings.Join(se.JSONPointer(), "."); path != "" {
		return path + ": " + se.Reason
	}

	return se.Reason
}
