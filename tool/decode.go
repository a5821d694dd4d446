package tool

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode converts model supplied arguments into a typed struct. Field names
// follow `json` tags and numbers are converted between widths (JSON numbers
// arrive as float64).
func Decode(args map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("building argument decoder: %w", err)
	}

	if err := dec.Decode(args); err != nil {
		return fmt.Errorf("decoding arguments: %w", err)
	}

	return nil
}
