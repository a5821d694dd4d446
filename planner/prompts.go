package planner

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
)

//go:embed prompts/*.md
var embeddedPrompts embed.FS

// Prompts holds the instruction text of every agent in the hierarchy.
type Prompts struct {
	Coordinator string
	Inspiration string
	Activities  string
	Itinerary   string
}

// Prompt file names, shared by the embedded set and override directories.
const (
	CoordinatorPromptFile = "coordinator.md"
	InspirationPromptFile = "inspiration.md"
	ActivitiesPromptFile  = "activities.md"
	ItineraryPromptFile   = "itinerary.md"
)

// DefaultPrompts returns the embedded instructions.
func DefaultPrompts() Prompts {
	p, err := LoadPrompts("")
	if err != nil {
		panic(fmt.Sprintf("planner: embedded prompts: %v", err))
	}

	return p
}

// LoadPrompts reads the instructions. Files present in dir replace the
// embedded ones; an empty dir uses the embedded set only.
func LoadPrompts(dir string) (Prompts, error) {
	base, err := fs.Sub(embeddedPrompts, "prompts")
	if err != nil {
		return Prompts{}, err
	}

	var override fs.FS
	if dir != "" {
		override = os.DirFS(dir)
	}

	read := func(name string) (string, error) {
		if override != nil {
			data, err := fs.ReadFile(override, name)
			if err == nil {
				return strings.TrimSpace(string(data)), nil
			}

			if !errors.Is(err, fs.ErrNotExist) {
				return "", fmt.Errorf("read prompt %s: %w", name, err)
			}
		}

		data, err := fs.ReadFile(base, name)
		if err != nil {
			return "", fmt.Errorf("read embedded prompt %s: %w", name, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	var p Prompts

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{CoordinatorPromptFile, &p.Coordinator},
		{InspirationPromptFile, &p.Inspiration},
		{ActivitiesPromptFile, &p.Activities},
		{ItineraryPromptFile, &p.Itinerary},
	} {
		text, err := read(f.name)
		if err != nil {
			return Prompts{}, err
		}

		*f.dst = text
	}

	return p, nil
}
