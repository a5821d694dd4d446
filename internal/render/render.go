// Package render prints markdown itineraries for terminals.
package render

import (
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

const defaultWidth = 100

// Markdown renders markdown with glamour when out is a terminal and returns
// it unchanged otherwise.
func Markdown(out io.Writer, markdown string) (string, error) {
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return markdown, nil
	}

	width := defaultWidth
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		width = w
	}

	return Styled(markdown, width)
}

// Styled renders markdown with the auto-detected glamour style wrapped at
// width columns.
func Styled(markdown string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}

	return r.Render(markdown)
}
