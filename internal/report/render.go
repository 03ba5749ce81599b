package report

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/glamour"
	"golang.org/x/term"
)

// fallbackWidth is used when the terminal size cannot be determined.
const fallbackWidth = 80

// Render writes markdown to out, styled through glamour when out is a
// terminal and verbatim when it is a pipe or file.
func Render(out *os.File, markdown string) error {
	fd := int(out.Fd())
	if !term.IsTerminal(fd) {
		_, err := io.WriteString(out, markdown)
		return err
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		width = fallbackWidth
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return fmt.Errorf("build markdown renderer: %w", err)
	}

	styled, err := renderer.Render(markdown)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(out, styled)
	return err
}
