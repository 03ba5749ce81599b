package report

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

// PrintBanner writes the fleet watcher's ASCII art banner. Colors
// degrade to plain text on terminals without color support.
func PrintBanner(out io.Writer) {
	p := termenv.ColorProfile()
	// Green-to-amber gradient, solar panel to grid feed-in.
	lines := []struct {
		text  string
		color string
	}{
		{"             _     _                         ", "#34d399"},
		{"   __ _ _ __(_) __| |_____      ____ _ _ __  ", "#4ade80"},
		{"  / _` | '__| |/ _` / __\\ \\ /\\ / / _` | '_ \\ ", "#a3e635"},
		{" | (_| | |  | | (_| \\__ \\\\ V  V / (_| | |_) |", "#facc15"},
		{"  \\__, |_|  |_|\\__,_|___/ \\_/\\_/ \\__,_| .__/ ", "#fbbf24"},
		{"  |___/                               |_|    ", "#f59e0b"},
	}

	fmt.Fprintln(out)
	for _, l := range lines {
		fmt.Fprintln(out, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(out)
}
