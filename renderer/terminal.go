package renderer

import (
	"os"

	"github.com/charmbracelet/glamour"
)

// Terminal renders markdown for a terminal of the given width. Styles follow
// the GLAMOUR_STYLE environment variable, or the terminal background.
func Terminal(md string, width int) (string, error) {
	opts := []glamour.TermRendererOption{glamour.WithWordWrap(width)}
	if os.Getenv("GLAMOUR_STYLE") != "" {
		opts = append(opts, glamour.WithEnvironmentConfig())
	} else {
		opts = append(opts, glamour.WithAutoStyle())
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		return "", err
	}
	return r.Render(md)
}
