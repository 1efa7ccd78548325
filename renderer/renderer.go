// Package renderer renders models and market data as markdown.
package renderer

import (
	"embed"
	"fmt"
	"io/fs"
	"strings"
	"text/template"

	"github.com/etnz/valuation/market"
)

//go:embed *.md
var templates embed.FS

// RenderModel renders the Model struct to a markdown string.
func RenderModel(m *Model) string {
	partials := map[string]string{
		"model_title":     "model_title.md",
		"model_financing": "model_financing.md",
		"model_tranches":  "model_tranches.md",
		"model_covenants": "model_covenants.md",
		"model_links":     "model_links.md",
	}
	return renderTemplate("model", "model.md", partials, m)
}

// RenderRates renders the market rates.
func RenderRates(r market.Rates) string {
	return renderTemplate("rates", "rates.md", nil, r)
}

// RenderLeverage renders the typical leverage multiples of a sector.
func RenderLeverage(sector string, m market.LeverageMultiples) string {
	return renderTemplate("leverage", "leverage.md", nil, struct {
		Sector string
		market.LeverageMultiples
	}{sector, m})
}

// RenderScenarios renders the market scenarios.
func RenderScenarios(s []Scenario) string {
	return renderTemplate("scenarios", "scenarios.md", nil, s)
}

// RenderSnapshots renders a list of historical market snapshots.
func RenderSnapshots(s []market.Snapshot) string {
	return renderTemplate("snapshots", "snapshots.md", nil, s)
}

// RenderSuggestions renders AI suggestions next to the current values.
func RenderSuggestions(s []Suggestion) string {
	return renderTemplate("suggestions", "suggestions.md", nil, s)
}

// renderTemplate is a generic utility to render a main template that depends on several partials.
func renderTemplate(templateName, mainFile string, partials map[string]string, data any) string {
	mainContent, err := fs.ReadFile(templates, mainFile)
	if err != nil {
		return fmt.Sprintf("error reading main template %q: %v", mainFile, err)
	}

	tmpl, err := template.New(templateName).Funcs(funcs).Parse(string(mainContent))
	if err != nil {
		return fmt.Sprintf("error parsing main template %q: %v", mainFile, err)
	}

	for name, file := range partials {
		content, err := fs.ReadFile(templates, file)
		if err != nil {
			return fmt.Sprintf("error reading partial template %q: %v", file, err)
		}
		if _, err := tmpl.New(name).Parse(string(content)); err != nil {
			return fmt.Sprintf("error parsing partial template %q for %q: %v", file, name, err)
		}
	}

	var b strings.Builder
	if err := tmpl.ExecuteTemplate(&b, templateName, data); err != nil {
		return fmt.Sprintf("error executing template %q: %v", templateName, err)
	}
	return b.String()
}
