package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/etnz/valuation"
	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.5-flash"

// generator is the part of genai.Models used by Gemini.
type generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini is a Provider backed by a Gemini model.
type Gemini struct {
	Model  string
	Logger *slog.Logger
	models generator
}

// NewGemini returns a Provider using client.
func NewGemini(client *genai.Client, model string) *Gemini {
	if model == "" {
		model = DefaultModel
	}
	return &Gemini{Model: model, models: client.Models}
}

const instruction = `You are a corporate finance analyst reviewing the assumptions of a valuation model.
For each assumption you are given, propose a realistic value for the company, as a fraction (0.05 is 5%),
with a confidence between 0 and 1 and a one sentence reasoning. Only propose values you can justify.`

// request is the context sent to the model.
type request struct {
	Company     map[string]any             `json:"company_data"`
	Assumptions map[string]decimal.Decimal `json:"current_assumptions"`
	Context     map[string]string          `json:"context"`
}

// response is the JSON the model is asked to produce.
type response struct {
	Suggestions []struct {
		Field      string  `json:"field"`
		Value      float64 `json:"value"`
		Confidence float64 `json:"confidence"`
		Reasoning  string  `json:"reasoning"`
	} `json:"suggestions"`
}

var responseSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"suggestions": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"field":      {Type: genai.TypeString, Description: "The assumption name."},
					"value":      {Type: genai.TypeNumber, Description: "The proposed value, as a fraction."},
					"confidence": {Type: genai.TypeNumber, Description: "Confidence between 0 and 1."},
					"reasoning":  {Type: genai.TypeString},
				},
				Required: []string{"field", "value", "confidence", "reasoning"},
			},
		},
	},
	Required: []string{"suggestions"},
}

// Suggest implements Provider.
func (g *Gemini) Suggest(ctx context.Context, s valuation.Snapshot) (map[string]Suggestion, error) {
	prompt, err := json.MarshalIndent(newRequest(s), "", "  ")
	if err != nil {
		return nil, err
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		ResponseMIMEType:  "application/json",
		ResponseSchema:    responseSchema,
		Temperature:       genai.Ptr[float32](0.2),
	}
	resp, err := g.models.GenerateContent(ctx, g.Model, genai.Text(string(prompt)), config)
	if err != nil {
		return nil, fmt.Errorf("asking %s: %w", g.Model, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("no response from %s", g.Model)
	}
	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		text.WriteString(part.Text)
	}

	var r response
	if err := json.Unmarshal([]byte(text.String()), &r); err != nil {
		return nil, fmt.Errorf("invalid response from %s: %w", g.Model, err)
	}
	suggestions := make(map[string]Suggestion, len(r.Suggestions))
	for _, item := range r.Suggestions {
		if _, err := Resolve(item.Field); err != nil {
			g.logger().Warn("suggestion for an unknown field ignored", "field", item.Field)
			continue
		}
		suggestions[item.Field] = Suggestion{
			Value:      decimal.NewFromFloat(item.Value),
			Confidence: min(max(item.Confidence, 0), 1),
			Reasoning:  item.Reasoning,
		}
	}
	return suggestions, nil
}

func (g *Gemini) logger() *slog.Logger {
	if g.Logger == nil {
		return slog.Default()
	}
	return g.Logger
}

// newRequest extracts from s what the model needs to know.
func newRequest(s valuation.Snapshot) request {
	r := request{
		Company:     map[string]any{},
		Assumptions: map[string]decimal.Decimal{},
		Context:     map[string]string{"use_case": "fundraising", "risk_tolerance": "moderate"},
	}
	for _, k := range []string{"company_name", "sector", "industry", "currency"} {
		if v, ok := s.Text(valuation.P(k)); ok && v != "" {
			r.Company[k] = v
		}
	}
	if l, ok := s.List(valuation.P("dcf_input", "historical", "revenue")); ok && l.Len() > 0 {
		entries := l.Entries()
		if n, ok := entries[len(entries)-1].Value.(valuation.Number); ok {
			r.Company["revenue"] = n.Decimal()
		}
	}
	for name, p := range Assumptions {
		if d, ok := s.Number(p); ok {
			r.Assumptions[name] = d
		}
	}
	return r
}
