package cmd

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/etnz/valuation"
	"github.com/etnz/valuation/calc"
	"github.com/etnz/valuation/market"
	"github.com/etnz/valuation/renderer"
	"github.com/etnz/valuation/suggest"
	"github.com/fatih/color"
)

const prompt = "vme> "

var (
	yellow = color.New(color.FgYellow)
	red    = color.New(color.FgRed, color.Bold)
	cyan   = color.New(color.FgCyan)
)

// defaultWindow is the number of days of market history looked at.
const defaultWindow = 30

// Session is an interactive editing session on a model.
type Session struct {
	Editor        *valuation.Editor
	Market        market.Provider
	Sector        string           // default sector for leverage multiples
	Suggester     suggest.Provider // nil if no AI model is available
	MinConfidence float64          // suggestions accepted by a bare "accept"
	Calc          *calc.Client     // nil if no calculation service is configured
	File          string           // where "save" writes by default
	Width         int              // terminal width; 0 prints raw markdown

	feed     *market.Feed
	w        io.Writer
	r        *bufio.Reader
	pending  map[string]suggest.Suggestion
	commands map[string]command
	cancel   func()
}

type command struct {
	usage string
	run   func(ctx context.Context, args []string) error
}

// NewSession opens a session on e, fetching market data from provider. It
// reads commands from r and writes to w.
func NewSession(e *valuation.Editor, provider market.Provider, w io.Writer, r io.Reader) *Session {
	s := &Session{
		Editor: e,
		Market: provider,
		feed:   &market.Feed{Provider: provider, Sink: e},
		w:      w,
		r:      bufio.NewReader(r),
	}
	s.commands = map[string]command{
		"set":       {"set <path> <value>", s.set},
		"add":       {"add tranche <name> [role] | add covenant <type> <limit> <start> <end>", s.add},
		"rm":        {"rm <path>", s.rm},
		"renumber":  {"renumber", s.renumber},
		"link":      {"link <path> <source>", s.link},
		"unlink":    {"unlink <path>", s.unlink},
		"autolink":  {"autolink [sector]", s.autolink},
		"undo":      {"undo", s.undo},
		"redo":      {"redo", s.redo},
		"rates":     {"rates", s.rates},
		"leverage":  {"leverage [sector]", s.leverage},
		"scenarios": {"scenarios", s.scenarios},
		"snapshots": {"snapshots [days]", s.snapshots},
		"snapshot":  {"snapshot <id> [days]", s.snapshot},
		"suggest":   {"suggest", s.suggest},
		"accept":    {"accept [key...]", s.accept},
		"calc":      {"calc", s.calc},
		"show":      {"show", s.show},
		"fields":    {"fields", s.fields},
		"query":     {"query <expr>", s.query},
		"save":      {"save [file]", s.save},
		"help":      {"help", s.help},
	}
	s.cancel = e.Subscribe(s.notify)
	return s
}

// Close ends the session.
func (s *Session) Close() { s.cancel() }

// Commands returns the names of the session commands, sorted.
func (s *Session) Commands() []string {
	names := make([]string, 0, len(s.commands)+1)
	for name := range s.commands {
		names = append(names, name)
	}
	names = append(names, "bye")
	sort.Strings(names)
	return names
}

// notify prints the editor events the user must know about.
func (s *Session) notify(e valuation.Event) {
	switch e.Kind {
	case valuation.Unavailable, valuation.Stale:
		yellow.Fprintf(s.w, "notice: %v\n", e.Err)
	case valuation.Discarded:
		yellow.Fprintf(s.w, "notice: late %s response discarded\n", e.Source)
	case valuation.Unlinked:
		cyan.Fprintf(s.w, "%s is now manual\n", e.Path)
	}
}

// Run is the REPL loop: it executes prompts first, then the lines read from
// the session input, until "bye" or the end of the input.
func (s *Session) Run(ctx context.Context, prompts ...string) error {
	fmt.Fprintln(s.w, "Welcome to vme. Type 'help' for the commands, 'bye' to exit.")
	for {
		fmt.Fprint(s.w, prompt)
		var input string
		if len(prompts) > 0 {
			input, prompts = strings.TrimSpace(prompts[0]), prompts[1:]
			if input == "" {
				continue
			}
			fmt.Fprintln(s.w, input)
		} else {
			var err error
			input, err = s.r.ReadString('\n')
			if err != nil {
				if err == io.EOF {
					return nil
				}
				return err
			}
		}

		quit, err := s.Exec(ctx, input)
		if quit {
			return nil
		}
		if err != nil {
			red.Fprintf(s.w, "error: %v\n", err)
		}
	}
}

// Exec executes one command line. It returns quit true on "bye".
func (s *Session) Exec(ctx context.Context, line string) (quit bool, err error) {
	args, err := split(line)
	if err != nil {
		return false, err
	}
	if len(args) == 0 {
		return false, nil
	}
	if args[0] == "bye" {
		return true, nil
	}
	c, ok := s.commands[args[0]]
	if !ok {
		return false, fmt.Errorf("unknown command %q, type 'help' for the list", args[0])
	}
	return false, c.run(ctx, args[1:])
}

// split splits a command line on spaces. Double quoted text is one argument,
// quotes included.
func split(line string) ([]string, error) {
	var (
		args   []string
		b      strings.Builder
		quoted bool
		inArg  bool
	)
	for _, r := range strings.TrimSpace(line) {
		switch {
		case r == '"':
			quoted = !quoted
			inArg = true
			b.WriteRune(r)
		case !quoted && (r == ' ' || r == '\t'):
			if inArg {
				args = append(args, b.String())
				b.Reset()
				inArg = false
			}
		default:
			inArg = true
			b.WriteRune(r)
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if inArg {
		args = append(args, b.String())
	}
	return args, nil
}

func unquote(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// want checks that there are between lo and hi arguments; hi < 0 is no limit.
func want(args []string, lo, hi int, usage string) error {
	if len(args) < lo || hi >= 0 && len(args) > hi {
		return fmt.Errorf("usage: %s", usage)
	}
	return nil
}

func (s *Session) markdown(md string) {
	if s.Width > 0 {
		if out, err := renderer.Terminal(md, s.Width); err == nil {
			fmt.Fprint(s.w, out)
			return
		}
	}
	fmt.Fprint(s.w, md)
}

func (s *Session) apply(p valuation.Patch) error {
	c, err := s.Editor.Apply(p)
	if err != nil {
		return err
	}
	if !c.Changed {
		fmt.Fprintln(s.w, "nothing changed")
	}
	if c.Inserted != 0 {
		fmt.Fprintf(s.w, "added %s\n", p.Target().Append(valuation.Ident(c.Inserted)))
	}
	return nil
}

func (s *Session) set(_ context.Context, args []string) error {
	if err := want(args, 2, -1, s.commands["set"].usage); err != nil {
		return err
	}
	p, err := valuation.ParsePath(args[0])
	if err != nil {
		return err
	}
	v, err := valuation.ParseValue(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	return s.apply(valuation.FieldSet{Path: p, Value: v})
}

func (s *Session) add(_ context.Context, args []string) error {
	usage := s.commands["add"].usage
	if len(args) == 0 {
		return fmt.Errorf("usage: %s", usage)
	}
	switch args[0] {
	case "tranche":
		if err := want(args, 2, 3, usage); err != nil {
			return err
		}
		role := valuation.Unclassified
		if len(args) == 3 {
			r, ok := valuation.ParseRole(args[2])
			if !ok {
				return fmt.Errorf("%w: unknown role %q", valuation.ErrInvalidPatch, args[2])
			}
			role = r
		}
		return s.apply(valuation.AddTranche(s.Editor.Present(), unquote(args[1]), role))

	case "covenant":
		if err := want(args, 5, 5, usage); err != nil {
			return err
		}
		kind := args[1]
		if kind != valuation.MaxDebtEBITDA && kind != valuation.MinInterestCoverage {
			return fmt.Errorf("%w: covenant type must be %s or %s", valuation.ErrInvalidPatch, valuation.MaxDebtEBITDA, valuation.MinInterestCoverage)
		}
		limit, err := valuation.ParseNumber(args[2])
		if err != nil {
			return err
		}
		start, err := strconv.Atoi(args[3])
		if err != nil {
			return fmt.Errorf("%w: start year %q", valuation.ErrInvalidPatch, args[3])
		}
		end, err := strconv.Atoi(args[4])
		if err != nil || end < start {
			return fmt.Errorf("%w: end year %q", valuation.ErrInvalidPatch, args[4])
		}
		entry := valuation.NewCovenant(kind, limit.InexactFloat64(), start, end).With("limit", valuation.N(limit))
		return s.apply(valuation.CollectionInsert{Collection: valuation.CovenantsPath, Entry: entry})
	}
	return fmt.Errorf("usage: %s", usage)
}

func (s *Session) rm(_ context.Context, args []string) error {
	if err := want(args, 1, 1, s.commands["rm"].usage); err != nil {
		return err
	}
	p, err := valuation.ParsePath(args[0])
	if err != nil {
		return err
	}
	last := p[len(p)-1]
	if !last.IsEntry() {
		return fmt.Errorf("%w: %s is not a collection entry", valuation.ErrInvalidPatch, p)
	}
	return s.apply(valuation.CollectionRemove{Collection: p[:len(p)-1], ID: last.ID})
}

func (s *Session) renumber(context.Context, []string) error {
	patches := valuation.RenumberSweepPriority(s.Editor.Present())
	if len(patches) == 0 {
		fmt.Fprintln(s.w, "nothing changed")
		return nil
	}
	if _, err := s.Editor.ApplyAll(patches...); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "%d priorities changed\n", len(patches))
	return nil
}

func (s *Session) link(_ context.Context, args []string) error {
	if err := want(args, 2, 2, s.commands["link"].usage); err != nil {
		return err
	}
	p, err := valuation.ParsePath(args[0])
	if err != nil {
		return err
	}
	return s.Editor.Link(p, valuation.SourceID(args[1]))
}

func (s *Session) unlink(_ context.Context, args []string) error {
	if err := want(args, 1, 1, s.commands["unlink"].usage); err != nil {
		return err
	}
	p, err := valuation.ParsePath(args[0])
	if err != nil {
		return err
	}
	if !s.Editor.Unlink(p) {
		fmt.Fprintf(s.w, "%s is not linked\n", p)
	}
	return nil
}

func (s *Session) sector(args []string) string {
	if len(args) > 0 {
		return unquote(strings.Join(args, " "))
	}
	if s.Sector != "" {
		return s.Sector
	}
	sector, _ := s.Editor.Present().Text(valuation.SectorPath)
	return sector
}

func (s *Session) autolink(_ context.Context, args []string) error {
	linked, err := valuation.LinkTrancheRates(s.Editor)
	if err != nil {
		return err
	}
	if sector := s.sector(args); sector != "" {
		l, err := valuation.LinkSectorLeverage(s.Editor, sector)
		linked = append(linked, l...)
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(s.w, "%d fields linked\n", len(linked))
	return nil
}

func (s *Session) undo(context.Context, []string) error {
	if !s.Editor.Undo() {
		fmt.Fprintln(s.w, "nothing to undo")
	}
	return nil
}

func (s *Session) redo(context.Context, []string) error {
	if !s.Editor.Redo() {
		fmt.Fprintln(s.w, "nothing to redo")
	}
	return nil
}

func (s *Session) rates(ctx context.Context, _ []string) error {
	r, err := s.feed.FetchRates(ctx)
	if err != nil {
		return err
	}
	s.markdown(renderer.RenderRates(r))
	return nil
}

func (s *Session) leverage(ctx context.Context, args []string) error {
	sector := s.sector(args)
	if sector == "" {
		return errors.New("no sector: give one, or set the model sector")
	}
	m, err := s.feed.FetchLeverage(ctx, sector)
	if err != nil {
		return err
	}
	s.markdown(renderer.RenderLeverage(sector, m))
	return nil
}

func (s *Session) scenarios(ctx context.Context, _ []string) error {
	sc, err := s.Market.Scenarios(ctx)
	if err != nil {
		return err
	}
	s.markdown(renderer.RenderScenarios(renderer.Scenarios(sc)))
	return nil
}

func window(args []string) (int, error) {
	if len(args) == 0 {
		return defaultWindow, nil
	}
	days, err := strconv.Atoi(args[0])
	if err != nil || days <= 0 {
		return 0, fmt.Errorf("invalid number of days %q", args[0])
	}
	return days, nil
}

func (s *Session) snapshots(ctx context.Context, args []string) error {
	days, err := window(args)
	if err != nil {
		return err
	}
	list, err := s.Market.Snapshots(ctx, days)
	if err != nil {
		return err
	}
	s.markdown(renderer.RenderSnapshots(list))
	return nil
}

func (s *Session) snapshot(ctx context.Context, args []string) error {
	if err := want(args, 1, 2, s.commands["snapshot"].usage); err != nil {
		return err
	}
	id, err := strconv.Atoi(args[0])
	if err != nil {
		return fmt.Errorf("invalid snapshot id %q", args[0])
	}
	days, err := window(args[1:])
	if err != nil {
		return err
	}
	snap, err := s.feed.Snapshot(ctx, id, days)
	if err != nil {
		return err
	}
	s.feed.ApplySnapshot(snap, s.sector(nil))
	fmt.Fprintf(s.w, "market of %s applied\n", snap.Date)
	return nil
}

func (s *Session) suggest(ctx context.Context, _ []string) error {
	if s.Suggester == nil {
		return errors.New("suggestions unavailable: set GEMINI_API_KEY")
	}
	present := s.Editor.Present()
	sg, err := s.Suggester.Suggest(ctx, present)
	if err != nil {
		return err
	}
	s.pending = sg
	s.markdown(renderer.RenderSuggestions(renderer.Suggestions(present, sg)))
	return nil
}

func (s *Session) accept(_ context.Context, args []string) error {
	if len(s.pending) == 0 {
		return errors.New("no pending suggestion, run 'suggest' first")
	}
	accept := suggest.MinConfidence(s.MinConfidence)
	if len(args) > 0 {
		keys := make(map[string]bool, len(args))
		for _, k := range args {
			keys[k] = true
		}
		accept = func(k string, _ suggest.Suggestion) bool { return keys[k] }
	}
	applied, err := suggest.Apply(s.Editor, s.pending, accept)
	fmt.Fprintf(s.w, "%d suggestions applied\n", len(applied))
	s.pending = nil
	return err
}

func (s *Session) calc(ctx context.Context, _ []string) error {
	if s.Calc == nil {
		return errors.New("no calculation service configured (calc.base_url)")
	}
	result, err := s.Calc.Calculate(ctx, s.Editor.Present())
	if err != nil {
		return err
	}
	return printJSON(s.w, result)
}

func (s *Session) show(context.Context, []string) error {
	s.markdown(renderer.RenderModel(renderer.NewModel(s.Editor.State(), s.Editor.Fields())))
	return nil
}

func (s *Session) fields(context.Context, []string) error {
	fields := s.Editor.Fields()
	if len(fields) == 0 {
		fmt.Fprintln(s.w, "no linked field")
		return nil
	}
	for _, f := range fields {
		last := "-"
		if f.LastKnown.Valid {
			last = f.LastKnown.Decimal.String()
		}
		fmt.Fprintf(s.w, "%s\t%s\t%s\t%s\n", f.Path, f.Mode, f.Source, last)
	}
	return nil
}

func (s *Session) query(_ context.Context, args []string) error {
	if err := want(args, 1, -1, s.commands["query"].usage); err != nil {
		return err
	}
	v, err := s.Editor.Present().Query(strings.Join(args, " "))
	if err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return printJSON(s.w, data)
}

func (s *Session) save(_ context.Context, args []string) error {
	if err := want(args, 0, 1, s.commands["save"].usage); err != nil {
		return err
	}
	file := s.File
	if len(args) == 1 {
		file = unquote(args[0])
	}
	if file == "" {
		return errors.New("no file to save to")
	}
	if err := encodeModel(file, s.Editor.Present()); err != nil {
		return err
	}
	fmt.Fprintf(s.w, "saved to %s\n", file)
	return nil
}

func (s *Session) help(context.Context, []string) error {
	for _, name := range s.Commands() {
		if c, ok := s.commands[name]; ok {
			fmt.Fprintf(s.w, "  %s\n", c.usage)
		} else {
			fmt.Fprintf(s.w, "  %s\n", name)
		}
	}
	return nil
}

func printJSON(w io.Writer, data []byte) error {
	var b bytes.Buffer
	if err := json.Indent(&b, data, "", "  "); err != nil {
		return err
	}
	b.WriteByte('\n')
	_, err := b.WriteTo(w)
	return err
}
