package router

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/agnivade/levenshtein"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/xiuxian/internal/game"
)

// Session reports whether a credential is held.
type Session interface {
	Authenticated() bool
}

// Selections is the detail state cleared when a panel is left.
type Selections interface {
	CloseAll(kinds ...game.Kind)
}

// Transition describes one successful mount.
type Transition struct {
	// From is the previously mounted route, "" on the first mount.
	From string
	To   Panel
	// Template is the raw fragment loaded for To.
	Template string
}

// Reentered reports whether the transition re-mounted the current panel.
func (t Transition) Reentered() bool {
	return t.From == t.To.Key
}

// UnknownRouteError is returned for a fragment naming no panel.
type UnknownRouteError struct {
	Route      string
	Suggestion string
}

func (e *UnknownRouteError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("router: unknown route %q (did you mean %q?)", e.Route, e.Suggestion)
	}
	return fmt.Sprintf("router: unknown route %q", e.Route)
}

// Router is the {no-panel, panel(p)} state machine. It is not safe for
// concurrent use; the TUI drives it from its update loop.
type Router struct {
	panels     *Registry
	templates  TemplateSource
	session    Session
	selections Selections
	logger     *slog.Logger

	current  *Panel
	template string
}

// Option configures a Router.
type Option func(*Router)

// WithSession sets the credential check used to resolve the initial route.
func WithSession(s Session) Option {
	return func(r *Router) { r.session = s }
}

// WithSelections sets the detail state cleared on leave.
func WithSelections(s Selections) Option {
	return func(r *Router) { r.selections = s }
}

// WithLogger sets the router's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Router) { r.logger = l }
}

// New creates a router over a panel registry and a template source.
func New(panels *Registry, templates TemplateSource, opts ...Option) *Router {
	r := &Router{
		panels:    panels,
		templates: templates,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Normalize strips whitespace and a leading '#' from a fragment.
func Normalize(fragment string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fragment), "#"))
}

// Resolve returns the route a fragment designates. An empty fragment
// resolves to home with a credential and to login without one.
func (r *Router) Resolve(fragment string) string {
	if key := Normalize(fragment); key != "" {
		return key
	}
	if r.session != nil && r.session.Authenticated() {
		return Home
	}
	return Login
}

// Navigate mounts the panel named by fragment and returns its init command.
// An unknown route or a template that cannot be loaded leaves the current
// panel mounted and is reported as an error. Navigating to the panel
// already mounted re-runs its init hook.
func (r *Router) Navigate(fragment string) (Transition, tea.Cmd, error) {
	key := r.Resolve(fragment)
	p, ok := r.panels.Lookup(key)
	if !ok {
		err := &UnknownRouteError{Route: key, Suggestion: r.suggest(key)}
		r.logger.Debug("unknown route", "route", key)
		return Transition{}, nil, err
	}

	raw, err := r.templates.Load(p.TemplateName())
	if err != nil {
		r.logger.Warn("template load failed", "route", key, "error", err)
		return Transition{}, nil, err
	}

	var from string
	if r.current != nil {
		from = r.current.Key
		if from != key && r.selections != nil {
			r.selections.CloseAll(r.current.Kinds...)
		}
	}
	r.current = &p
	r.template = raw
	r.logger.Info("panel mounted", "from", from, "to", key)

	t := Transition{From: from, To: p, Template: raw}
	var cmd tea.Cmd
	if p.Init != nil {
		cmd = p.Init(t)
	}
	return t, cmd, nil
}

// Current returns the mounted panel.
func (r *Router) Current() (Panel, bool) {
	if r.current == nil {
		return Panel{}, false
	}
	return *r.current, true
}

// Template returns the raw template of the mounted panel.
func (r *Router) Template() string {
	return r.template
}

// Panels returns the registry.
func (r *Router) Panels() *Registry {
	return r.panels
}

func (r *Router) suggest(route string) string {
	if len(route) < 2 {
		return ""
	}
	best, bestDist := "", -1
	for _, k := range r.panels.Keys() {
		if strings.HasPrefix(k, route) {
			return k
		}
		d := levenshtein.ComputeDistance(route, k)
		if d > distanceLimit(len(k)) {
			continue
		}
		if bestDist < 0 || d < bestDist {
			best, bestDist = k, d
		}
	}
	return best
}

func distanceLimit(length int) int {
	switch {
	case length <= 4:
		return 1
	case length <= 8:
		return 2
	default:
		return 3
	}
}
