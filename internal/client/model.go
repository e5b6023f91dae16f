// Package client is the Bubble Tea front end. It drives the router, renders
// panels and detail views from the cache, and runs actions through the
// dispatcher.
//
// All network I/O happens in tea.Cmd functions that only fetch; snapshots
// are installed and detail effects applied in Update, so the update loop is
// the single writer of client state.
package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
)

// DefaultDebounce is how long the treasure estimate waits for input to
// settle before calling the server.
const DefaultDebounce = 300 * time.Millisecond

// helpBarHeight is the number of lines reserved for the help bar at the bottom.
const helpBarHeight = 1

// borderChrome is the number of lines consumed by top + bottom borders.
const borderChrome = 2

// headerHeight covers the title line and the status line.
const headerHeight = 2

// Caches is the cache surface the client reads and installs into.
type Caches interface {
	Fetch(ctx context.Context, kind game.Kind) (*cache.Snapshot, error)
	Install(snap *cache.Snapshot)
	Get(kind game.Kind, id int) (game.Entity, bool)
	List(kind game.Kind) []game.Entity
	Select(kind game.Kind, predicate string) ([]game.Entity, error)
}

// Views is the detail controller surface.
type Views interface {
	Open(kind game.Kind, id int) detail.View
	Close(kind game.Kind)
	Rerender(kind game.Kind) (detail.View, bool)
}

// Dispatcher runs actions in two halves: Execute off the update loop and
// Apply on it.
type Dispatcher interface {
	Table() *dispatch.Table
	Lookup(kind game.Kind, name string) (dispatch.Action, error)
	Options(f dispatch.Field, id int) ([]dispatch.Option, error)
	Targets(a dispatch.Action) ([]game.Entity, error)
	Execute(ctx context.Context, kind game.Kind, id int, name string, body map[string]any) (*dispatch.Outcome, error)
	Apply(o *dispatch.Outcome) dispatch.Result
}

// Estimator previews treasure awaken and recast rates.
type Estimator interface {
	Estimate(ctx context.Context, req detail.EstimateRequest) (*detail.Estimate, error)
}

// Session reports and clears the stored credential.
type Session interface {
	Authenticated() bool
	Clear(ctx context.Context) error
}

// Deps are the components the client drives.
type Deps struct {
	Router    *router.Router
	Caches    Caches
	Views     Views
	Dispatch  Dispatcher
	Estimator Estimator
	Session   Session
}

// Option configures a Model.
type Option func(*Model)

// WithStartRoute sets the route mounted by Init. Empty resolves to home or
// login depending on the session.
func WithStartRoute(route string) Option {
	return func(m *Model) { m.start = route }
}

// WithDebounce sets the estimate debounce window.
func WithDebounce(d time.Duration) Option {
	return func(m *Model) { m.debounce = d }
}

// WithLogger sets the client's logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Model) { m.logger = l }
}

// WithContext sets the context used for network calls.
func WithContext(ctx context.Context) Option {
	return func(m *Model) { m.ctx = ctx }
}

type statusLevel int

const (
	statusInfo statusLevel = iota
	statusOK
	statusWarn
	statusError
)

type statusLine struct {
	text  string
	level statusLevel
}

// menuItem is one action offered in the menu. id is zero for panel-level
// actions.
type menuItem struct {
	action dispatch.Action
	id     int
}

type actionMenu struct {
	items  []menuItem
	cursor int
	back   Mode
}

// Model is the root Bubble Tea model.
type Model struct {
	deps     Deps
	ctx      context.Context
	logger   *slog.Logger
	start    string
	debounce time.Duration

	mode        Mode
	panel       router.Panel
	cursor      int
	pending     int
	noCharacter bool
	status      statusLine

	detail   *detail.View
	preview  *detail.Preview
	menu     actionMenu
	form     *actionForm
	formBack Mode
	prompt   textinput.Model

	width    int
	height   int
	viewport viewport.Model
	help     help.Model
	spinner  spinner.Model
}

// New creates a Model and installs its init hooks on the router's panels.
func New(deps Deps, opts ...Option) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot

	p := textinput.New()
	p.Prompt = "#"
	p.Placeholder = "route"
	p.CharLimit = 32

	m := Model{
		deps:     deps,
		ctx:      context.Background(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		debounce: DefaultDebounce,
		mode:     ModeBrowse,
		preview:  &detail.Preview{},
		prompt:   p,
		viewport: viewport.New(0, 0),
		help:     help.New(),
		spinner:  s,
	}
	for _, opt := range opts {
		opt(&m)
	}
	installHooks(m.ctx, deps.Router.Panels(), deps.Caches)
	return m
}

// Init starts the spinner and mounts the start route.
func (m Model) Init() tea.Cmd {
	start := m.start
	return tea.Batch(m.spinner.Tick, func() tea.Msg { return NavigateMsg{Route: start} })
}

// Mode returns the current input mode.
func (m Model) Mode() Mode {
	return m.mode
}

// Panel returns the mounted panel.
func (m Model) Panel() router.Panel {
	return m.panel
}

// Status returns the status line text.
func (m Model) Status() string {
	return m.status.text
}

// Detail returns the open detail view, if any.
func (m Model) Detail() (detail.View, bool) {
	if m.detail == nil {
		return detail.View{}, false
	}
	return *m.detail, true
}

// Update handles incoming messages with mode-based routing.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		_, rightWidth := PaneWidths(msg.Width)
		vpWidth := rightWidth - borderChrome
		if vpWidth < 0 {
			vpWidth = 0
		}
		m.viewport.Width = vpWidth
		m.viewport.Height = m.contentHeight()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case NavigateMsg:
		return m.navigate(msg.Route)

	case openFormMsg:
		// A form panel left before its hook fired keeps whatever is mounted.
		if f, ok := formPanels[m.panel.Key]; !ok || f.kind != msg.kind || f.name != msg.name {
			return m, nil
		}
		return m.openForm(msg.kind, msg.name, msg.id)

	case SnapshotMsg:
		return m.applySnapshot(msg)

	case OutcomeMsg:
		return m.applyOutcome(msg)

	case estimateTickMsg:
		return m, m.estimate(msg.seq)

	case EstimateMsg:
		if m.preview.Accept(msg.Seq, msg.Estimate, msg.Err) {
			m.refreshDetailContent()
		}
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

// navigate mounts a route. Panels that need a session fall back to login
// without one.
func (m Model) navigate(fragment string) (Model, tea.Cmd) {
	key := m.deps.Router.Resolve(fragment)
	if p, ok := m.deps.Router.Panels().Lookup(key); ok && !p.Public && !m.authenticated() {
		key = router.Login
	}
	t, cmd, err := m.deps.Router.Navigate(key)
	if err != nil {
		m.status = statusLine{text: strings.TrimPrefix(err.Error(), "router: "), level: statusError}
		return m, nil
	}
	// Re-entering the mounted panel skips the router's leave hook, so the
	// open selection is released here.
	if m.detail != nil {
		m.deps.Views.Close(m.detail.Kind)
	}
	m.panel = t.To
	m.cursor = 0
	m.mode = ModeBrowse
	m.detail = nil
	m.form = nil
	m.menu = actionMenu{}
	m.preview.Reset()
	if t.To.Init != nil {
		m.pending = len(t.To.Kinds)
	}
	return m, cmd
}

func (m Model) authenticated() bool {
	return m.deps.Session != nil && m.deps.Session.Authenticated()
}

// applySnapshot installs a fetched snapshot on the update loop.
func (m Model) applySnapshot(msg SnapshotMsg) (Model, tea.Cmd) {
	if m.pending > 0 {
		m.pending--
	}
	if msg.Err != nil {
		switch {
		case unauthorized(msg.Err):
			return m.sessionExpired()
		case msg.Kind == game.KindCharacter && api.IsNotFound(msg.Err):
			m.noCharacter = true
		default:
			m.logger.Warn("fetch failed", "kind", msg.Kind, "error", msg.Err)
			m.status = statusLine{text: "Could not load " + strings.ToLower(kindTitle(msg.Kind)) + ": " + api.Message(msg.Err), level: statusError}
		}
		return m, nil
	}
	m.deps.Caches.Install(msg.Snap)
	if msg.Kind == game.KindCharacter {
		m.noCharacter = msg.Snap.Len() == 0
	}
	m.rerenderDetail()
	m.clampCursor()
	return m, nil
}

// applyOutcome installs an action's refetched snapshots and applies its
// detail effect.
func (m Model) applyOutcome(msg OutcomeMsg) (Model, tea.Cmd) {
	busy := m.form != nil && m.form.busy
	if msg.Err != nil {
		if msg.Kind != dispatch.KindAccount && unauthorized(msg.Err) {
			return m.sessionExpired()
		}
		text := api.Message(msg.Err)
		if busy {
			m.form.busy = false
			m.form.err = text
			return m, nil
		}
		m.status = statusLine{text: text, level: statusError}
		return m, nil
	}

	res := m.deps.Dispatch.Apply(msg.Outcome)
	if busy {
		m.form = nil
		m.mode = m.formBack
	}
	for _, s := range msg.Outcome.Snapshots {
		if s.Kind == game.KindCharacter {
			m.noCharacter = s.Len() == 0
		}
	}

	m.status = statusLine{text: res.Message, level: statusOK}
	if res.Warning != nil {
		m.status = statusLine{text: res.Message + " (refresh failed: " + api.Message(res.Warning) + ")", level: statusWarn}
	}
	switch {
	case res.Closed && m.detail != nil && m.detail.Kind == msg.Kind:
		m.detail = nil
		m.preview.Reset()
	case res.View != nil && m.detail != nil && m.detail.Kind == res.View.Kind:
		m.detail = res.View
		m.refreshDetailContent()
	default:
		m.rerenderDetail()
	}
	if m.detail == nil && (m.mode == ModeDetail || m.mode == ModeActions) {
		m.mode = ModeBrowse
	}
	m.clampCursor()

	if res.Navigate != "" {
		status := m.status
		next, cmd := m.navigate(res.Navigate)
		next.status = status
		return next, cmd
	}
	return m, nil
}

// sessionExpired drops back to the login panel after a 401.
func (m Model) sessionExpired() (Model, tea.Cmd) {
	status := statusLine{text: "Session expired. Please log in again.", level: statusWarn}
	if m.panel.Key == router.Login {
		m.status = status
		return m, nil
	}
	next, cmd := m.navigate(router.Login)
	next.status = status
	return next, cmd
}

// unauthorized reports whether err is a 401 from the server.
func unauthorized(err error) bool {
	var e *api.Error
	return errors.As(err, &e) && e.Status == http.StatusUnauthorized
}

// rerenderDetail rebuilds the open detail view from the current snapshot.
func (m *Model) rerenderDetail() {
	if m.detail == nil {
		return
	}
	if v, ok := m.deps.Views.Rerender(m.detail.Kind); ok {
		m.detail = &v
	}
	m.refreshDetailContent()
}

func (m *Model) clampCursor() {
	n := len(m.rows())
	if m.cursor >= n {
		m.cursor = n - 1
	}
	if m.cursor < 0 {
		m.cursor = 0
	}
}

// contentHeight returns the usable height for pane content,
// accounting for border chrome, header and the help bar.
func (m Model) contentHeight() int {
	h := m.height - borderChrome - helpBarHeight - headerHeight
	if h < 1 {
		return 1
	}
	return h
}

// View renders the header, two panes, status line and help bar.
func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}

	leftWidth, rightWidth := PaneWidths(m.width)
	contentHeight := m.contentHeight()

	leftStyle, rightStyle := FocusedBorder(), UnfocusedBorder()
	if m.mode != ModeBrowse {
		leftStyle, rightStyle = UnfocusedBorder(), FocusedBorder()
	}
	leftStyle = leftStyle.Width(leftWidth - borderChrome).Height(contentHeight)
	rightStyle = rightStyle.Width(rightWidth - borderChrome).Height(contentHeight)

	panes := lipgloss.JoinHorizontal(lipgloss.Top,
		leftStyle.Render(m.panelContent()),
		rightStyle.Render(m.viewRight()),
	)
	return lipgloss.JoinVertical(lipgloss.Left,
		m.viewHeader(),
		panes,
		m.viewStatus(),
		m.help.View(HelpBindings(m.mode)),
	)
}

func (m Model) viewHeader() string {
	h := titleStyle.Render("修仙")
	if m.panel.Key != "" {
		h += " " + mutedStyle.Render("#"+m.panel.Key)
	}
	if m.pending > 0 {
		h += " " + m.spinner.View()
	}
	return h
}

func (m Model) viewStatus() string {
	switch m.status.level {
	case statusOK:
		return successStyle.Render(m.status.text)
	case statusWarn:
		return warnStyle.Render(m.status.text)
	case statusError:
		return errorStyle.Render(m.status.text)
	default:
		return mutedStyle.Render(m.status.text)
	}
}

// viewRight renders the right pane content based on mode.
func (m Model) viewRight() string {
	switch {
	case m.mode == ModeRoute:
		return titleStyle.Render("Go to") + "\n\n" + m.prompt.View() + "\n\n" +
			mutedStyle.Render(strings.Join(m.deps.Router.Panels().Keys(), " "))
	case m.mode == ModeForm && m.form != nil:
		return m.form.view()
	case m.mode == ModeActions:
		return m.menuView()
	case m.detail != nil:
		return m.viewport.View()
	case m.panel.Key == router.Home && m.noCharacter:
		return mutedStyle.Render("Every journey starts with a name.")
	default:
		return mutedStyle.Render("Select an entry and press enter.")
	}
}
