package client

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
)

// Material quality bounds for the treasure estimate preview.
const (
	minMaterial  = 0.1
	maxMaterial  = 5.0
	materialStep = 0.1
)

// handleKey routes a key to the active mode.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}
	switch m.mode {
	case ModeRoute:
		return m.updatePrompt(msg)
	case ModeForm:
		return m.updateForm(msg)
	case ModeActions:
		return m.updateMenu(msg)
	case ModeDetail:
		return m.updateDetail(msg)
	default:
		return m.updateBrowse(msg)
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := BrowseKeyMap()
	switch {
	case key.Matches(msg, km.Quit):
		return m, tea.Quit
	case key.Matches(msg, km.Help):
		m.help.ShowAll = !m.help.ShowAll
	case key.Matches(msg, km.Up):
		if m.cursor > 0 {
			m.cursor--
		}
	case key.Matches(msg, km.Down):
		if m.cursor < len(m.rows())-1 {
			m.cursor++
		}
	case key.Matches(msg, km.Enter):
		return m.enter()
	case key.Matches(msg, km.New):
		items := m.panelActions()
		if len(items) == 0 {
			m.status = statusLine{text: "Nothing to start here."}
			return m, nil
		}
		m.menu = actionMenu{items: items, back: ModeBrowse}
		m.mode = ModeActions
	case key.Matches(msg, km.Next):
		return m.cyclePanel(1)
	case key.Matches(msg, km.Prev):
		return m.cyclePanel(-1)
	case key.Matches(msg, km.Route):
		m.prompt.Reset()
		m.mode = ModeRoute
		return m, m.prompt.Focus()
	case key.Matches(msg, km.Refresh):
		if len(m.panel.Kinds) == 0 {
			return m, nil
		}
		m.pending += len(m.panel.Kinds)
		return m, fetchAll(m.ctx, m.deps.Caches, m.panel.Kinds...)
	case key.Matches(msg, km.Logout):
		if m.deps.Session != nil {
			if err := m.deps.Session.Clear(m.ctx); err != nil {
				m.status = statusLine{text: err.Error(), level: statusError}
				return m, nil
			}
		}
		next, cmd := m.navigate(router.Login)
		next.status = statusLine{text: "Logged out."}
		return next, cmd
	}
	return m, nil
}

// enter opens the row under the cursor, or the panel's form.
func (m Model) enter() (tea.Model, tea.Cmd) {
	if f, ok := formPanels[m.panel.Key]; ok {
		return m.openForm(f.kind, f.name, 0)
	}
	if m.panel.Key == router.Home && m.noCharacter {
		return m.navigate(router.CreateCharacter)
	}
	rows := m.rows()
	if len(rows) == 0 {
		return m, nil
	}
	r := rows[m.cursor]
	return m.openDetail(r.kind, r.id)
}

// openDetail selects an entity and shows its view. Opening a treasure
// starts its rate preview at the base material quality.
func (m Model) openDetail(kind game.Kind, id int) (Model, tea.Cmd) {
	v := m.deps.Views.Open(kind, id)
	m.detail = &v
	m.mode = ModeDetail
	m.viewport.GotoTop()
	m.refreshDetailContent()
	if kind != game.KindTreasure || !v.Found {
		m.preview.Reset()
		return m, nil
	}
	return m, m.debounceEstimate(m.preview.Input(id, 1))
}

func (m *Model) closeDetail() {
	if m.detail != nil {
		m.deps.Views.Close(m.detail.Kind)
	}
	m.detail = nil
	m.preview.Reset()
	m.mode = ModeBrowse
}

func (m Model) updateDetail(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := DetailKeyMap()
	switch {
	case key.Matches(msg, km.Back):
		m.closeDetail()
		return m, nil
	case key.Matches(msg, km.Act):
		items := m.entityActions(m.detail.Kind, m.detail.ID)
		if len(items) == 0 {
			m.status = statusLine{text: "No actions available."}
			return m, nil
		}
		m.menu = actionMenu{items: items, back: ModeDetail}
		m.mode = ModeActions
		return m, nil
	case key.Matches(msg, km.More), key.Matches(msg, km.Less):
		if m.detail.Kind != game.KindTreasure || !m.detail.Found {
			return m, nil
		}
		step := materialStep
		if key.Matches(msg, km.Less) {
			step = -materialStep
		}
		factor := clamp(m.preview.Factor()+step, minMaterial, maxMaterial)
		seq := m.preview.Input(m.detail.ID, factor)
		m.refreshDetailContent()
		return m, m.debounceEstimate(seq)
	case key.Matches(msg, km.Refresh):
		m.pending++
		return m, fetch(m.ctx, m.deps.Caches, m.detail.Kind)
	}
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func clamp(x, lo, hi float64) float64 {
	// Round to one decimal so repeated steps do not drift.
	x = float64(int(x*10+0.5)) / 10
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// debounceEstimate waits for the input tagged seq to settle.
func (m Model) debounceEstimate(seq uint64) tea.Cmd {
	if m.deps.Estimator == nil {
		return nil
	}
	return tea.Tick(m.debounce, func(time.Time) tea.Msg { return estimateTickMsg{seq: seq} })
}

// estimate calls the server if seq is still the latest input.
func (m Model) estimate(seq uint64) tea.Cmd {
	if m.deps.Estimator == nil || !m.preview.Current(seq) {
		return nil
	}
	est, ctx, req := m.deps.Estimator, m.ctx, m.preview.Request()
	return func() tea.Msg {
		e, err := est.Estimate(ctx, req)
		return EstimateMsg{Seq: seq, Estimate: e, Err: err}
	}
}

// refreshDetailContent re-renders the open view into the viewport.
func (m *Model) refreshDetailContent() {
	if m.detail == nil {
		return
	}
	m.viewport.SetContent(m.detailContent())
}

func (m Model) detailContent() string {
	v := m.detail
	var b strings.Builder
	if !v.Found {
		b.WriteString(titleStyle.Render(kindTitle(v.Kind)) + "\n\n")
		b.WriteString(mutedStyle.Render("This entry is no longer available."))
		return b.String()
	}
	b.WriteString(titleStyle.Render(v.Title) + "\n\n")
	width := 0
	for _, f := range v.Fields {
		if n := len([]rune(f.Label)); n > width {
			width = n
		}
	}
	for _, f := range v.Fields {
		pad := width - len([]rune(f.Label))
		b.WriteString(headingStyle.Render(f.Label) + strings.Repeat(" ", pad+2) + f.Value + "\n")
	}
	if v.Kind == game.KindTreasure {
		b.WriteString("\n" + m.previewContent())
	}
	if len(v.Actions) > 0 {
		b.WriteString("\n" + mutedStyle.Render("Actions: "+strings.Join(v.Actions, ", ")))
	}
	return b.String()
}

func (m Model) previewContent() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  x%.1f %s\n", headingStyle.Render("Material quality"), m.preview.Factor(), mutedStyle.Render("(+/-)"))
	est, err := m.preview.Result()
	switch {
	case err != nil:
		b.WriteString(errorStyle.Render(api.Message(err)))
	case est == nil:
		b.WriteString(mutedStyle.Render("Estimating..."))
	default:
		for _, f := range est.Fields() {
			b.WriteString(headingStyle.Render(f.Label) + "  " + f.Value + "\n")
		}
	}
	return b.String()
}

// entityActions lists the actions offered on one entity. Actions with a
// When predicate are offered only to entities it selects. Singleton kinds
// also offer their id-less actions.
func (m Model) entityActions(kind game.Kind, id int) []menuItem {
	singleton := false
	if d, ok := game.Describe(kind); ok {
		singleton = d.Singleton
	}
	var out []menuItem
	for _, a := range m.deps.Dispatch.Table().For(kind) {
		switch {
		case a.NeedsID():
			if !m.offered(a, id) {
				continue
			}
		case !singleton || a.Name == "create":
			continue
		}
		out = append(out, menuItem{action: a, id: id})
	}
	return out
}

func (m Model) offered(a dispatch.Action, id int) bool {
	if a.When == "" {
		return true
	}
	targets, err := m.deps.Dispatch.Targets(a)
	if err != nil {
		m.logger.Warn("action predicate failed", "kind", a.Kind, "action", a.Name, "error", err)
		return false
	}
	for _, e := range targets {
		if e.EntityID() == id {
			return true
		}
	}
	return false
}

// panelActions lists the id-less actions of the panel's kinds.
func (m Model) panelActions() []menuItem {
	var out []menuItem
	for _, k := range m.panel.Kinds {
		for _, a := range m.deps.Dispatch.Table().For(k) {
			if a.NeedsID() || a.Auth != dispatch.AuthNone {
				continue
			}
			out = append(out, menuItem{action: a})
		}
	}
	return out
}

func (m Model) updateMenu(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := MenuKeyMap()
	switch {
	case key.Matches(msg, km.Back):
		m.mode = m.menu.back
		m.menu = actionMenu{}
	case key.Matches(msg, km.Up):
		if m.menu.cursor > 0 {
			m.menu.cursor--
		}
	case key.Matches(msg, km.Down):
		if m.menu.cursor < len(m.menu.items)-1 {
			m.menu.cursor++
		}
	case key.Matches(msg, km.Choose):
		if len(m.menu.items) == 0 {
			return m, nil
		}
		item := m.menu.items[m.menu.cursor]
		m.mode = m.menu.back
		m.menu = actionMenu{}
		if len(item.action.Fields) == 0 {
			m.status = statusLine{text: item.action.Name + "..."}
			return m, m.execute(item.action, item.id, nil)
		}
		return m.openForm(item.action.Kind, item.action.Name, item.id)
	}
	return m, nil
}

func (m Model) menuView() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Actions") + "\n\n")
	for i, it := range m.menu.items {
		prefix := "  "
		if i == m.menu.cursor {
			prefix = CursorMarker
		}
		label := it.action.Name
		if len(m.panel.Kinds) > 1 && it.id == 0 {
			label = strings.ToLower(kindTitle(it.action.Kind)) + ": " + label
		}
		b.WriteString(prefix + label + "\n")
	}
	return b.String()
}

// openForm shows the form for (kind, name) on entity id.
func (m Model) openForm(kind game.Kind, name string, id int) (Model, tea.Cmd) {
	a, err := m.deps.Dispatch.Lookup(kind, name)
	if err != nil {
		m.status = statusLine{text: err.Error(), level: statusError}
		return m, nil
	}
	f, err := newForm(a, id, m.deps.Dispatch)
	if err != nil {
		m.status = statusLine{text: err.Error(), level: statusError}
		return m, nil
	}
	if m.mode != ModeForm {
		m.formBack = m.mode
	}
	m.form = f
	m.mode = ModeForm
	return m, f.focusField(0)
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, FormKeyMap().Cancel) && !m.form.busy {
		m.form = nil
		m.mode = m.formBack
		return m, nil
	}
	submit, cmd := m.form.update(msg)
	if !submit {
		return m, cmd
	}
	body, err := dispatch.Coerce(m.form.action, m.form.values())
	if err != nil {
		m.form.err = strings.TrimPrefix(err.Error(), "dispatch: ")
		return m, nil
	}
	m.form.busy = true
	m.form.err = ""
	return m, m.execute(m.form.action, m.form.id, body)
}

// execute runs an action off the update loop. Nothing is installed until
// the OutcomeMsg reaches Update.
func (m Model) execute(a dispatch.Action, id int, body map[string]any) tea.Cmd {
	d, ctx := m.deps.Dispatch, m.ctx
	return func() tea.Msg {
		o, err := d.Execute(ctx, a.Kind, id, a.Name, body)
		return OutcomeMsg{Kind: a.Kind, Action: a.Name, Outcome: o, Err: err}
	}
}

func (m Model) updatePrompt(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	km := PromptKeyMap()
	switch {
	case key.Matches(msg, km.Cancel):
		m.prompt.Blur()
		m.mode = ModeBrowse
		return m, nil
	case key.Matches(msg, km.Go):
		route := m.prompt.Value()
		m.prompt.Blur()
		m.mode = ModeBrowse
		if strings.TrimSpace(route) == "" {
			return m, nil
		}
		return m.navigate(route)
	}
	var cmd tea.Cmd
	m.prompt, cmd = m.prompt.Update(msg)
	return m, cmd
}

// cyclePanel moves to the next panel usable in the current session state.
func (m Model) cyclePanel(step int) (tea.Model, tea.Cmd) {
	authed := m.authenticated()
	var keys []string
	for _, p := range m.deps.Router.Panels().Panels() {
		if p.Public != authed && p.Key != router.CreateCharacter {
			keys = append(keys, p.Key)
		}
	}
	if len(keys) == 0 {
		return m, nil
	}
	i := 0
	for j, k := range keys {
		if k == m.panel.Key {
			i = (j + step + len(keys)) % len(keys)
			break
		}
	}
	return m.navigate(keys[i])
}
