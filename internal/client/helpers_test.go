package client

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/crypto/bcrypt"

	"github.com/smileynet/xiuxian"
	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
	"github.com/smileynet/xiuxian/internal/sandbox"
	"github.com/smileynet/xiuxian/internal/session"
	"github.com/smileynet/xiuxian/internal/storage"
)

// cmdTimeout bounds how long a command may block in the synchronous
// driver. Cursor blink commands sleep longer than this and are dropped.
const cmdTimeout = 300 * time.Millisecond

// stripANSI removes ANSI escape sequences from a string.
func stripANSI(s string) string {
	var out []byte
	i := 0
	for i < len(s) {
		if s[i] == '\x1b' && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < 'A' || s[j] > 'Z') && (s[j] < 'a' || s[j] > 'z') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j
		} else {
			out = append(out, s[i])
			i++
		}
	}
	return string(out)
}

// containsPlainText checks if s contains sub after stripping ANSI escapes.
func containsPlainText(s, sub string) bool {
	return strings.Contains(stripANSI(s), sub)
}

// execBatch executes a tea.Cmd, flattening batches, and returns the
// resulting messages. Spinner ticks and commands that outlive cmdTimeout
// are skipped.
func execBatch(t *testing.T, cmd tea.Cmd) []tea.Msg {
	t.Helper()
	if cmd == nil {
		return nil
	}
	done := make(chan tea.Msg, 1)
	go func() { done <- cmd() }()
	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(cmdTimeout):
		return nil
	}
	switch msg := msg.(type) {
	case nil, spinner.TickMsg:
		return nil
	case tea.BatchMsg:
		var msgs []tea.Msg
		for _, c := range msg {
			msgs = append(msgs, execBatch(t, c)...)
		}
		return msgs
	}
	return []tea.Msg{msg}
}

// run feeds msgs through Update, executing every returned command and
// feeding its messages back until the model settles.
func run(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	queue := append([]tea.Msg(nil), msgs...)
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 500 {
			t.Fatal("message loop did not settle")
		}
		msg := queue[0]
		queue = queue[1:]
		if _, quit := msg.(tea.QuitMsg); quit {
			continue
		}
		next, cmd := m.Update(msg)
		m = next.(Model)
		queue = append(queue, execBatch(t, cmd)...)
	}
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var (
	keyEnter = tea.KeyMsg{Type: tea.KeyEnter}
	keyEsc   = tea.KeyMsg{Type: tea.KeyEsc}
	keyDown  = tea.KeyMsg{Type: tea.KeyDown}
	keyTab   = tea.KeyMsg{Type: tea.KeyTab}
)

// harness wires a client model to the sandbox backend.
type harness struct {
	srv   *sandbox.Server
	sess  *session.Store
	gw    *api.Gateway
	set   *cache.Set
	views *detail.Controller
	d     *dispatch.Dispatcher
	r     *router.Router
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	srv := sandbox.New(sandbox.WithHashCost(bcrypt.MinCost))
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)

	kv, err := storage.Open(":memory:")
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { kv.Close() })
	sess := session.New(kv)

	gw := api.New(ts.URL, api.WithCredentials(sess))
	set := cache.New(gw)
	table := dispatch.NewTable(dispatch.DefaultActions()...)
	views := detail.NewController(set, detail.WithActions(table.Names))
	d := dispatch.New(table, gw, set, views, nil)
	r := router.New(
		router.NewRegistry(router.DefaultPanels()...),
		router.NewFSTemplates(xiuxian.Panels),
		router.WithSession(sess),
		router.WithSelections(views),
	)
	return &harness{srv: srv, sess: sess, gw: gw, set: set, views: views, d: d, r: r}
}

func (h *harness) model(opts ...Option) Model {
	opts = append([]Option{WithDebounce(0)}, opts...)
	return New(Deps{
		Router:    h.r,
		Caches:    h.set,
		Views:     h.views,
		Dispatch:  h.d,
		Estimator: detail.NewEstimator(h.gw),
		Session:   h.sess,
	}, opts...)
}

// signUp registers and logs in user with a fresh character.
func (h *harness) signUp(t *testing.T, user string) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.gw.Register(ctx, user, "pw", user+"@example.com"); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if _, err := h.gw.Login(ctx, user, "pw"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	h.perform(t, game.KindCharacter, 0, "create", map[string]any{"name": "Han Li", "linggen": "木", "wuxing": 60, "qiyun": 40})
}

func (h *harness) perform(t *testing.T, kind game.Kind, id int, name string, body map[string]any) {
	t.Helper()
	if _, err := h.d.Perform(context.Background(), kind, id, name, body); err != nil {
		t.Fatalf("Perform(%s/%s) error = %v", kind, name, err)
	}
}

// start runs Init and a window size through the model.
func start(t *testing.T, m Model) Model {
	t.Helper()
	m = run(t, m, tea.WindowSizeMsg{Width: 160, Height: 48})
	return run(t, m, execBatch(t, m.Init())...)
}

// fill sets form inputs by field name without typing.
func fill(t *testing.T, m Model, values map[string]string) Model {
	t.Helper()
	if m.form == nil {
		t.Fatal("no form open")
	}
	for i := range m.form.fields {
		ff := &m.form.fields[i]
		v, ok := values[ff.field.Name]
		if !ok {
			continue
		}
		if ff.choose {
			found := false
			for j, o := range ff.options {
				if o.Value == v {
					ff.choice, found = j, true
				}
			}
			if !found {
				t.Fatalf("option %q not offered for %s: %+v", v, ff.field.Name, ff.options)
			}
			continue
		}
		ff.input.SetValue(v)
	}
	return m
}

// cursorTo moves the browse cursor onto (kind, id).
func cursorTo(t *testing.T, m Model, kind game.Kind, id int) Model {
	t.Helper()
	for i, r := range m.rows() {
		if r.kind == kind && r.id == id {
			m.cursor = i
			return m
		}
	}
	t.Fatalf("no row for %s %d", kind, id)
	return m
}

// chooseAction opens the action menu and picks name.
func chooseAction(t *testing.T, m Model, name string) Model {
	t.Helper()
	if m.mode != ModeActions {
		m = run(t, m, keyRunes("a"))
	}
	for i, it := range m.menu.items {
		if it.action.Name == name {
			m.menu.cursor = i
			return run(t, m, keyEnter)
		}
	}
	t.Fatalf("action %q not offered; menu = %+v", name, m.menu.items)
	return m
}
