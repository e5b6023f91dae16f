package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mattn/go-isatty"

	"github.com/smileynet/xiuxian"
	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/client"
	"github.com/smileynet/xiuxian/internal/config"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
	"github.com/smileynet/xiuxian/internal/sandbox"
	"github.com/smileynet/xiuxian/internal/session"
	"github.com/smileynet/xiuxian/internal/storage"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// CLI is the top-level command structure for xiuxian.
type CLI struct {
	Version  kong.VersionFlag `help:"Show version." short:"V"`
	Play     PlayCmd          `cmd:"" help:"Open the interactive client."`
	Login    LoginCmd         `cmd:"" help:"Log in and store the session token."`
	Register RegisterCmd      `cmd:"" help:"Create an account."`
	Logout   LogoutCmd        `cmd:"" help:"Forget the stored session token."`
	Routes   RoutesCmd        `cmd:"" help:"List the client's panels."`
	List     ListCmd          `cmd:"" help:"List entities of one kind."`
	Show     ShowCmd          `cmd:"" help:"Show one entity's detail view."`
	Act      ActCmd           `cmd:"" help:"Run an action and refetch what it changed."`
	Estimate EstimateCmd      `cmd:"" help:"Preview treasure awaken and recast odds."`
	Sandbox  SandboxCmd       `cmd:"" help:"Serve an in-memory game backend for local play."`
}

// loadConfig loads layered config (user then project) and applies env overrides.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadLayered(
		os.ExpandEnv("$HOME/.config/xiuxian/config.yaml"),
		".xiuxian/config.yaml",
	)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// app holds the wired client components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	store    *storage.Store
	session  *session.Store
	gateway  *api.Gateway
	caches   *cache.Set
	views    *detail.Controller
	dispatch *dispatch.Dispatcher
	router   *router.Router
	closeLog func() error
}

// newLogger builds the slog logger described by cfg.Log. An empty file
// discards output so log lines never tear the terminal UI.
func newLogger(cfg config.Log) (*slog.Logger, func() error, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	if cfg.File == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() error { return nil }, nil
	}
	f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: level})), f.Close, nil
}

// newApp opens local storage, restores the session and wires the gateway,
// caches, detail controller, dispatcher and router.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(cfg.Store.Path)
	if err != nil {
		_ = closeLog()
		return nil, err
	}
	sess := session.New(store)
	if err := sess.Load(ctx); err != nil {
		_ = store.Close()
		_ = closeLog()
		return nil, err
	}

	gw := api.New(cfg.API.BaseURL,
		api.WithTimeout(cfg.API.Timeout),
		api.WithCredentials(sess),
		api.WithLogger(logger),
	)
	set := cache.New(gw)
	table := dispatch.NewTable(dispatch.DefaultActions()...)
	views := detail.NewController(set, detail.WithActions(table.Names))
	r := router.New(
		router.NewRegistry(router.DefaultPanels()...),
		router.NewFSTemplates(xiuxian.OverlayFS(cfg.UI.TemplatesDir, xiuxian.Panels)),
		router.WithSession(sess),
		router.WithSelections(views),
		router.WithLogger(logger),
	)
	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		session:  sess,
		gateway:  gw,
		caches:   set,
		views:    views,
		dispatch: dispatch.New(table, gw, set, views, logger),
		router:   r,
		closeLog: closeLog,
	}, nil
}

// Close releases local storage and the log file.
func (a *app) Close() error {
	return errors.Join(a.store.Close(), a.closeLog())
}

// withApp loads config, wires an app and runs fn with a signal-aware context.
func withApp(name string, fn func(ctx context.Context, a *app) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	defer a.Close() //nolint:errcheck // best-effort on exit
	if err := fn(ctx, a); err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}

// --- Play command ---

// PlayCmd opens the interactive client.
type PlayCmd struct {
	Route string `help:"Route to open first, e.g. equipment." placeholder:"KEY"`
}

// teaRunner abstracts Bubble Tea program execution for testing.
type teaRunner interface {
	Run() (tea.Model, error)
}

// Run launches the client TUI.
func (c *PlayCmd) Run() error {
	if !isatty.IsTerminal(os.Stdout.Fd()) && !isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		return fmt.Errorf("play: requires a terminal (TTY)")
	}
	return withApp("play", func(ctx context.Context, a *app) error {
		var opts []tea.ProgramOption
		if a.cfg.UI.AltScreen {
			opts = append(opts, tea.WithAltScreen())
		}
		return c.run(func(m tea.Model) teaRunner {
			return tea.NewProgram(m, append(opts, tea.WithContext(ctx))...)
		}, a.model(ctx, c.Route))
	})
}

// run executes the TUI with the given program factory, enabling testable wiring.
func (c *PlayCmd) run(newProgram func(tea.Model) teaRunner, m client.Model) error {
	_, err := newProgram(m).Run()
	if err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// model builds the client model. route overrides the configured start route.
func (a *app) model(ctx context.Context, route string) client.Model {
	if route == "" {
		route = a.cfg.UI.StartRoute
	}
	opts := []client.Option{
		client.WithContext(ctx),
		client.WithLogger(a.logger),
		client.WithDebounce(a.cfg.UI.EstimateDebounce),
	}
	if route != "" {
		opts = append(opts, client.WithStartRoute(route))
	}
	return client.New(client.Deps{
		Router:    a.router,
		Caches:    a.caches,
		Views:     a.views,
		Dispatch:  a.dispatch,
		Estimator: detail.NewEstimator(a.gateway),
		Session:   a.session,
	}, opts...)
}

// --- Account commands ---

// LoginCmd logs in and stores the session token.
type LoginCmd struct {
	Username string `arg:"" help:"Account name."`
	Password string `help:"Account password." env:"XIUXIAN_PASSWORD" required:""`
}

// Run executes the login command.
func (c *LoginCmd) Run() error {
	return withApp("login", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

func (c *LoginCmd) run(ctx context.Context, w io.Writer, a *app) error {
	return perform(ctx, w, a, dispatch.KindAccount, 0, "login", map[string]string{
		"username": c.Username,
		"password": c.Password,
	})
}

// RegisterCmd creates an account.
type RegisterCmd struct {
	Username string `arg:"" help:"Account name."`
	Email    string `arg:"" help:"Contact address."`
	Password string `help:"Account password." env:"XIUXIAN_PASSWORD" required:""`
}

// Run executes the register command.
func (c *RegisterCmd) Run() error {
	return withApp("register", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

func (c *RegisterCmd) run(ctx context.Context, w io.Writer, a *app) error {
	return perform(ctx, w, a, dispatch.KindAccount, 0, "register", map[string]string{
		"username": c.Username,
		"password": c.Password,
		"email":    c.Email,
	})
}

// LogoutCmd forgets the stored session token.
type LogoutCmd struct{}

// Run executes the logout command.
func (c *LogoutCmd) Run() error {
	return withApp("logout", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

func (c *LogoutCmd) run(ctx context.Context, w io.Writer, a *app) error {
	if !a.session.Authenticated() {
		_, _ = fmt.Fprintln(w, "Not logged in")
		return nil
	}
	if err := a.session.Clear(ctx); err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, "Logged out")
	return nil
}

// --- Routes command ---

// RoutesCmd lists the client's panels.
type RoutesCmd struct{}

// Run executes the routes command. It needs no backend.
func (c *RoutesCmd) Run() error {
	return c.run(os.Stdout, router.NewRegistry(router.DefaultPanels()...))
}

func (c *RoutesCmd) run(w io.Writer, reg *router.Registry) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, p := range reg.Panels() {
		kinds := make([]string, len(p.Kinds))
		for i, k := range p.Kinds {
			kinds[i] = string(k)
		}
		access := "session"
		if p.Public {
			access = "public"
		}
		_, _ = fmt.Fprintf(tw, "#%s\t%s\t%s\t%s\n", p.Key, p.Title, access, strings.Join(kinds, ","))
	}
	return tw.Flush()
}

// --- Entity commands ---

// ListCmd prints the entities of one kind.
type ListCmd struct {
	Kind  string `arg:"" help:"Entity kind, e.g. equipment or crop."`
	Where string `help:"Filter expression over entity fields, e.g. 'growth_progress >= 100'." placeholder:"EXPR"`
}

// Run executes the list command.
func (c *ListCmd) Run() error {
	return withApp("list", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

func (c *ListCmd) run(ctx context.Context, w io.Writer, a *app) error {
	kind, err := parseKind(c.Kind)
	if err != nil {
		return err
	}
	if _, err := a.caches.Refresh(ctx, kind); err != nil {
		return err
	}
	ents, err := a.caches.Select(kind, c.Where)
	if err != nil {
		return err
	}
	if len(ents) == 0 {
		_, _ = fmt.Fprintf(w, "No %s\n", kind)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, e := range ents {
		_, _ = fmt.Fprintf(tw, "%d\t%s\n", e.EntityID(), e.DisplayName())
	}
	return tw.Flush()
}

// ShowCmd prints one entity's detail view.
type ShowCmd struct {
	Kind string `arg:"" help:"Entity kind."`
	ID   int    `arg:"" help:"Entity id."`
}

// Run executes the show command.
func (c *ShowCmd) Run() error {
	return withApp("show", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

// crossRefs lists kinds a detail view labels by id and must have cached.
var crossRefs = map[game.Kind][]game.Kind{
	game.KindRune: {game.KindEquipment, game.KindTreasure},
}

func (c *ShowCmd) run(ctx context.Context, w io.Writer, a *app) error {
	kind, err := parseKind(c.Kind)
	if err != nil {
		return err
	}
	if err := prefetch(ctx, a.caches, append([]game.Kind{kind}, crossRefs[kind]...)...); err != nil {
		return err
	}
	v := a.views.Open(kind, c.ID)
	if !v.Found {
		return &api.Error{Category: api.NotFound, Status: http.StatusNotFound, Message: fmt.Sprintf("%s %d not found", kind, c.ID)}
	}
	writeView(w, v)
	return nil
}

func writeView(w io.Writer, v detail.View) {
	_, _ = fmt.Fprintln(w, v.Title)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range v.Fields {
		_, _ = fmt.Fprintf(tw, "  %s\t%s\n", f.Label, f.Value)
	}
	_ = tw.Flush()
	if len(v.Actions) > 0 {
		_, _ = fmt.Fprintf(w, "Actions: %s\n", strings.Join(v.Actions, ", "))
	}
}

// ActCmd runs one action.
type ActCmd struct {
	Kind   string            `arg:"" help:"Entity kind, or 'account'."`
	Target []string          `arg:"" help:"Optional entity id followed by the action name."`
	Set    map[string]string `help:"Body field, repeatable: --set slot=2." placeholder:"KEY=VALUE"`
}

// Run executes the act command.
func (c *ActCmd) Run() error {
	return withApp("act", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, a)
	})
}

func (c *ActCmd) run(ctx context.Context, w io.Writer, a *app) error {
	kind := game.Kind(c.Kind)
	if kind != dispatch.KindAccount {
		var err error
		if kind, err = parseKind(c.Kind); err != nil {
			return err
		}
	}
	id, name, err := splitTarget(c.Target)
	if err != nil {
		return err
	}
	act, err := a.dispatch.Lookup(kind, name)
	if err != nil {
		return err
	}
	// Ref and computed choice fields read the cache, and a detail view is
	// opened so the action's detail effect can be reported.
	if kind != dispatch.KindAccount {
		kinds := []game.Kind{kind}
		for _, f := range act.Fields {
			if f.Type == dispatch.Ref {
				kinds = append(kinds, f.RefKind)
			}
		}
		if err := prefetch(ctx, a.caches, kinds...); err != nil {
			return err
		}
		if act.NeedsID() {
			a.views.Open(kind, id)
		}
	}
	return perform(ctx, w, a, kind, id, name, c.Set)
}

// prefetch installs fresh snapshots for kinds. A missing singleton, such as
// the character before creation, is not an error.
func prefetch(ctx context.Context, caches *cache.Set, kinds ...game.Kind) error {
	for _, k := range kinds {
		if _, err := caches.Refresh(ctx, k); err != nil && !api.IsNotFound(err) {
			return err
		}
	}
	return nil
}

// splitTarget parses "[id] action".
func splitTarget(args []string) (int, string, error) {
	switch len(args) {
	case 1:
		return 0, args[0], nil
	case 2:
		id, err := strconv.Atoi(args[0])
		if err != nil || id <= 0 {
			return 0, "", fmt.Errorf("invalid id %q", args[0])
		}
		return id, args[1], nil
	default:
		return 0, "", fmt.Errorf("expected [id] <action>, got %d arguments", len(args))
	}
}

// perform coerces raw fields against the action and runs it, printing the
// server's message and anything the detail effect produced.
func perform(ctx context.Context, w io.Writer, a *app, kind game.Kind, id int, name string, raw map[string]string) error {
	act, err := a.dispatch.Lookup(kind, name)
	if err != nil {
		return err
	}
	body, err := dispatch.Coerce(act, raw)
	if err != nil {
		return err
	}
	res, err := a.dispatch.Perform(ctx, kind, id, name, body)
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(w, res.Message)
	if res.Warning != nil {
		_, _ = fmt.Fprintf(w, "warning: refresh failed: %s\n", api.Message(res.Warning))
	}
	if res.View != nil {
		writeView(w, *res.View)
	}
	if res.Navigate != "" {
		_, _ = fmt.Fprintf(w, "Next: #%s\n", res.Navigate)
	}
	return nil
}

// EstimateCmd previews treasure odds.
type EstimateCmd struct {
	TreasureID int     `arg:"" help:"Treasure id."`
	Material   float64 `help:"Material quality factor." default:"1.0"`
}

// Run executes the estimate command.
func (c *EstimateCmd) Run() error {
	return withApp("estimate", func(ctx context.Context, a *app) error {
		return c.run(ctx, os.Stdout, detail.NewEstimator(a.gateway))
	})
}

// estimator abstracts detail.Estimator for testing.
type estimator interface {
	Estimate(ctx context.Context, req detail.EstimateRequest) (*detail.Estimate, error)
}

func (c *EstimateCmd) run(ctx context.Context, w io.Writer, e estimator) error {
	if c.Material <= 0 {
		return fmt.Errorf("material must be positive, got %g", c.Material)
	}
	est, err := e.Estimate(ctx, detail.EstimateRequest{TreasureID: c.TreasureID, MaterialQualityFactor: c.Material})
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, f := range est.Fields() {
		_, _ = fmt.Fprintf(tw, "%s\t%s\n", f.Label, f.Value)
	}
	return tw.Flush()
}

// --- Sandbox command ---

// SandboxCmd serves the in-memory backend.
type SandboxCmd struct {
	Addr string `help:"Listen address." default:"127.0.0.1:5000"`
}

// Run serves until interrupted.
func (c *SandboxCmd) Run() error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	logger, closeLog, err := newLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	defer closeLog() //nolint:errcheck // best-effort on exit

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return c.run(ctx, os.Stdout, sandbox.New(sandbox.WithLogger(logger)))
}

// server abstracts sandbox.Server for testing.
type server interface {
	Start(addr string) error
	Shutdown(ctx context.Context) error
}

func (c *SandboxCmd) run(ctx context.Context, w io.Writer, srv server) error {
	errc := make(chan error, 1)
	go func() { errc <- srv.Start(c.Addr) }()
	_, _ = fmt.Fprintf(w, "Sandbox listening on http://%s\n", c.Addr)

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("sandbox: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("sandbox: shutdown: %w", err)
	}
	return <-errc
}

// parseKind resolves a kind name, listing the known kinds on failure.
func parseKind(s string) (game.Kind, error) {
	k := game.Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := game.Describe(k); ok {
		return k, nil
	}
	var names []string
	for _, known := range game.Kinds() {
		names = append(names, string(known))
	}
	return "", fmt.Errorf("unknown kind %q (known: %s)", s, strings.Join(names, ", "))
}

// Exit codes.
const (
	exitSuccess  = 0
	exitRejected = 1
	exitSetup    = 2
)

// exitCode maps an error to the appropriate exit code. Errors the server
// answered with exit 1; transport, config and usage errors exit 2.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	switch cat, _ := api.CategoryOf(err); cat {
	case api.NotFound, api.ClientError, api.ServerError:
		return exitRejected
	}
	return exitSetup
}

func main() {
	var cli CLI
	ctx := kong.Parse(&cli,
		kong.Name("xiuxian"),
		kong.Description("Terminal client for the cultivation game."),
		kong.UsageOnError(),
		kong.Vars{"version": version + " " + commit + " " + date},
	)
	err := ctx.Run()
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %s\n", api.Message(err))
		os.Exit(exitCode(err))
	}
}
