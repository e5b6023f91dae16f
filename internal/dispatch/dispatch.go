package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/game"
)

// ErrNoSelection is returned when an action needs a target id and none was given.
var ErrNoSelection = errors.New("dispatch: no entity selected")

// Gateway is the API surface the dispatcher needs.
type Gateway interface {
	Call(ctx context.Context, method, endpoint string, body any) (*api.Response, error)
	Login(ctx context.Context, username, password string) (string, error)
	Register(ctx context.Context, username, password, email string) (string, error)
}

// Reader is the read side of the cache.
type Reader interface {
	Get(kind game.Kind, id int) (game.Entity, bool)
}

// Caches is the cache surface the dispatcher needs.
type Caches interface {
	Reader
	Fetch(ctx context.Context, kind game.Kind) (*cache.Snapshot, error)
	Install(snap *cache.Snapshot)
	Select(kind game.Kind, predicate string) ([]game.Entity, error)
}

// Views is the detail controller surface the dispatcher needs.
type Views interface {
	IsOpen(kind game.Kind, id int) bool
	Close(kind game.Kind)
	Rerender(kind game.Kind) (detail.View, bool)
}

// Outcome is the I/O half of an action: the server's answer and the
// refetched snapshots, not yet installed.
type Outcome struct {
	Action    Action
	ID        int
	Message   string
	Snapshots []*cache.Snapshot
	// RefreshErr is set when the action succeeded but a refetch failed;
	// the kinds that did refetch are still in Snapshots.
	RefreshErr error
}

// Result is what the caller shows after an action has been applied.
type Result struct {
	Message  string
	Closed   bool
	View     *detail.View
	Navigate string
	// Warning carries a refetch failure after an accepted action.
	Warning error
}

// Dispatcher runs actions from a Table.
type Dispatcher struct {
	table  *Table
	api    Gateway
	caches Caches
	views  Views
	logger *slog.Logger
}

// New creates a Dispatcher. views may be nil for callers with no detail surface.
func New(table *Table, gw Gateway, caches Caches, views Views, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{table: table, api: gw, caches: caches, views: views, logger: logger}
}

// Table returns the dispatcher's action table.
func (d *Dispatcher) Table() *Table {
	return d.table
}

// Lookup resolves (kind, name) or returns *UnknownActionError.
func (d *Dispatcher) Lookup(kind game.Kind, name string) (Action, error) {
	a, ok := d.table.Lookup(kind, name)
	if !ok {
		return Action{}, &UnknownActionError{Kind: kind, Name: name, Available: d.table.Names(kind)}
	}
	return a, nil
}

// Options lists the selectable values of a Choice or Ref field for the
// entity id. Ref options come from the current snapshot, filtered by the
// field's Where predicate, so they follow every refetch.
func (d *Dispatcher) Options(f Field, id int) ([]Option, error) {
	switch {
	case len(f.Choices) > 0:
		out := make([]Option, 0, len(f.Choices))
		for _, c := range f.Choices {
			out = append(out, Option{Value: c, Label: c})
		}
		return out, nil
	case f.From != nil:
		return f.From(d.caches, id), nil
	case f.Type == Ref:
		ents, err := d.caches.Select(f.RefKind, f.Where)
		if err != nil {
			return nil, fmt.Errorf("dispatch: options for %s: %w", f.Name, err)
		}
		out := make([]Option, 0, len(ents))
		for _, e := range ents {
			out = append(out, Option{Value: strconv.Itoa(e.EntityID()), Label: e.DisplayName()})
		}
		return out, nil
	}
	return nil, nil
}

// Targets returns the cached entities the action is offered for.
func (d *Dispatcher) Targets(a Action) ([]game.Entity, error) {
	return d.caches.Select(a.Kind, a.When)
}

// Execute performs the call and refetches affected kinds without touching
// any cache. A rejected action returns the server's message as a tagged
// *api.Error and refetches nothing.
func (d *Dispatcher) Execute(ctx context.Context, kind game.Kind, id int, name string, body map[string]any) (*Outcome, error) {
	a, err := d.Lookup(kind, name)
	if err != nil {
		return nil, err
	}
	if a.NeedsID() && id <= 0 {
		return nil, fmt.Errorf("%w: %s/%s needs a target", ErrNoSelection, kind, name)
	}

	msg, err := d.call(ctx, a, id, body)
	if err != nil {
		d.logger.Info("action rejected", "kind", kind, "action", name, "id", id, "error", err)
		return nil, err
	}
	d.logger.Info("action accepted", "kind", kind, "action", name, "id", id, "message", msg)

	out := &Outcome{Action: a, ID: id, Message: msg}
	for _, k := range a.RefreshKinds() {
		snap, err := d.caches.Fetch(ctx, k)
		if err != nil {
			d.logger.Warn("refetch after action failed", "kind", k, "error", err)
			out.RefreshErr = errors.Join(out.RefreshErr, err)
			continue
		}
		out.Snapshots = append(out.Snapshots, snap)
	}
	return out, nil
}

// Apply installs an outcome's snapshots, then applies the action's detail
// effect. Installing comes first so a rerendered view reads fresh data.
func (d *Dispatcher) Apply(o *Outcome) Result {
	for _, s := range o.Snapshots {
		d.caches.Install(s)
	}
	res := Result{Message: o.Message, Navigate: o.Action.Navigate, Warning: o.RefreshErr}
	if d.views == nil || !d.views.IsOpen(o.Action.Kind, o.ID) {
		return res
	}
	switch o.Action.Detail {
	case Close:
		d.views.Close(o.Action.Kind)
		res.Closed = true
	case Rerender:
		if v, ok := d.views.Rerender(o.Action.Kind); ok {
			res.View = &v
		}
	}
	return res
}

// Perform is Execute followed by Apply.
func (d *Dispatcher) Perform(ctx context.Context, kind game.Kind, id int, name string, body map[string]any) (*Result, error) {
	o, err := d.Execute(ctx, kind, id, name, body)
	if err != nil {
		return nil, err
	}
	res := d.Apply(o)
	return &res, nil
}

func (d *Dispatcher) call(ctx context.Context, a Action, id int, body map[string]any) (string, error) {
	switch a.Auth {
	case AuthLogin:
		if _, err := d.api.Login(ctx, str(body["username"]), str(body["password"])); err != nil {
			return "", err
		}
		return "Logged in", nil
	case AuthRegister:
		return d.api.Register(ctx, str(body["username"]), str(body["password"]), str(body["email"]))
	}

	path, payload := expand(a, id, body)
	var send any
	if payload != nil {
		send = payload
	}
	resp, err := d.api.Call(ctx, a.Method, path, send)
	if err != nil {
		return "", err
	}
	if err := resp.Err(); err != nil {
		return "", err
	}
	return resp.Message, nil
}

// expand fills path placeholders and returns the body to send. Body keys
// used in the path are dropped; nil is returned for an empty body.
func expand(a Action, id int, body map[string]any) (string, map[string]any) {
	payload := make(map[string]any, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}
	if a.IDParam != "" {
		payload[a.IDParam] = id
	}

	path := strings.ReplaceAll(a.Path, "{id}", strconv.Itoa(id))
	for k, v := range payload {
		ph := "{" + k + "}"
		if strings.Contains(path, ph) {
			path = strings.ReplaceAll(path, ph, fmt.Sprint(v))
			delete(payload, k)
		}
	}
	if len(payload) == 0 {
		return path, nil
	}
	return path, payload
}

func str(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
