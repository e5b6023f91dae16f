// Package dispatch performs mutating game actions with the
// action-then-refetch protocol: call the action endpoint, and on success
// refetch every affected kind before any view is rebuilt. A mutation
// response never patches a cache.
package dispatch

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/smileynet/xiuxian/internal/game"
)

// KindAccount groups the login and registration actions.
const KindAccount game.Kind = "account"

// Effect is what happens to an open detail view after a successful action.
type Effect int

const (
	Keep     Effect = iota // Leave the view as is.
	Close                  // Close the detail view.
	Rerender               // Rebuild the view from the refreshed snapshot.
)

func (e Effect) String() string {
	switch e {
	case Close:
		return "close"
	case Rerender:
		return "rerender"
	default:
		return "keep"
	}
}

// Auth marks actions served by the gateway's credential calls.
type Auth int

const (
	AuthNone Auth = iota
	AuthLogin
	AuthRegister
)

// FieldType is the input type of an action body field.
type FieldType int

const (
	Int FieldType = iota
	Float
	Text
	Secret
	Choice
	Ref // An id chosen from another kind's cache.
)

// Option is one selectable value of a Choice or Ref field.
type Option struct {
	Value string
	Label string
}

// OptionSource computes choices for a field from the cache and the
// selected id, at the time the form is shown.
type OptionSource func(r Reader, id int) []Option

// Field is one input of an action body.
type Field struct {
	Name    string
	Label   string
	Type    FieldType
	Default string

	// Choices lists fixed values for a Choice field.
	Choices []string
	// From computes values for a Choice field when Choices is empty.
	From OptionSource

	// RefKind and Where select candidate ids for a Ref field.
	RefKind game.Kind
	Where   string
}

// Action is one (kind, name) operation.
type Action struct {
	Kind   game.Kind
	Name   string
	Method string
	// Path may hold {id} for the selected id and {field} for a body field,
	// which is then removed from the body.
	Path   string
	Fields []Field

	// IDParam, when set, sends the selected id in the body under this key.
	IDParam string
	// Selected marks an action that targets the selected entity without
	// sending its id, e.g. when a field is derived from it.
	Selected bool

	// Refresh lists kinds refetched on success. The action's own kind is
	// refetched first unless NoSelfRefresh is set.
	Refresh       []game.Kind
	NoSelfRefresh bool

	// When is a predicate over the selected entity's fields limiting which
	// entities the action is offered for, e.g. "growth_progress >= 100".
	When string

	Detail   Effect
	Navigate string
	Auth     Auth
}

// NeedsID reports whether the action targets a selected entity.
func (a Action) NeedsID() bool {
	return a.Selected || a.IDParam != "" || strings.Contains(a.Path, "{id}")
}

// RefreshKinds returns the kinds refetched after success, in order and
// without repeats.
func (a Action) RefreshKinds() []game.Kind {
	var out []game.Kind
	seen := map[game.Kind]bool{}
	add := func(k game.Kind) {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	if !a.NoSelfRefresh && a.Kind != KindAccount {
		add(a.Kind)
	}
	for _, k := range a.Refresh {
		add(k)
	}
	return out
}

type key struct {
	kind game.Kind
	name string
}

// Table holds exactly one Action per (kind, name).
type Table struct {
	actions map[key]Action
	order   []key
}

// NewTable builds a table. It panics on an empty kind or name or on a
// repeated (kind, name) pair, so a table is checked once at startup.
func NewTable(actions ...Action) *Table {
	t := &Table{actions: make(map[key]Action, len(actions))}
	for _, a := range actions {
		if a.Kind == "" || a.Name == "" {
			panic(fmt.Sprintf("dispatch: action with empty kind or name: %+v", a))
		}
		k := key{a.Kind, a.Name}
		if _, dup := t.actions[k]; dup {
			panic(fmt.Sprintf("dispatch: action %s/%s registered twice", a.Kind, a.Name))
		}
		t.actions[k] = a
		t.order = append(t.order, k)
	}
	return t
}

// Lookup finds the action for (kind, name).
func (t *Table) Lookup(kind game.Kind, name string) (Action, bool) {
	a, ok := t.actions[key{kind, name}]
	return a, ok
}

// For returns a kind's actions in declaration order.
func (t *Table) For(kind game.Kind) []Action {
	var out []Action
	for _, k := range t.order {
		if k.kind == kind {
			out = append(out, t.actions[k])
		}
	}
	return out
}

// Names returns a kind's action names in declaration order.
func (t *Table) Names(kind game.Kind) []string {
	var out []string
	for _, a := range t.For(kind) {
		out = append(out, a.Name)
	}
	return out
}

// Kinds returns every kind with at least one action, sorted.
func (t *Table) Kinds() []game.Kind {
	seen := map[game.Kind]bool{}
	var out []game.Kind
	for _, k := range t.order {
		if !seen[k.kind] {
			seen[k.kind] = true
			out = append(out, k.kind)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// UnknownActionError is returned for a (kind, name) pair with no action.
type UnknownActionError struct {
	Kind      game.Kind
	Name      string
	Available []string
}

func (e *UnknownActionError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("dispatch: %s has no actions (asked for %q)", e.Kind, e.Name)
	}
	return fmt.Sprintf("dispatch: unknown action %q for %s (available: %s)",
		e.Name, e.Kind, strings.Join(e.Available, ", "))
}

// FieldError reports an input that could not be converted.
type FieldError struct {
	Field  string
	Value  string
	Reason string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("dispatch: field %s=%q: %s", e.Field, e.Value, e.Reason)
}

// Coerce converts raw form input into a request body, applying defaults.
// Options are checked for Choice fields with fixed Choices only; Ref and
// computed choices are validated by the server.
func Coerce(a Action, raw map[string]string) (map[string]any, error) {
	body := make(map[string]any, len(a.Fields))
	known := make(map[string]bool, len(a.Fields))
	for _, f := range a.Fields {
		known[f.Name] = true
		v, ok := raw[f.Name]
		if !ok || v == "" {
			v = f.Default
		}
		if v == "" {
			return nil, &FieldError{Field: f.Name, Reason: "required"}
		}
		switch f.Type {
		case Int, Ref:
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return nil, &FieldError{Field: f.Name, Value: v, Reason: "want an integer"}
			}
			body[f.Name] = n
		case Float:
			x, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, &FieldError{Field: f.Name, Value: v, Reason: "want a number"}
			}
			body[f.Name] = x
		case Choice:
			if len(f.Choices) > 0 && !contains(f.Choices, v) {
				return nil, &FieldError{Field: f.Name, Value: v, Reason: "want one of " + strings.Join(f.Choices, ", ")}
			}
			if f.From != nil {
				if n, err := strconv.Atoi(v); err == nil {
					body[f.Name] = n
					continue
				}
			}
			body[f.Name] = v
		default:
			body[f.Name] = v
		}
	}
	for name := range raw {
		if !known[name] {
			return nil, &FieldError{Field: name, Value: raw[name], Reason: fmt.Sprintf("not a field of %s/%s", a.Kind, a.Name)}
		}
	}
	return body, nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
