// Package detail builds render instructions for a single selected entity.
//
// The controller reads only from the cache; it never fetches. Opening an id
// that is not cached yields a View with Found=false.
package detail

import (
	"fmt"

	"github.com/smileynet/xiuxian/internal/game"
)

// Reader is the cache surface the controller reads.
type Reader interface {
	Get(kind game.Kind, id int) (game.Entity, bool)
	Label(kind game.Kind, id *int, placeholder string) string
}

// Field is one labelled line of a detail view.
type Field struct {
	Label string
	Value string
}

// View is a fully resolved render instruction for one entity.
type View struct {
	Kind    game.Kind
	ID      int
	Found   bool
	Title   string
	Fields  []Field
	Actions []string
}

// ActionLister returns the action names available on a kind's detail view.
type ActionLister func(kind game.Kind) []string

// Controller tracks at most one selected id per kind.
type Controller struct {
	cache    Reader
	actions  ActionLister
	selected map[game.Kind]int
}

// Option configures a Controller.
type Option func(*Controller)

// WithActions sets the source of per-kind action names.
func WithActions(fn ActionLister) Option {
	return func(c *Controller) { c.actions = fn }
}

// NewController creates a controller reading from r.
func NewController(r Reader, opts ...Option) *Controller {
	c := &Controller{
		cache:    r,
		actions:  func(game.Kind) []string { return nil },
		selected: make(map[game.Kind]int),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Open selects id for kind and returns its view. Opening the same id twice
// yields the same view and leaves the selection unchanged.
func (c *Controller) Open(kind game.Kind, id int) View {
	c.selected[kind] = id
	return c.render(kind, id)
}

// Close clears the selection for kind.
func (c *Controller) Close(kind game.Kind) {
	delete(c.selected, kind)
}

// CloseAll clears the selection for every listed kind.
func (c *Controller) CloseAll(kinds ...game.Kind) {
	for _, k := range kinds {
		delete(c.selected, k)
	}
}

// Selected returns the selected id for kind.
func (c *Controller) Selected(kind game.Kind) (int, bool) {
	id, ok := c.selected[kind]
	return id, ok
}

// IsOpen reports whether kind's detail is open on id.
func (c *Controller) IsOpen(kind game.Kind, id int) bool {
	sel, ok := c.selected[kind]
	return ok && sel == id
}

// Rerender rebuilds the view for the current selection from the current
// snapshot. ok is false when nothing is selected for kind.
func (c *Controller) Rerender(kind game.Kind) (View, bool) {
	id, ok := c.selected[kind]
	if !ok {
		return View{}, false
	}
	return c.render(kind, id), true
}

func (c *Controller) render(kind game.Kind, id int) View {
	v := View{Kind: kind, ID: id}
	e, ok := c.cache.Get(kind, id)
	if !ok {
		v.Title = fmt.Sprintf("%s #%d not found", kind, id)
		return v
	}
	v.Found = true
	v.Title, v.Fields = describe(e, c.cache)
	v.Actions = c.actions(kind)
	return v
}
