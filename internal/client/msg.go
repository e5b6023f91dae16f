package client

import (
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
)

// Mode is the client's input mode.
type Mode int

const (
	ModeBrowse  Mode = iota // Moving through the panel's entries.
	ModeDetail              // A detail view has focus.
	ModeActions             // Choosing an action.
	ModeForm                // Filling an action form.
	ModeRoute               // Typing a route into the prompt.
)

// String returns the mode's name.
func (m Mode) String() string {
	switch m {
	case ModeDetail:
		return "detail"
	case ModeActions:
		return "actions"
	case ModeForm:
		return "form"
	case ModeRoute:
		return "route"
	default:
		return "browse"
	}
}

// NavigateMsg asks the client to mount a route.
type NavigateMsg struct {
	Route string
}

// SnapshotMsg carries one fetched cache snapshot. Snap is nil when Err is
// set. It is installed by Update, never by the command that fetched it.
type SnapshotMsg struct {
	Kind game.Kind
	Snap *cache.Snapshot
	Err  error
}

// OutcomeMsg carries the result of an executed action.
type OutcomeMsg struct {
	Kind    game.Kind
	Action  string
	Outcome *dispatch.Outcome
	Err     error
}

// EstimateMsg carries a treasure rate estimate tagged with the preview
// input sequence it answers.
type EstimateMsg struct {
	Seq      uint64
	Estimate *detail.Estimate
	Err      error
}

// openFormMsg asks Update to show the form for an action.
type openFormMsg struct {
	kind game.Kind
	name string
	id   int
}

// estimateTickMsg fires once the debounce window for input seq elapses.
type estimateTickMsg struct {
	seq uint64
}
