// Package router maps route fragments to panels and drives their
// lifecycle: mount the panel's template, run its init hook, and clear the
// detail selections of the panel being left.
package router

import (
	"fmt"
	"sort"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/smileynet/xiuxian/internal/game"
)

// Route keys.
const (
	Login           = "login"
	Register        = "register"
	CreateCharacter = "create_character"
	Home            = "home"
	Character       = "character"
	Equipment       = "equipment"
	Treasure        = "treasure"
	Mantra          = "mantra"
	Shentong        = "shentong"
	Skills          = "skills"
	Pet             = "pet"
	Sect            = "sect"
	Rune            = "rune"
	Pill            = "pill"
	Lingzhi         = "lingzhi"
	Meridian        = "meridian"
	Battle          = "battle"
)

// Hook runs each time a panel is mounted, including re-navigation to the
// panel already shown. The returned command performs the panel's fetches.
type Hook func(t Transition) tea.Cmd

// Panel is one routable screen.
type Panel struct {
	Key   string
	Title string
	// Template names the fragment file, "<key>.txt" by default.
	Template string
	// Kinds are the entity kinds the panel owns. Their detail selections
	// are cleared when the panel is left.
	Kinds []game.Kind
	// Public panels are usable without a session.
	Public bool
	Init   Hook
}

// TemplateName returns the fragment file to load for the panel.
func (p Panel) TemplateName() string {
	if p.Template != "" {
		return p.Template
	}
	return p.Key + ".txt"
}

// Registry holds the panel table. Registration happens once at startup.
type Registry struct {
	panels map[string]Panel
	order  []string
}

// NewRegistry creates a registry holding panels. It panics on an empty or
// repeated key.
func NewRegistry(panels ...Panel) *Registry {
	r := &Registry{panels: make(map[string]Panel, len(panels))}
	for _, p := range panels {
		r.Register(p)
	}
	return r
}

// Register adds a panel. Panics if the key is empty or already registered.
func (r *Registry) Register(p Panel) {
	if p.Key == "" {
		panic("router: Register called with empty key")
	}
	if _, dup := r.panels[p.Key]; dup {
		panic(fmt.Sprintf("router: panel %q registered twice", p.Key))
	}
	r.panels[p.Key] = p
	r.order = append(r.order, p.Key)
}

// Hook attaches an init hook to a registered panel.
func (r *Registry) Hook(key string, h Hook) {
	p, ok := r.panels[key]
	if !ok {
		panic(fmt.Sprintf("router: Hook for unknown panel %q", key))
	}
	p.Init = h
	r.panels[key] = p
}

// Lookup finds a panel by key.
func (r *Registry) Lookup(key string) (Panel, bool) {
	p, ok := r.panels[key]
	return p, ok
}

// Panels returns every panel in registration order.
func (r *Registry) Panels() []Panel {
	out := make([]Panel, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.panels[k])
	}
	return out
}

// Keys returns every route key in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.panels))
	for k := range r.panels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultPanels is the game's panel table without init hooks.
func DefaultPanels() []Panel {
	return []Panel{
		{Key: Login, Title: "Login", Public: true},
		{Key: Register, Title: "Register", Public: true},
		{Key: CreateCharacter, Title: "Create character"},
		{Key: Home, Title: "Home", Kinds: []game.Kind{game.KindCharacter}},
		{Key: Character, Title: "Character", Kinds: []game.Kind{game.KindCharacter}},
		{Key: Equipment, Title: "Equipment", Kinds: []game.Kind{game.KindEquipment, game.KindRune}},
		{Key: Treasure, Title: "Treasures", Kinds: []game.Kind{game.KindTreasure}},
		{Key: Mantra, Title: "Mantras", Kinds: []game.Kind{game.KindMantra}},
		{Key: Shentong, Title: "Supernatural powers", Kinds: []game.Kind{game.KindShentong}},
		{Key: Skills, Title: "Skill slots", Kinds: []game.Kind{game.KindMantra, game.KindShentong}},
		{Key: Pet, Title: "Pets", Kinds: []game.Kind{game.KindPet, game.KindPetMarket}},
		{Key: Sect, Title: "Sects", Kinds: []game.Kind{game.KindSect, game.KindMySect}},
		{Key: Rune, Title: "Runes", Kinds: []game.Kind{game.KindRune, game.KindEquipment, game.KindTreasure}},
		{Key: Pill, Title: "Alchemy", Kinds: []game.Kind{game.KindPill}},
		{Key: Lingzhi, Title: "Spirit fields", Kinds: []game.Kind{game.KindPlot, game.KindCrop}},
		{Key: Meridian, Title: "Meridians", Kinds: []game.Kind{game.KindMeridian}},
		{Key: Battle, Title: "Battle", Kinds: []game.Kind{game.KindMonster}},
	}
}
