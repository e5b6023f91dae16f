package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"

	"github.com/smileynet/xiuxian/internal/dispatch"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
)

// Skill slot ranges.
const (
	mantraSlots    = 6 // 0-5
	firstPowerSlot = 1
	lastPowerSlot  = 3
)

// formPanels are panels whose whole content is one action form.
var formPanels = map[string]struct {
	kind game.Kind
	name string
}{
	router.Login:           {dispatch.KindAccount, "login"},
	router.Register:        {dispatch.KindAccount, "register"},
	router.CreateCharacter: {game.KindCharacter, "create"},
}

// installHooks attaches the client's init hooks to every panel. Panels that
// own kinds fetch all of them on every mount; form panels open their form.
func installHooks(ctx context.Context, reg *router.Registry, caches Caches) {
	for _, p := range reg.Panels() {
		if f, ok := formPanels[p.Key]; ok {
			reg.Hook(p.Key, func(router.Transition) tea.Cmd {
				return func() tea.Msg { return openFormMsg{kind: f.kind, name: f.name} }
			})
			continue
		}
		if len(p.Kinds) == 0 {
			continue
		}
		reg.Hook(p.Key, func(t router.Transition) tea.Cmd {
			return fetchAll(ctx, caches, t.To.Kinds...)
		})
	}
}

// fetch returns a command that fetches one kind without installing it.
func fetch(ctx context.Context, caches Caches, kind game.Kind) tea.Cmd {
	return func() tea.Msg {
		snap, err := caches.Fetch(ctx, kind)
		return SnapshotMsg{Kind: kind, Snap: snap, Err: err}
	}
}

func fetchAll(ctx context.Context, caches Caches, kinds ...game.Kind) tea.Cmd {
	cmds := make([]tea.Cmd, 0, len(kinds))
	for _, k := range kinds {
		cmds = append(cmds, fetch(ctx, caches, k))
	}
	return tea.Batch(cmds...)
}

// row is one selectable entry of the mounted panel.
type row struct {
	kind  game.Kind
	id    int
	label string
}

// rows lists the panel's entries from the current snapshots, kind by kind
// in the panel's order. Rows are derived on every call and never stored.
func (m Model) rows() []row {
	var out []row
	for _, k := range m.panel.Kinds {
		for _, e := range m.deps.Caches.List(k) {
			out = append(out, row{kind: k, id: e.EntityID(), label: rowLabel(e)})
		}
	}
	return out
}

// rowLabel is the one-line list label for an entity.
func rowLabel(e game.Entity) string {
	switch v := e.(type) {
	case *game.Character:
		return fmt.Sprintf("%s  %s %d  Lv %d", v.Name, v.Realm, v.RealmLevel, v.Level)
	case *game.Equipment:
		return joinLabel(fmt.Sprintf("%s %s +%d", v.Type, v.Name, v.Level), QualityBadge(v.Quality))
	case *game.Treasure:
		return joinLabel(fmt.Sprintf("#%d %s", v.Slot, v.Name), QualityBadge(v.Quality), flag(v.Awakened, "awakened"))
	case *game.Mantra:
		return joinLabel(fmt.Sprintf("%s Lv %d", v.Name, v.Level), QualityBadge(v.Quality), slotFlag(v.Equipped, v.Slot))
	case *game.Shentong:
		return joinLabel(fmt.Sprintf("%s Lv %d", v.Name, v.Level), slotFlag(v.Equipped, v.Slot))
	case *game.Pet:
		return joinLabel(fmt.Sprintf("%s Lv %d", v.Name, v.Level), QualityBadge(v.Quality))
	case *game.MarketPet:
		return joinLabel(v.Name, QualityBadge(v.Quality), humanize.Comma(v.Price)+" lingshi")
	case *game.MySect:
		return joinLabel("My sect: "+v.Name, mutedStyle.Render(v.Member.Position))
	case *game.Sect:
		return joinLabel(fmt.Sprintf("%s Lv %d", v.Name, v.Level), mutedStyle.Render(strconv.Itoa(v.MemberCount)+" members"))
	case *game.Rune:
		return joinLabel(v.Name, QualityBadge(v.Quality), flag(v.Equipped, "socketed"))
	case *game.Pill:
		return joinLabel(v.Name, QualityBadge(v.Quality))
	case *game.Plot:
		return v.DisplayName()
	case *game.Crop:
		label := fmt.Sprintf("%s %.0f%%", v.Name, v.GrowthProgress)
		if v.Mature() {
			return joinLabel(label, successStyle.Render("mature"))
		}
		return label
	case *game.Meridian:
		state := "closed"
		if v.Open {
			state = "open"
		}
		return joinLabel(v.Name, mutedStyle.Render(state), fmt.Sprintf("+%g", v.Bonus()))
	case *game.Monster:
		return joinLabel(fmt.Sprintf("%s Lv %d", v.Name, v.Level), mutedStyle.Render(v.AIType))
	}
	return e.DisplayName()
}

func joinLabel(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, " ")
}

func flag(on bool, label string) string {
	if !on {
		return ""
	}
	return successStyle.Render(label)
}

func slotFlag(equipped bool, slot *int) string {
	if !equipped || slot == nil {
		return ""
	}
	return successStyle.Render("slot " + strconv.Itoa(*slot))
}

// summary is the derived header shown above a panel's rows.
func (m Model) summary() string {
	switch m.panel.Key {
	case router.Skills:
		return m.skillSlots()
	case router.Meridian:
		return m.meridianTotals()
	case router.Lingzhi:
		return m.fieldSummary()
	}
	return ""
}

// skillSlots renders mantra slots 0-5 and power slots 1-3 from the mantra
// and shentong snapshots.
func (m Model) skillSlots() string {
	mantras := make(map[int]string)
	for _, e := range m.deps.Caches.List(game.KindMantra) {
		if v, ok := e.(*game.Mantra); ok && v.Equipped && v.Slot != nil {
			mantras[*v.Slot] = v.Name
		}
	}
	powers := make(map[int]string)
	for _, e := range m.deps.Caches.List(game.KindShentong) {
		if v, ok := e.(*game.Shentong); ok && v.Equipped && v.Slot != nil {
			powers[*v.Slot] = v.Name
		}
	}

	var b strings.Builder
	b.WriteString(headingStyle.Render("Technique slots") + "\n")
	for i := 0; i < mantraSlots; i++ {
		fmt.Fprintf(&b, "  %d  %s\n", i, slotName(mantras[i]))
	}
	b.WriteString(headingStyle.Render("Power slots") + "\n")
	for i := firstPowerSlot; i <= lastPowerSlot; i++ {
		fmt.Fprintf(&b, "  %d  %s\n", i, slotName(powers[i]))
	}
	return b.String()
}

func slotName(name string) string {
	if name == "" {
		return mutedStyle.Render("empty")
	}
	return name
}

// meridianTotals sums opened acupoint bonuses across all meridians.
func (m Model) meridianTotals() string {
	var total float64
	open := 0
	list := m.deps.Caches.List(game.KindMeridian)
	for _, e := range list {
		if v, ok := e.(*game.Meridian); ok {
			total += v.Bonus()
			if v.Open {
				open++
			}
		}
	}
	return fmt.Sprintf("%d/%d meridians open, total bonus +%g\n", open, len(list), total)
}

// fieldSummary counts plots and mature crops.
func (m Model) fieldSummary() string {
	plots := m.deps.Caches.List(game.KindPlot)
	free := 0
	for _, e := range plots {
		if v, ok := e.(*game.Plot); ok && !v.Occupied {
			free++
		}
	}
	mature, err := m.deps.Caches.Select(game.KindCrop, "growth_progress >= 100")
	if err != nil {
		return errorStyle.Render(err.Error()) + "\n"
	}
	return fmt.Sprintf("%d plots (%d free), %d ready to harvest\n", len(plots), free, len(mature))
}

// body renders the panel content that fills the template's Body slot.
func (m Model) body() string {
	if f, ok := formPanels[m.panel.Key]; ok {
		if m.form == nil {
			return mutedStyle.Render(fmt.Sprintf("Press enter to %s.", f.name))
		}
		return mutedStyle.Render("Fill in the form on the right.")
	}

	var b strings.Builder
	if s := m.summary(); s != "" {
		b.WriteString(s + "\n")
	}
	rows := m.rows()
	if len(rows) == 0 {
		if m.pending > 0 {
			b.WriteString(m.spinner.View() + " Loading...")
		} else if len(m.panel.Kinds) > 0 {
			b.WriteString(mutedStyle.Render("Nothing here yet. Press n to start."))
		}
		return b.String()
	}

	multi := len(m.panel.Kinds) > 1
	var last game.Kind
	for i, r := range rows {
		if multi && r.kind != last {
			if i > 0 {
				b.WriteString("\n")
			}
			b.WriteString(headingStyle.Render(kindTitle(r.kind)) + "\n")
			last = r.kind
		}
		prefix := "  "
		if i == m.cursor {
			prefix = CursorMarker
		}
		b.WriteString(prefix + r.label + "\n")
	}
	return b.String()
}

// notice is the panel's affordance line, if any.
func (m Model) notice() string {
	if m.panel.Key == router.Home && m.noCharacter {
		return warnStyle.Render("No character found. Press enter to create one.")
	}
	return ""
}

func kindTitle(k game.Kind) string {
	if d, ok := game.Describe(k); ok && d.Title != "" {
		return d.Title
	}
	return string(k)
}

// panelContent composes the mounted template with the panel's body.
func (m Model) panelContent() string {
	out, err := router.Compose(m.panel.TemplateName(), m.deps.Router.Template(), struct {
		Title  string
		Body   string
		Notice string
	}{
		Title:  titleStyle.Render(m.panel.Title),
		Body:   m.body(),
		Notice: m.notice(),
	})
	if err != nil {
		return errorStyle.Render(err.Error())
	}
	return strings.TrimSpace(out)
}
