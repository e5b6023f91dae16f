package client

import (
	"bytes"
	"context"
	"math"
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"

	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/game"
	"github.com/smileynet/xiuxian/internal/router"
)

func actionNames(items []menuItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.action.Name)
	}
	return out
}

func hasAction(items []menuItem, name string) bool {
	for _, n := range actionNames(items) {
		if n == name {
			return true
		}
	}
	return false
}

func TestInit_WithoutSession_MountsLoginForm(t *testing.T) {
	h := newHarness(t)

	m := start(t, h.model())

	if m.panel.Key != router.Login {
		t.Fatalf("panel = %q, want login", m.panel.Key)
	}
	if m.mode != ModeForm || m.form == nil || m.form.action.Name != "login" {
		t.Errorf("mode = %s, form = %+v; want the login form", m.mode, m.form)
	}
}

func TestInit_GuardedRouteWithoutSession_FallsBackToLogin(t *testing.T) {
	h := newHarness(t)

	m := start(t, h.model(WithStartRoute("equipment")))

	if m.panel.Key != router.Login {
		t.Errorf("panel = %q, want login", m.panel.Key)
	}
}

func TestLoginForm_Success_NavigatesHomeWithCreateAffordance(t *testing.T) {
	// Given: an account without a character
	h := newHarness(t)
	if _, err := h.gw.Register(context.Background(), "hanli", "pw", ""); err != nil {
		t.Fatal(err)
	}
	m := start(t, h.model())

	// When: the login form is submitted
	m = fill(t, m, map[string]string{"username": "hanli", "password": "pw"})
	m = run(t, m, keyEnter)

	// Then: home is mounted and offers character creation
	if m.panel.Key != router.Home {
		t.Fatalf("panel = %q, want home", m.panel.Key)
	}
	if !h.sess.Authenticated() {
		t.Error("session not stored")
	}
	if !m.noCharacter {
		t.Error("noCharacter = false after a not-found character fetch")
	}
	if !containsPlainText(m.View(), "No character found") {
		t.Errorf("home view lacks the create affordance:\n%s", stripANSI(m.View()))
	}
	if m.Status() != "Logged in" {
		t.Errorf("status = %q", m.Status())
	}
}

func TestLoginForm_Rejected_KeepsFormWithMessage(t *testing.T) {
	h := newHarness(t)
	if _, err := h.gw.Register(context.Background(), "hanli", "pw", ""); err != nil {
		t.Fatal(err)
	}
	m := start(t, h.model())

	m = fill(t, m, map[string]string{"username": "hanli", "password": "wrong"})
	m = run(t, m, keyEnter)

	if m.panel.Key != router.Login || m.mode != ModeForm {
		t.Fatalf("panel = %q mode = %s, want the login form", m.panel.Key, m.mode)
	}
	if m.form.err != "Invalid credentials" {
		t.Errorf("form error = %q", m.form.err)
	}
	if m.form.busy {
		t.Error("form still busy after the outcome")
	}
}

func TestForm_MissingField_ShowsCoerceError(t *testing.T) {
	h := newHarness(t)
	m := start(t, h.model())

	m = run(t, m, keyEnter)

	if m.form == nil || !strings.Contains(m.form.err, "username") {
		t.Errorf("form = %+v, want a required-field error", m.form)
	}
}

func TestHome_CreateCharacter(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.gw.Register(ctx, "wang", "pw", "")
	if _, err := h.gw.Login(ctx, "wang", "pw"); err != nil {
		t.Fatal(err)
	}
	m := start(t, h.model())
	if m.panel.Key != router.Home || !m.noCharacter {
		t.Fatalf("panel = %q noCharacter = %v", m.panel.Key, m.noCharacter)
	}

	m = run(t, m, keyEnter)
	if m.panel.Key != router.CreateCharacter || m.form == nil {
		t.Fatalf("panel = %q form = %v, want the create form", m.panel.Key, m.form)
	}
	m = fill(t, m, map[string]string{"name": "Wang Lin", "linggen": "水"})
	m = run(t, m, keyEnter)

	if m.panel.Key != router.Character {
		t.Fatalf("panel = %q, want character", m.panel.Key)
	}
	if m.noCharacter {
		t.Error("noCharacter still set")
	}
	rows := m.rows()
	if len(rows) != 1 || !strings.Contains(rows[0].label, "Wang Lin") {
		t.Errorf("rows = %+v", rows)
	}
}

func TestRuneEquip_ThroughDetailForm(t *testing.T) {
	// Given: a forged rune on the rune panel
	h := newHarness(t)
	h.signUp(t, "zhang")
	h.perform(t, game.KindRune, 0, "forge", map[string]any{"name": "Fire Rune", "quality": "普通", "attribute_type": "attack", "attribute_value": 10, "material_quality_factor": 1.0})
	runeID := h.set.List(game.KindRune)[0].EntityID()
	m := start(t, h.model(WithStartRoute("rune")))

	// When: its detail is opened and equip-to-equipment submitted
	m = cursorTo(t, m, game.KindRune, runeID)
	m = run(t, m, keyEnter)
	if m.mode != ModeDetail {
		t.Fatalf("mode = %s, want detail", m.mode)
	}
	m = chooseAction(t, m, "equip-to-equipment")
	if m.mode != ModeForm {
		t.Fatalf("mode = %s, want form", m.mode)
	}
	weapon := h.set.List(game.KindEquipment)[0]
	m = fill(t, m, map[string]string{"equip_id": strconv.Itoa(weapon.EntityID())})
	m = run(t, m, keyEnter)

	// Then: the detail is rerendered from the refetched cache
	if m.mode != ModeDetail || m.form != nil {
		t.Fatalf("mode = %s form = %v, want back on the detail", m.mode, m.form)
	}
	v, ok := m.Detail()
	if !ok {
		t.Fatal("detail closed")
	}
	var equipment string
	for _, f := range v.Fields {
		if f.Label == "Equipment" {
			equipment = f.Value
		}
	}
	if equipment != weapon.DisplayName() {
		t.Errorf("Equipment = %q, want %q", equipment, weapon.DisplayName())
	}
	if m.Status() != "Rune equipped to equipment" {
		t.Errorf("status = %q", m.Status())
	}
	if hasAction(m.entityActions(game.KindRune, runeID), "equip-to-equipment") {
		t.Error("equip still offered for a socketed rune")
	}
}

func TestCropHarvest_OfferedOnlyWhenMature(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "li")
	h.perform(t, game.KindPlot, 0, "init", nil)
	h.perform(t, game.KindCrop, 0, "plant", map[string]any{"name": "灵芝", "quality": "普通"})
	cropID := h.set.List(game.KindCrop)[0].EntityID()
	m := start(t, h.model(WithStartRoute("lingzhi")))

	if hasAction(m.entityActions(game.KindCrop, cropID), "harvest") {
		t.Error("harvest offered for a seedling")
	}
	for i := 0; i < 4; i++ {
		h.perform(t, game.KindCrop, cropID, "care", map[string]any{"type": "water"})
	}
	m = run(t, m, keyRunes("r"))

	if !hasAction(m.entityActions(game.KindCrop, cropID), "harvest") {
		t.Errorf("harvest not offered for a mature crop; actions = %v", actionNames(m.entityActions(game.KindCrop, cropID)))
	}
	if !containsPlainText(m.View(), "1 ready to harvest") {
		t.Errorf("field summary missing:\n%s", stripANSI(m.View()))
	}

	// Harvest closes the detail and drops the crop row.
	m = cursorTo(t, m, game.KindCrop, cropID)
	m = run(t, m, keyEnter)
	m = chooseAction(t, m, "harvest")
	if _, open := m.Detail(); open {
		t.Error("detail still open after harvest")
	}
	if m.mode != ModeBrowse {
		t.Errorf("mode = %s, want browse", m.mode)
	}
	for _, r := range m.rows() {
		if r.kind == game.KindCrop {
			t.Errorf("crop row %d survived harvest", r.id)
		}
	}
}

func TestSkills_DerivedSlotView(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "sun")
	if _, err := h.set.Refresh(context.Background(), game.KindMantra); err != nil {
		t.Fatal(err)
	}
	mantra := h.set.List(game.KindMantra)[0]
	h.perform(t, game.KindMantra, mantra.EntityID(), "equip", map[string]any{"slot": 2})

	m := start(t, h.model(WithStartRoute("skills")))
	view := stripANSI(m.View())

	if !strings.Contains(view, "2  "+mantra.DisplayName()) {
		t.Errorf("slot 2 does not show %s:\n%s", mantra.DisplayName(), view)
	}
	for _, want := range []string{"Technique slots", "Power slots", "0  empty", "3  empty"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestMeridian_AcupointChoicesFromSelection(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "zhou")
	m := start(t, h.model(WithStartRoute("meridian")))
	mer := h.set.List(game.KindMeridian)[0].(*game.Meridian)
	for _, it := range m.panelActions() {
		if it.action.Name == "open-acupoint" {
			t.Error("open-acupoint offered without a selected meridian")
		}
	}

	m = cursorTo(t, m, game.KindMeridian, mer.ID)
	m = run(t, m, keyEnter)
	m = chooseAction(t, m, "open")
	if !containsPlainText(m.View(), "1/2 meridians open") {
		t.Errorf("totals not updated:\n%s", stripANSI(m.View()))
	}

	m = cursorTo(t, m, game.KindMeridian, mer.ID)
	m = run(t, m, keyEnter)
	m = chooseAction(t, m, "open-acupoint")
	if m.form == nil || len(m.form.fields[0].options) != len(mer.Acupoints) {
		t.Fatalf("acupoint form = %+v", m.form)
	}
	m = run(t, m, keyEnter)
	opened, _ := h.set.Get(game.KindMeridian, mer.ID)
	if opened.(*game.Meridian).Bonus() == 0 {
		t.Error("acupoint not opened")
	}
}

func TestRoutePrompt_UnknownRouteKeepsPanel(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "chen")
	m := start(t, h.model(WithStartRoute("equipment")))

	m = run(t, m, keyRunes(":"))
	if m.mode != ModeRoute {
		t.Fatalf("mode = %s, want route", m.mode)
	}
	m.prompt.SetValue("equipmnt")
	m = run(t, m, keyEnter)

	if m.panel.Key != router.Equipment {
		t.Errorf("panel = %q, want equipment kept", m.panel.Key)
	}
	if !strings.Contains(m.Status(), `did you mean "equipment"`) {
		t.Errorf("status = %q", m.Status())
	}
}

func TestRoutePrompt_Navigates(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "chen")
	m := start(t, h.model())

	m = run(t, m, keyRunes(":"))
	m.prompt.SetValue("#Battle")
	m = run(t, m, keyEnter)

	if m.panel.Key != router.Battle {
		t.Fatalf("panel = %q, want battle", m.panel.Key)
	}
	if len(m.rows()) == 0 {
		t.Error("battle panel shows no monsters")
	}
}

func TestNavigate_ClosesOpenDetail(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "qin")
	m := start(t, h.model(WithStartRoute("equipment")))
	m = run(t, m, keyEnter)
	if _, open := m.Detail(); !open {
		t.Fatal("detail not opened")
	}

	m = run(t, m, NavigateMsg{Route: "pill"})

	if _, open := m.Detail(); open {
		t.Error("detail survived navigation")
	}
	if _, ok := h.views.Selected(game.KindEquipment); ok {
		t.Error("equipment selection not cleared on leave")
	}
}

func TestNavigate_ReenteringPanelReleasesSelection(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "shi")
	m := start(t, h.model(WithStartRoute("equipment")))

	// Given: an open equipment detail
	m = run(t, m, keyEnter)
	v, open := m.Detail()
	if !open {
		t.Fatal("detail not opened")
	}

	// When: the same route is navigated to again
	m = run(t, m, NavigateMsg{Route: "equipment"})

	// Then: the surface and the controller selection are both gone
	if _, open := m.Detail(); open {
		t.Error("detail survived re-entry")
	}
	if h.views.IsOpen(game.KindEquipment, v.ID) {
		t.Errorf("equipment %d still selected after re-entry", v.ID)
	}
	if m.panel.Key != router.Equipment {
		t.Errorf("panel = %q", m.panel.Key)
	}
}

func TestSessionExpired_ReturnsToLogin(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ma")
	m := start(t, h.model(WithStartRoute("equipment")))

	h.srv.Expire("ma")
	m = run(t, m, keyRunes("r"))

	if m.panel.Key != router.Login {
		t.Fatalf("panel = %q, want login", m.panel.Key)
	}
	if !strings.Contains(m.Status(), "Session expired") {
		t.Errorf("status = %q", m.Status())
	}
	if h.sess.Authenticated() {
		t.Error("session survived a 401")
	}
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "ye")
	m := start(t, h.model())

	m = run(t, m, keyRunes("L"))

	if m.panel.Key != router.Login || h.sess.Authenticated() {
		t.Errorf("panel = %q authenticated = %v", m.panel.Key, h.sess.Authenticated())
	}
}

func TestCyclePanel(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "bai")
	m := start(t, h.model())

	next := run(t, m, keyTab)
	if next.panel.Key != router.Character {
		t.Errorf("tab from home = %q, want character", next.panel.Key)
	}
	prev := run(t, m, tea.KeyMsg{Type: tea.KeyShiftTab})
	if prev.panel.Key != router.Battle {
		t.Errorf("shift+tab from home = %q, want battle", prev.panel.Key)
	}
}

func TestTreasurePreview_DebouncedAndSequenced(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "liu")
	h.perform(t, game.KindTreasure, 0, "forge", map[string]any{"slot": 1, "name": "Gourd", "material_quality_factor": 1.0})
	m := start(t, h.model(WithStartRoute("treasure")))

	m = run(t, m, keyEnter)
	est, err := m.preview.Result()
	if err != nil || est == nil || math.Abs(est.AwakenRate-0.3) > 1e-9 {
		t.Fatalf("preview = %+v, %v; want awaken 0.3", est, err)
	}

	m = run(t, m, keyRunes("+"))
	est, _ = m.preview.Result()
	if math.Abs(m.preview.Factor()-1.1) > 1e-9 || math.Abs(est.AwakenRate-0.33) > 1e-9 {
		t.Errorf("factor = %v awaken = %v, want 1.1 and 0.33", m.preview.Factor(), est.AwakenRate)
	}

	// A late answer to an earlier input is dropped.
	m = run(t, m, EstimateMsg{Seq: 1, Estimate: &detail.Estimate{AwakenRate: 0.99}})
	if est, _ := m.preview.Result(); est.AwakenRate == 0.99 {
		t.Error("stale estimate replaced the current one")
	}
	if !containsPlainText(m.viewport.View(), "Awaken") {
		t.Errorf("detail lacks the preview:\n%s", stripANSI(m.viewport.View()))
	}

	// Closing the detail drops the preview.
	m = run(t, m, keyEsc)
	if est, _ := m.preview.Result(); est != nil {
		t.Error("preview survived closing the detail")
	}

	// Reopening starts again from the base material quality.
	m = run(t, m, keyEnter)
	est, _ = m.preview.Result()
	if m.preview.Factor() != 1 || est == nil || math.Abs(est.AwakenRate-0.3) > 1e-9 {
		t.Errorf("reopened factor = %v awaken = %+v, want 1 and 0.3", m.preview.Factor(), est)
	}
}

func TestSnapshotError_ShowsStatus(t *testing.T) {
	h := newHarness(t)
	h.signUp(t, "he")
	m := start(t, h.model(WithStartRoute("pet")))

	m = run(t, m, SnapshotMsg{Kind: game.KindPet, Err: context.DeadlineExceeded})

	if !strings.Contains(m.Status(), "Could not load pets") {
		t.Errorf("status = %q", m.Status())
	}
}

func TestHelpBindings(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModeBrowse, "go to"},
		{ModeDetail, "actions"},
		{ModeActions, "choose"},
		{ModeForm, "submit"},
		{ModeRoute, "go"},
	}
	for _, tt := range tests {
		t.Run(tt.mode.String(), func(t *testing.T) {
			found := false
			for _, b := range HelpBindings(tt.mode).ShortHelp() {
				if b.Help().Desc == tt.want {
					found = true
				}
			}
			if !found {
				t.Errorf("HelpBindings(%s) lacks %q", tt.mode, tt.want)
			}
		})
	}
}

func TestPaneWidths(t *testing.T) {
	tests := []struct {
		total, left, right int
	}{
		{0, 0, 0},
		{160, 64, 96},
		{60, MinLeftWidth, 60 - MinLeftWidth},
	}
	for _, tt := range tests {
		l, r := PaneWidths(tt.total)
		if l != tt.left || r != tt.right {
			t.Errorf("PaneWidths(%d) = %d, %d; want %d, %d", tt.total, l, r, tt.left, tt.right)
		}
	}
}

func TestQualityBadge(t *testing.T) {
	if QualityBadge("") != "" {
		t.Error("empty quality rendered a badge")
	}
	if got := stripANSI(QualityBadge("传说")); got != "[传说]" {
		t.Errorf("QualityBadge = %q", got)
	}
}

// TestTeatest_LoginFlow drives a real program through the login form.
func TestTeatest_LoginFlow(t *testing.T) {
	h := newHarness(t)
	if _, err := h.gw.Register(context.Background(), "hanli", "pw", ""); err != nil {
		t.Fatal(err)
	}
	tm := teatest.NewTestModel(t, h.model(), teatest.WithInitialTermSize(160, 48))

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("Username"))
	}, teatest.WithDuration(3*time.Second))

	tm.Type("hanli")
	tm.Send(tea.KeyMsg{Type: tea.KeyTab})
	tm.Type("pw")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(b []byte) bool {
		return bytes.Contains(b, []byte("No character found"))
	}, teatest.WithDuration(3*time.Second))

	tm.Send(keyRunes("q"))
	tm.WaitFinished(t, teatest.WithFinalTimeout(3*time.Second))

	final := tm.FinalModel(t).(Model)
	if final.panel.Key != router.Home {
		t.Errorf("final panel = %q, want home", final.panel.Key)
	}
}
