package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/smileynet/xiuxian/internal/api"
	"github.com/smileynet/xiuxian/internal/cache"
	"github.com/smileynet/xiuxian/internal/detail"
	"github.com/smileynet/xiuxian/internal/game"
)

type handler func(body map[string]any) (int, string)

// fakeGateway routes "METHOD /path" to handlers and records every call.
type fakeGateway struct {
	mu       sync.Mutex
	routes   map[string]handler
	calls    []string
	bodies   map[string]map[string]any
	loggedIn string
}

func newGateway() *fakeGateway {
	return &fakeGateway{routes: map[string]handler{}, bodies: map[string]map[string]any{}}
}

func (g *fakeGateway) handle(route string, h handler) { g.routes[route] = h }

func (g *fakeGateway) Call(_ context.Context, method, endpoint string, body any) (*api.Response, error) {
	g.mu.Lock()
	route := method + " " + endpoint
	g.calls = append(g.calls, route)
	h, ok := g.routes[route]
	g.mu.Unlock()

	var m map[string]any
	if body != nil {
		data, _ := json.Marshal(body)
		json.Unmarshal(data, &m)
		g.mu.Lock()
		g.bodies[route] = m
		g.mu.Unlock()
	}
	if !ok {
		return &api.Response{Status: 404, Category: api.NotFound, Message: "no route " + route}, nil
	}
	status, payload := h(m)
	var msg struct{ Message string }
	json.Unmarshal([]byte(payload), &msg)
	return &api.Response{Status: status, Category: api.Categorize(status), Payload: []byte(payload), Message: msg.Message}, nil
}

func (g *fakeGateway) Login(_ context.Context, user, pass string) (string, error) {
	if pass != "secret" {
		return "", &api.Error{Category: api.ClientError, Status: 401, Message: "Invalid credentials"}
	}
	g.loggedIn = user
	return "tok", nil
}

func (g *fakeGateway) Register(_ context.Context, user, _, _ string) (string, error) {
	return "User " + user + " registered", nil
}

func (g *fakeGateway) callCount(prefix string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		if strings.HasPrefix(c, prefix) {
			n++
		}
	}
	return n
}

// runeServer is a tiny stateful backend for the rune/equipment scenario.
type runeServer struct {
	mu       sync.Mutex
	equipped map[int]int // rune id -> equipment id
}

func (s *runeServer) install(g *fakeGateway) {
	g.handle("GET /rune", func(map[string]any) (int, string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if eq, ok := s.equipped[7]; ok {
			return 200, fmt.Sprintf(`[{"id":7,"name":"Fire Rune","equipment_id":%d,"equipped":true}]`, eq)
		}
		return 200, `[{"id":7,"name":"Fire Rune","equipment_id":null,"equipped":false}]`
	})
	g.handle("GET /equipment", func(map[string]any) (int, string) {
		return 200, `[{"id":3,"name":"Azure Sword","rune_slots":2},{"id":4,"name":"Plain Robe","rune_slots":0}]`
	})
	g.handle("POST /rune/equip/equipment", func(b map[string]any) (int, string) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.equipped[int(b["rune_id"].(float64))] = int(b["equip_id"].(float64))
		return 200, `{"message":"Rune equipped to equipment"}`
	})
}

type fixture struct {
	gw    *fakeGateway
	set   *cache.Set
	views *detail.Controller
	d     *Dispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gw := newGateway()
	set := cache.New(gw)
	views := detail.NewController(set)
	return &fixture{gw: gw, set: set, views: views, d: New(NewTable(DefaultActions()...), gw, set, views, nil)}
}

func (f *fixture) refresh(t *testing.T, kinds ...game.Kind) {
	t.Helper()
	for _, k := range kinds {
		if _, err := f.set.Refresh(context.Background(), k); err != nil {
			t.Fatalf("Refresh(%s) error = %v", k, err)
		}
	}
}

func TestDefaultActions_BuildsTable(t *testing.T) {
	table := NewTable(DefaultActions()...)
	for _, k := range []game.Kind{game.KindEquipment, game.KindRune, game.KindCrop, KindAccount} {
		if len(table.For(k)) == 0 {
			t.Errorf("no actions for %s", k)
		}
	}
	a, ok := table.Lookup(game.KindRune, "equip-to-equipment")
	if !ok {
		t.Fatal("rune/equip-to-equipment missing")
	}
	got := a.RefreshKinds()
	if len(got) != 2 || got[0] != game.KindRune || got[1] != game.KindEquipment {
		t.Errorf("RefreshKinds() = %v, want [rune equipment]", got)
	}
	if !a.NeedsID() {
		t.Error("rune equip should need a selected rune")
	}
	login, _ := table.Lookup(KindAccount, "login")
	if len(login.RefreshKinds()) != 0 {
		t.Errorf("login refreshes %v, want nothing", login.RefreshKinds())
	}
}

func TestNewTable_DuplicatePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewTable with a duplicate pair did not panic")
		}
	}()
	NewTable(
		post(game.KindPet, "feed", "/pet/feed/{id}"),
		post(game.KindPet, "feed", "/pet/feed2/{id}"),
	)
}

func TestNewTable_EmptyNamePanics(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("NewTable with an empty name did not panic")
		}
	}()
	NewTable(Action{Kind: game.KindPet})
}

func TestPerform_RuneEquipScenario(t *testing.T) {
	f := newFixture(t)
	srv := &runeServer{equipped: map[int]int{}}
	srv.install(f.gw)
	f.refresh(t, game.KindRune, game.KindEquipment)
	f.views.Open(game.KindRune, 7)

	o, err := f.d.Execute(context.Background(), game.KindRune, 7, "equip-to-equipment", map[string]any{"equip_id": 3})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if body := f.gw.bodies["POST /rune/equip/equipment"]; body["rune_id"] != float64(7) || body["equip_id"] != float64(3) {
		t.Errorf("request body = %v", body)
	}

	// The server accepted, but nothing is shown until the refetch is installed.
	r, _ := cache.Lookup[*game.Rune](f.set, game.KindRune, 7)
	if r.Equipped {
		t.Fatal("rune shows equipped before the refetched snapshot was installed")
	}

	res := f.d.Apply(o)
	r, _ = cache.Lookup[*game.Rune](f.set, game.KindRune, 7)
	if !r.Equipped || r.EquipmentID == nil || *r.EquipmentID != 3 {
		t.Errorf("rune after Apply = %+v, want equipped to 3", r)
	}
	if res.Message != "Rune equipped to equipment" {
		t.Errorf("Message = %q", res.Message)
	}
	if res.View == nil {
		t.Fatal("open rune detail was not rerendered")
	}
	var equipment string
	for _, fl := range res.View.Fields {
		if fl.Label == "Equipment" {
			equipment = fl.Value
		}
	}
	if equipment != "Azure Sword" {
		t.Errorf("rerendered view Equipment = %q, want the refreshed reference", equipment)
	}
	if f.gw.callCount("GET /equipment") != 2 {
		t.Errorf("equipment fetched %d times, want 2 (initial + after action)", f.gw.callCount("GET /equipment"))
	}
}

func TestPerform_CloseEffect(t *testing.T) {
	f := newFixture(t)
	level := 1
	f.gw.handle("GET /equipment", func(map[string]any) (int, string) {
		return 200, fmt.Sprintf(`[{"id":3,"name":"Azure Sword","level":%d}]`, level)
	})
	f.gw.handle("POST /equipment/upgrade/3", func(map[string]any) (int, string) {
		level++
		return 200, `{"message":"Equipment upgraded"}`
	})
	f.refresh(t, game.KindEquipment)

	f.views.Open(game.KindEquipment, 3)
	res, err := f.d.Perform(context.Background(), game.KindEquipment, 3, "upgrade", nil)
	if err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if !res.Closed || f.views.IsOpen(game.KindEquipment, 3) {
		t.Error("detail still open after a closing action")
	}
	e, _ := cache.Lookup[*game.Equipment](f.set, game.KindEquipment, 3)
	if e.Level != 2 {
		t.Errorf("level = %d, want refreshed 2", e.Level)
	}
	if _, ok := f.gw.bodies["POST /equipment/upgrade/3"]; ok {
		t.Error("empty action sent a body")
	}
}

func TestPerform_DetailOpenOnOtherIDUntouched(t *testing.T) {
	f := newFixture(t)
	f.gw.handle("GET /equipment", func(map[string]any) (int, string) {
		return 200, `[{"id":3,"name":"a"},{"id":4,"name":"b"}]`
	})
	f.gw.handle("POST /equipment/upgrade/3", func(map[string]any) (int, string) { return 200, `{"message":"ok"}` })
	f.refresh(t, game.KindEquipment)

	f.views.Open(game.KindEquipment, 4)
	res, err := f.d.Perform(context.Background(), game.KindEquipment, 3, "upgrade", nil)
	if err != nil {
		t.Fatal(err)
	}
	if res.Closed || !f.views.IsOpen(game.KindEquipment, 4) {
		t.Error("action on id 3 closed the detail open on id 4")
	}
}

func TestPerform_RejectedLeavesCacheAlone(t *testing.T) {
	f := newFixture(t)
	f.gw.handle("GET /equipment", func(map[string]any) (int, string) { return 200, `[{"id":3,"name":"a"}]` })
	f.gw.handle("POST /equipment/strengthen/3", func(map[string]any) (int, string) {
		return 400, `{"message":"Not enough ling shi","required":800}`
	})
	f.refresh(t, game.KindEquipment)
	before := f.set.Snapshot(game.KindEquipment)
	f.views.Open(game.KindEquipment, 3)

	_, err := f.d.Perform(context.Background(), game.KindEquipment, 3, "strengthen", map[string]any{"material_quality_factor": 1.0})
	if cat, _ := api.CategoryOf(err); cat != api.ClientError {
		t.Fatalf("Perform() error = %v, want client-error", err)
	}
	if api.Message(err) != "Not enough ling shi" {
		t.Errorf("message = %q", api.Message(err))
	}
	if f.set.Snapshot(game.KindEquipment) != before {
		t.Error("cache replaced after a rejected action")
	}
	if f.gw.callCount("GET /equipment") != 1 {
		t.Error("rejected action triggered a refetch")
	}
	if !f.views.IsOpen(game.KindEquipment, 3) {
		t.Error("rejected action closed the detail view")
	}
}

type downGateway struct{ *fakeGateway }

func (downGateway) Call(context.Context, string, string, any) (*api.Response, error) {
	return nil, &api.Error{Category: api.Transport, Message: "could not reach the server"}
}

func TestPerform_TransportFailure(t *testing.T) {
	gw := downGateway{newGateway()}
	set := cache.New(gw)
	d := New(NewTable(DefaultActions()...), gw, set, nil, nil)
	_, err := d.Perform(context.Background(), game.KindPet, 1, "feed", nil)
	if cat, _ := api.CategoryOf(err); cat != api.Transport {
		t.Errorf("Perform() error = %v, want transport", err)
	}
}

func TestPerform_RefetchFailureIsAWarning(t *testing.T) {
	f := newFixture(t)
	f.gw.handle("POST /pill/use/2", func(map[string]any) (int, string) { return 200, `{"message":"Pill consumed"}` })
	f.gw.handle("GET /pill", func(map[string]any) (int, string) { return 200, `{"pills":[{"id":2,"name":"Qi"}]}` })
	f.gw.handle("GET /character", func(map[string]any) (int, string) { return 500, `{"message":"db locked"}` })

	res, err := f.d.Perform(context.Background(), game.KindPill, 2, "use", nil)
	if err != nil {
		t.Fatalf("Perform() error = %v", err)
	}
	if res.Message != "Pill consumed" || res.Warning == nil {
		t.Errorf("res = %+v, want message and a refetch warning", res)
	}
	if !f.set.Loaded(game.KindPill) || f.set.Loaded(game.KindCharacter) {
		t.Error("successful refetches should install, failed ones not")
	}
}

func TestExecute_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.d.Execute(context.Background(), game.KindPet, 1, "dance", nil)
	var unknown *UnknownActionError
	if !errors.As(err, &unknown) {
		t.Fatalf("error = %v, want *UnknownActionError", err)
	}
	if !strings.Contains(unknown.Error(), "feed") {
		t.Errorf("error %q should list available actions", unknown.Error())
	}

	_, err = f.d.Execute(context.Background(), game.KindEquipment, 0, "upgrade", nil)
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("error = %v, want ErrNoSelection", err)
	}
	_, err = f.d.Execute(context.Background(), game.KindMeridian, 0, "open-acupoint", map[string]any{"acupoint_id": 14})
	if !errors.Is(err, ErrNoSelection) {
		t.Errorf("open-acupoint without a meridian: error = %v, want ErrNoSelection", err)
	}
	if len(f.gw.calls) != 0 {
		t.Errorf("calls = %v, want none", f.gw.calls)
	}
}

func TestPerform_DoubleActionRaceLastWriteWins(t *testing.T) {
	f := newFixture(t)
	var mu sync.Mutex
	intimacy := 1
	f.gw.handle("POST /pet/feed/1", func(map[string]any) (int, string) {
		mu.Lock()
		intimacy++
		mu.Unlock()
		return 200, `{"message":"Fed"}`
	})
	f.gw.handle("GET /pet", func(map[string]any) (int, string) {
		mu.Lock()
		defer mu.Unlock()
		return 200, fmt.Sprintf(`[{"id":1,"name":"Fox %d","intimacy_level":%d}]`, intimacy, intimacy)
	})
	f.refresh(t, game.KindPet)
	ctx := context.Background()

	first, err := f.d.Execute(ctx, game.KindPet, 1, "feed", nil)
	if err != nil {
		t.Fatal(err)
	}
	second, err := f.d.Execute(ctx, game.KindPet, 1, "feed", nil)
	if err != nil {
		t.Fatal(err)
	}

	// Completions arrive out of order: the later request lands first.
	f.d.Apply(second)
	f.d.Apply(first)

	p, _ := cache.Lookup[*game.Pet](f.set, game.KindPet, 1)
	if p.IntimacyLevel != 2 || p.Name != "Fox 2" {
		t.Errorf("pet = %+v, want entirely the last-applied payload (Fox 2 / 2)", p)
	}
}

func TestPerform_Login(t *testing.T) {
	f := newFixture(t)
	res, err := f.d.Perform(context.Background(), KindAccount, 0, "login", map[string]any{"username": "li", "password": "secret"})
	if err != nil {
		t.Fatalf("Perform(login) error = %v", err)
	}
	if res.Navigate != "home" || f.gw.loggedIn != "li" {
		t.Errorf("res = %+v loggedIn = %q", res, f.gw.loggedIn)
	}
	if len(f.gw.calls) != 0 {
		t.Errorf("login refetched: %v", f.gw.calls)
	}

	_, err = f.d.Perform(context.Background(), KindAccount, 0, "login", map[string]any{"username": "li", "password": "bad"})
	if api.Message(err) != "Invalid credentials" {
		t.Errorf("bad login error = %v", err)
	}
}

func TestNeedsID(t *testing.T) {
	table := NewTable(DefaultActions()...)
	tests := []struct {
		kind game.Kind
		name string
		want bool
	}{
		{game.KindEquipment, "upgrade", true},
		{game.KindRune, "equip-to-equipment", true},
		{game.KindMeridian, "open-acupoint", true},
		{game.KindPlot, "init", false},
		{game.KindCharacter, "levelup", false},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind)+"/"+tt.name, func(t *testing.T) {
			a, ok := table.Lookup(tt.kind, tt.name)
			if !ok {
				t.Fatalf("no action %s/%s", tt.kind, tt.name)
			}
			if got := a.NeedsID(); got != tt.want {
				t.Errorf("NeedsID() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestExpand(t *testing.T) {
	table := NewTable(DefaultActions()...)
	acu, _ := table.Lookup(game.KindMeridian, "open-acupoint")
	path, body := expand(acu, 2, map[string]any{"acupoint_id": 14})
	if path != "/acupoint/open/14" || body != nil {
		t.Errorf("expand(open-acupoint) = %q, %v", path, body)
	}

	up, _ := table.Lookup(game.KindEquipment, "strengthen")
	path, body = expand(up, 3, map[string]any{"material_quality_factor": 1.5})
	if path != "/equipment/strengthen/3" || body["material_quality_factor"] != 1.5 {
		t.Errorf("expand(strengthen) = %q, %v", path, body)
	}
}

func TestCoerce(t *testing.T) {
	table := NewTable(DefaultActions()...)
	create, _ := table.Lookup(game.KindCharacter, "create")

	body, err := Coerce(create, map[string]string{"name": "Han Li", "wuxing": "70"})
	if err != nil {
		t.Fatalf("Coerce() error = %v", err)
	}
	if body["name"] != "Han Li" || body["wuxing"] != 70 || body["qiyun"] != 50 || body["linggen"] != "金" {
		t.Errorf("body = %v", body)
	}

	tests := []struct {
		name string
		raw  map[string]string
	}{
		{"missing required", map[string]string{}},
		{"bad int", map[string]string{"name": "x", "wuxing": "lots"}},
		{"bad choice", map[string]string{"name": "x", "linggen": "雷"}},
		{"unknown field", map[string]string{"name": "x", "luck": "1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Coerce(create, tt.raw)
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Errorf("Coerce() error = %v, want *FieldError", err)
			}
		})
	}

	strengthen, _ := table.Lookup(game.KindEquipment, "strengthen")
	body, err = Coerce(strengthen, map[string]string{"material_quality_factor": "2.5"})
	if err != nil || body["material_quality_factor"] != 2.5 {
		t.Errorf("Coerce(float) = %v, %v", body, err)
	}
}

func TestOptions(t *testing.T) {
	f := newFixture(t)
	srv := &runeServer{equipped: map[int]int{}}
	srv.install(f.gw)
	f.gw.handle("GET /meridian", func(map[string]any) (int, string) {
		return 200, `[{"id":2,"name":"Ren","acupoints":[{"id":14,"name":"Tiantu","level":0,"max_level":3},{"id":15,"name":"Full","level":3,"max_level":3}]}]`
	})
	f.refresh(t, game.KindEquipment, game.KindMeridian, game.KindRune)

	equip, _ := f.d.Table().Lookup(game.KindRune, "equip-to-equipment")
	opts, err := f.d.Options(equip.Fields[0], 7)
	if err != nil {
		t.Fatal(err)
	}
	// Slot limits are the server's call, so equipment without a slot
	// count is still offered.
	if len(opts) != 2 || opts[0].Value != "3" || opts[1].Label != "Plain Robe" {
		t.Errorf("equipment options = %+v, want every cached equipment", opts)
	}

	acu, _ := f.d.Table().Lookup(game.KindMeridian, "open-acupoint")
	opts, _ = f.d.Options(acu.Fields[0], 2)
	if len(opts) != 1 || opts[0].Value != "14" {
		t.Errorf("acupoint options = %+v", opts)
	}

	targets, err := f.d.Targets(equip)
	if err != nil || len(targets) != 1 {
		t.Errorf("Targets(unequipped runes) = %v, %v", targets, err)
	}
}
