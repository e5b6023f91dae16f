// Package game defines the entity kinds the backend exposes and how their
// list endpoints are decoded.
package game

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Kind names an entity category with its own list endpoint.
type Kind string

const (
	KindCharacter Kind = "character"
	KindEquipment Kind = "equipment"
	KindTreasure  Kind = "treasure"
	KindMantra    Kind = "mantra"
	KindShentong  Kind = "shentong"
	KindPet       Kind = "pet"
	KindPetMarket Kind = "pet_market"
	KindSect      Kind = "sect"
	KindMySect    Kind = "my_sect"
	KindRune      Kind = "rune"
	KindPill      Kind = "pill"
	KindPlot      Kind = "plot"
	KindCrop      Kind = "crop"
	KindMeridian  Kind = "meridian"
	KindMonster   Kind = "monster"
)

// Descriptor tells the cache how to fetch and decode one kind.
type Descriptor struct {
	Kind  Kind
	Title string
	// ListPath is the GET endpoint returning every entity of the kind.
	ListPath string
	// Envelope is the object key wrapping the list, or "" for a bare array.
	Envelope string
	// Singleton kinds return one object (or null) instead of a list.
	Singleton bool

	newEntity func() Entity
	decode    func(raw json.RawMessage) ([]Entity, error)
}

var descriptors = map[Kind]Descriptor{}

func register(d Descriptor) {
	if d.Kind == "" {
		panic("game: register called with empty kind")
	}
	if d.newEntity == nil && d.decode == nil {
		panic(fmt.Sprintf("game: kind %q has no decoder", d.Kind))
	}
	if _, dup := descriptors[d.Kind]; dup {
		panic(fmt.Sprintf("game: kind %q registered twice", d.Kind))
	}
	descriptors[d.Kind] = d
}

func init() {
	register(Descriptor{Kind: KindCharacter, Title: "Character", ListPath: "/character", Singleton: true,
		newEntity: func() Entity { return &Character{} }})
	register(Descriptor{Kind: KindEquipment, Title: "Equipment", ListPath: "/equipment",
		newEntity: func() Entity { return &Equipment{} }})
	register(Descriptor{Kind: KindTreasure, Title: "Treasures", ListPath: "/treasure",
		newEntity: func() Entity { return &Treasure{} }})
	register(Descriptor{Kind: KindMantra, Title: "Mantras", ListPath: "/mantra",
		newEntity: func() Entity { return &Mantra{} }})
	register(Descriptor{Kind: KindShentong, Title: "Supernatural powers", ListPath: "/shentong",
		newEntity: func() Entity { return &Shentong{} }})
	register(Descriptor{Kind: KindPet, Title: "Pets", ListPath: "/pet",
		newEntity: func() Entity { return &Pet{} }})
	register(Descriptor{Kind: KindPetMarket, Title: "Pet market", ListPath: "/pet/market", Envelope: "market_pets",
		newEntity: func() Entity { return &MarketPet{} }})
	register(Descriptor{Kind: KindSect, Title: "Sects", ListPath: "/sect", Envelope: "sects",
		newEntity: func() Entity { return &Sect{} }})
	register(Descriptor{Kind: KindMySect, Title: "My sect", ListPath: "/sect/my", Envelope: "sect", Singleton: true,
		decode: decodeMySect})
	register(Descriptor{Kind: KindRune, Title: "Runes", ListPath: "/rune",
		newEntity: func() Entity { return &Rune{} }})
	register(Descriptor{Kind: KindPill, Title: "Pills", ListPath: "/pill", Envelope: "pills",
		newEntity: func() Entity { return &Pill{} }})
	register(Descriptor{Kind: KindPlot, Title: "Spirit fields", ListPath: "/lingtian", Envelope: "lingtians",
		newEntity: func() Entity { return &Plot{} }})
	register(Descriptor{Kind: KindCrop, Title: "Spirit plants", ListPath: "/lingzhi", Envelope: "lingzhis",
		newEntity: func() Entity { return &Crop{} }})
	register(Descriptor{Kind: KindMeridian, Title: "Meridians", ListPath: "/meridian",
		newEntity: func() Entity { return &Meridian{} }})
	register(Descriptor{Kind: KindMonster, Title: "Monsters", ListPath: "/monsters", Envelope: "monsters",
		newEntity: func() Entity { return &Monster{} }})
}

// Describe returns the descriptor for k.
func Describe(k Kind) (Descriptor, bool) {
	d, ok := descriptors[k]
	return d, ok
}

// Kinds returns every known kind in lexical order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(descriptors))
	for k := range descriptors {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Decode turns a list endpoint payload into entities in server order.
// Both the bare array and the enveloped object are accepted. A null or
// missing singleton decodes to an empty list.
func (d Descriptor) Decode(raw []byte) ([]Entity, error) {
	if d.decode != nil {
		return d.decode(raw)
	}

	body := bytes.TrimSpace(raw)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return nil, nil
	}

	if body[0] == '{' && d.Envelope != "" {
		var env map[string]json.RawMessage
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("game: decoding %s envelope: %w", d.Kind, err)
		}
		if inner, ok := env[d.Envelope]; ok {
			body = bytes.TrimSpace(inner)
			if len(body) == 0 || bytes.Equal(body, []byte("null")) {
				return nil, nil
			}
		}
	}

	if body[0] == '{' {
		if !d.Singleton {
			return nil, fmt.Errorf("game: decoding %s: expected a list, got an object", d.Kind)
		}
		e := d.newEntity()
		if err := json.Unmarshal(body, e); err != nil {
			return nil, fmt.Errorf("game: decoding %s: %w", d.Kind, err)
		}
		return []Entity{e}, nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("game: decoding %s list: %w", d.Kind, err)
	}
	out := make([]Entity, 0, len(items))
	for i, item := range items {
		e := d.newEntity()
		if err := json.Unmarshal(item, e); err != nil {
			return nil, fmt.Errorf("game: decoding %s[%d]: %w", d.Kind, i, err)
		}
		out = append(out, e)
	}
	return out, nil
}

func decodeMySect(raw json.RawMessage) ([]Entity, error) {
	var body struct {
		Sect   *Sect       `json:"sect"`
		Member *Membership `json:"member"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("game: decoding %s: %w", KindMySect, err)
	}
	if body.Sect == nil {
		return nil, nil
	}
	ms := &MySect{Sect: *body.Sect}
	if body.Member != nil {
		ms.Member = *body.Member
	}
	return []Entity{ms}, nil
}

// Fields flattens an entity into its JSON field names, for predicates and
// generic rendering. Nested objects become nested maps.
func Fields(e Entity) map[string]any {
	data, err := json.Marshal(e)
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if json.Unmarshal(data, &m) != nil {
		return map[string]any{}
	}
	return m
}
