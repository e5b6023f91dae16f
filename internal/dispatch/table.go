package dispatch

import (
	"net/http"
	"strconv"

	"github.com/smileynet/xiuxian/internal/game"
)

var materialField = Field{Name: "material_quality_factor", Label: "Material quality", Type: Float, Default: "1.0"}

// acupointOptions lists the acupoints of the selected meridian.
func acupointOptions(r Reader, id int) []Option {
	e, ok := r.Get(game.KindMeridian, id)
	if !ok {
		return nil
	}
	m, ok := e.(*game.Meridian)
	if !ok {
		return nil
	}
	out := make([]Option, 0, len(m.Acupoints))
	for _, a := range m.Acupoints {
		if a.Level >= a.MaxLevel && a.MaxLevel > 0 {
			continue
		}
		out = append(out, Option{
			Value: strconv.Itoa(a.ID),
			Label: a.Name + " " + strconv.Itoa(a.Level) + "/" + strconv.Itoa(a.MaxLevel),
		})
	}
	return out
}

func post(kind game.Kind, name, path string, fields ...Field) Action {
	return Action{Kind: kind, Name: name, Method: http.MethodPost, Path: path, Fields: fields}
}

func with(a Action, fn func(*Action)) Action {
	fn(&a)
	return a
}

func closing(a Action) Action   { a.Detail = Close; return a }
func rerenders(a Action) Action { a.Detail = Rerender; return a }

func also(a Action, kinds ...game.Kind) Action {
	a.Refresh = append(a.Refresh, kinds...)
	return a
}

// DefaultActions is the game's action table.
func DefaultActions() []Action {
	return []Action{
		with(post(KindAccount, "login", "/login",
			Field{Name: "username", Label: "Username", Type: Text},
			Field{Name: "password", Label: "Password", Type: Secret},
		), func(a *Action) { a.Auth = AuthLogin; a.Navigate = "home" }),
		with(post(KindAccount, "register", "/register",
			Field{Name: "username", Label: "Username", Type: Text},
			Field{Name: "password", Label: "Password", Type: Secret},
			Field{Name: "email", Label: "Email", Type: Text},
		), func(a *Action) { a.Auth = AuthRegister; a.Navigate = "login" }),

		with(post(game.KindCharacter, "create", "/character",
			Field{Name: "name", Label: "Name", Type: Text},
			Field{Name: "linggen", Label: "Spirit root", Type: Choice, Choices: []string{"金", "木", "水", "火", "土"}, Default: "金"},
			Field{Name: "wuxing", Label: "Comprehension", Type: Int, Default: "50"},
			Field{Name: "qiyun", Label: "Fortune", Type: Int, Default: "50"},
		), func(a *Action) { a.Navigate = "character" }),
		post(game.KindCharacter, "levelup", "/character/levelup"),
		post(game.KindCharacter, "breakthrough", "/character/realm_breakthrough",
			Field{Name: "purity", Label: "Pill purity", Type: Float, Default: "1.0"}),

		closing(post(game.KindEquipment, "upgrade", "/equipment/upgrade/{id}")),
		closing(post(game.KindEquipment, "strengthen", "/equipment/strengthen/{id}", materialField)),

		post(game.KindTreasure, "forge", "/treasure/forge",
			Field{Name: "slot", Label: "Slot (1-6)", Type: Int, Default: "1"},
			Field{Name: "name", Label: "Name", Type: Text},
			materialField,
		),
		closing(post(game.KindTreasure, "awaken", "/treasure/awaken/{id}", materialField)),
		closing(post(game.KindTreasure, "recast", "/treasure/recast/{id}", materialField)),

		closing(post(game.KindMantra, "upgrade", "/mantra/upgrade/{id}",
			Field{Name: "weather_bonus", Label: "Weather bonus", Type: Float, Default: "0"})),
		closing(post(game.KindMantra, "equip", "/mantra/equip/{id}",
			Field{Name: "slot", Label: "Slot (0-5)", Type: Int, Default: "0"})),
		closing(post(game.KindMantra, "unequip", "/mantra/unequip/{id}")),
		closing(post(game.KindMantra, "cultivate", "/mantra/cultivate/{id}",
			Field{Name: "time_spent", Label: "Hours", Type: Int, Default: "1"},
			Field{Name: "weather_bonus", Label: "Weather bonus", Type: Float, Default: "0"})),

		closing(post(game.KindShentong, "upgrade", "/shentong/upgrade/{id}")),
		closing(post(game.KindShentong, "equip", "/shentong/equip/{id}",
			Field{Name: "slot", Label: "Slot (1-3)", Type: Int, Default: "1"})),
		closing(post(game.KindShentong, "unequip", "/shentong/unequip/{id}")),

		rerenders(post(game.KindPet, "feed", "/pet/feed/{id}")),
		rerenders(post(game.KindPet, "play", "/pet/play/{id}")),
		rerenders(post(game.KindPet, "battle", "/pet/battle/{id}")),
		rerenders(post(game.KindPet, "skill", "/pet/skill/{id}")),
		closing(post(game.KindPet, "levelup", "/pet/levelup/{id}")),
		post(game.KindPet, "capture", "/pet/capture"),

		closing(also(post(game.KindPetMarket, "buy", "/pet/market/buy/{id}"), game.KindPet)),

		post(game.KindSect, "create", "/sect",
			Field{Name: "name", Label: "Name", Type: Text},
			Field{Name: "description", Label: "Description", Type: Text, Default: "-"}),
		closing(also(post(game.KindSect, "join", "/sect/join/{id}"), game.KindMySect)),
		also(post(game.KindMySect, "upgrade", "/sect/upgrade/{id}"), game.KindSect),
		post(game.KindMySect, "contribute", "/sect/contribute",
			Field{Name: "amount", Label: "Spirit stones", Type: Int, Default: "100"}),

		post(game.KindRune, "forge", "/rune/forge",
			Field{Name: "name", Label: "Name", Type: Text},
			Field{Name: "quality", Label: "Quality", Type: Choice, Choices: []string{"普通", "精良", "稀有", "史诗", "传说"}, Default: "普通"},
			Field{Name: "attribute_type", Label: "Attribute", Type: Choice, Choices: []string{"attack", "defense", "hp", "speed", "crit_rate"}, Default: "attack"},
			Field{Name: "attribute_value", Label: "Value", Type: Int, Default: "10"},
			materialField,
		),
		with(rerenders(also(post(game.KindRune, "equip-to-equipment", "/rune/equip/equipment",
			Field{Name: "equip_id", Label: "Equipment", Type: Ref, RefKind: game.KindEquipment},
		), game.KindEquipment)), func(a *Action) { a.IDParam = "rune_id"; a.When = "!equipped" }),
		with(rerenders(also(post(game.KindRune, "equip-to-treasure", "/rune/equip/treasure",
			Field{Name: "treasure_id", Label: "Treasure", Type: Ref, RefKind: game.KindTreasure},
		), game.KindTreasure)), func(a *Action) { a.IDParam = "rune_id"; a.When = "!equipped" }),

		closing(post(game.KindPill, "refine", "/pill/refine/{id}")),
		closing(also(post(game.KindPill, "use", "/pill/use/{id}"), game.KindCharacter)),

		post(game.KindPlot, "init", "/lingtian/init"),
		also(post(game.KindCrop, "plant", "/lingzhi/plant",
			Field{Name: "name", Label: "Seed", Type: Text, Default: "灵芝"},
			Field{Name: "quality", Label: "Quality", Type: Choice, Choices: []string{"普通", "优质", "极品"}, Default: "普通"},
		), game.KindPlot),
		rerenders(also(post(game.KindCrop, "care", "/lingzhi/care/{id}",
			Field{Name: "type", Label: "Care", Type: Choice, Choices: []string{"water", "fertilizer", "sunlight"}, Default: "water"},
		), game.KindPlot)),
		with(closing(also(post(game.KindCrop, "harvest", "/lingzhi/harvest/{id}"), game.KindPlot)),
			func(a *Action) { a.When = "growth_progress >= 100" }),

		with(closing(post(game.KindMeridian, "open", "/meridian/open/{id}")),
			func(a *Action) { a.When = "!is_open" }),
		with(closing(post(game.KindMeridian, "open-acupoint", "/acupoint/open/{acupoint_id}",
			Field{Name: "acupoint_id", Label: "Acupoint", Type: Choice, From: acupointOptions},
		)), func(a *Action) { a.Selected = true }),
	}
}
