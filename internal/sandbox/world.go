package sandbox

import (
	"github.com/smileynet/xiuxian/internal/game"
)

// account is one registered user and everything their character owns.
type account struct {
	username string
	email    string
	hash     []byte

	char    *game.Character
	lingshi int64

	equipment []*game.Equipment
	treasures []*game.Treasure
	mantras   []*game.Mantra
	shentongs []*game.Shentong
	pets      []*game.Pet
	runes     []*game.Rune
	pills     []*game.Pill
	plots     []*game.Plot
	crops     []*game.Crop
	meridians []*game.Meridian

	sect   *game.Sect
	member game.Membership
}

// world is the state shared by every account.
type world struct {
	sects    []*game.Sect
	market   []*game.MarketPet
	monsters []*game.Monster
}

func seedWorld(id func() int) *world {
	return &world{
		sects: []*game.Sect{
			{ID: id(), Name: "青云门", Level: 3, Prosperity: 1200, Power: 800, Prestige: 500, MemberCount: 42, Description: "Sword cultivators of the northern peaks"},
			{ID: id(), Name: "万药谷", Level: 2, Prosperity: 900, Power: 300, Prestige: 650, MemberCount: 18, Description: "Alchemists of the southern valley"},
		},
		market: []*game.MarketPet{
			{ID: id(), Name: "灵狐", Quality: "普通", Price: 500, Description: "A clever fox spirit"},
			{ID: id(), Name: "玄龟", Quality: "优秀", Price: 2000, Description: "Slow, patient, nearly unbreakable"},
			{ID: id(), Name: "火凤", Quality: "传说", Price: 100000, Description: "Reborn from its own ashes"},
		},
		monsters: []*game.Monster{
			{ID: id(), Name: "野狼", Level: 1, HP: 80, Attack: 8, Defense: 4, Speed: 12, Linggen: "无", ExperienceReward: 50, LingshiReward: 20, AIType: "aggressive", Description: "A hungry grey wolf"},
			{ID: id(), Name: "石妖", Level: 5, HP: 300, Attack: 15, Defense: 30, Speed: 4, Linggen: "土", ExperienceReward: 200, LingshiReward: 120, AIType: "defensive", Description: "A boulder that learned to walk"},
			{ID: id(), Name: "雷鹰", Level: 12, HP: 600, Attack: 60, Defense: 20, Speed: 40, Linggen: "金", ExperienceReward: 1500, LingshiReward: 1500, AIType: "balanced", Description: "Rides the storm front"},
		},
	}
}

var slotTypes = []string{"武器", "头盔", "项链", "衣服", "腰带", "鞋子", "耳环", "戒指", "手镯", "护符"}

var linggenBonus = map[string]game.Attributes{
	"金": {Attack: 5, Defense: 2},
	"木": {HP: 20, Defense: 3},
	"水": {Defense: 5, Speed: 2},
	"火": {Attack: 8, CritRate: 0.02},
	"土": {HP: 30, Defense: 8},
}

// createCharacter gives a fresh account its character and starter kit.
func createCharacter(a *account, id func() int, name, linggen string, wuxing, qiyun int) {
	bonus := linggenBonus[linggen]
	a.char = &game.Character{
		ID: id(), Name: name, Level: 1, Experience: 1000,
		Realm: "练气", RealmLevel: 1, Linggen: linggen, Wuxing: wuxing, Qiyun: qiyun,
		Attributes: game.Attributes{
			HP:       100 + bonus.HP,
			Attack:   10 + bonus.Attack,
			Defense:  10 + bonus.Defense,
			Speed:    10 + bonus.Speed,
			CritRate: 0.05 + bonus.CritRate,
		},
	}
	a.lingshi = 10000

	a.equipment = a.equipment[:0]
	for i, t := range slotTypes {
		maxLevel := 10
		if i >= 6 {
			maxLevel = 5
		}
		a.equipment = append(a.equipment, &game.Equipment{
			ID: id(), Slot: i + 1, Type: t, Name: "普通" + t, Quality: "黄阶",
			Level: 1, MaxLevel: maxLevel, RuneSlots: 1 + i%2, Equipped: true,
		})
	}
	a.mantras = []*game.Mantra{
		{ID: id(), Name: "长春功", Quality: "黄阶", Level: 1, MaxLevel: 10, Proficiency: "初窥门径", ProficiencyMax: 100, LinggenRequired: "木", AttackBonus: 2, HPBonus: 20},
		{ID: id(), Name: "烈火诀", Quality: "玄阶", Level: 1, MaxLevel: 10, Proficiency: "初窥门径", ProficiencyMax: 100, LinggenRequired: "火", AttackBonus: 6, CritRateBonus: 0.01},
	}
	a.shentongs = []*game.Shentong{
		{ID: id(), Name: "掌心雷", Level: 1, MaxLevel: 10, TriggerRate: 0.1, DamageMultiplier: 1.5, EffectDescription: "Calls lightning from an open palm", Cooldown: 3},
	}
	a.pills = []*game.Pill{
		{ID: id(), Name: "聚气丹", Quality: "普通", Level: 1, EffectType: "experience", EffectValue: 200, SuccessRate: 0.9, Difficulty: 1, Description: "Gathers qi into experience"},
		{ID: id(), Name: "筑基丹", Quality: "稀有", Level: 10, EffectType: "breakthrough", EffectValue: 0.2, SuccessRate: 0.4, Difficulty: 5, Description: "Eases the foundation breakthrough"},
		{ID: id(), Name: "回春丹", Quality: "普通", Level: 1, EffectType: "hp", EffectValue: 50, SuccessRate: 0.8, Difficulty: 2, Description: "Restores vitality"},
	}
	a.meridians = []*game.Meridian{
		{ID: id(), Name: "任脉", Type: "奇经", Coefficient: 1.2, Acupoints: []game.Acupoint{
			{ID: id(), Name: "天突", MaxLevel: 3, AttributeBonus: 2},
			{ID: id(), Name: "膻中", MaxLevel: 3, AttributeBonus: 3},
		}},
		{ID: id(), Name: "督脉", Type: "奇经", Coefficient: 1.5, Acupoints: []game.Acupoint{
			{ID: id(), Name: "百会", MaxLevel: 5, AttributeBonus: 4},
		}},
	}
}

func find[T game.Entity](list []T, id int) (T, bool) {
	for _, e := range list {
		if e.EntityID() == id {
			return e, true
		}
	}
	var zero T
	return zero, false
}

func remove[T game.Entity](list []T, id int) []T {
	out := list[:0]
	for _, e := range list {
		if e.EntityID() != id {
			out = append(out, e)
		}
	}
	return out
}

// spend deducts cost spirit stones, reporting whether the account could pay.
func (a *account) spend(cost int64) bool {
	if a.lingshi < cost {
		return false
	}
	a.lingshi -= cost
	return true
}

func (a *account) slotTaken(slot int, self int) bool {
	for _, m := range a.mantras {
		if m.ID != self && m.Equipped && m.Slot != nil && *m.Slot == slot {
			return true
		}
	}
	return false
}

func (a *account) powerSlotTaken(slot int, self int) bool {
	for _, s := range a.shentongs {
		if s.ID != self && s.Equipped && s.Slot != nil && *s.Slot == slot {
			return true
		}
	}
	return false
}

// slotsForQuality is the rune slot count of equipment that carries none.
func slotsForQuality(quality string) int {
	switch quality {
	case "玄阶":
		return 2
	case "地阶":
		return 3
	case "天阶":
		return 4
	default:
		return 1
	}
}

func (a *account) runesOn(equipmentID, treasureID int) int {
	n := 0
	for _, r := range a.runes {
		if equipmentID > 0 && r.EquipmentID != nil && *r.EquipmentID == equipmentID {
			n++
		}
		if treasureID > 0 && r.TreasureID != nil && *r.TreasureID == treasureID {
			n++
		}
	}
	return n
}

func (a *account) plotOf(cropID int) *game.Plot {
	for _, p := range a.plots {
		if p.Crop != nil && p.Crop.ID == cropID {
			return p
		}
	}
	return nil
}

func intPtr(n int) *int { return &n }
