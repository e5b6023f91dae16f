package detail

import (
	"fmt"
	"sort"
	"strconv"

	"github.com/dustin/go-humanize"

	"github.com/smileynet/xiuxian/internal/game"
)

// Placeholders for cross-kind references that are not cached.
const (
	UnknownEquipment = "unknown equipment"
	UnknownTreasure  = "unknown treasure"
)

func describe(e game.Entity, refs Reader) (string, []Field) {
	switch v := e.(type) {
	case *game.Character:
		return v.Name, []Field{
			{"Realm", fmt.Sprintf("%s (%d)", v.Realm, v.RealmLevel)},
			{"Level", strconv.Itoa(v.Level)},
			{"Experience", humanize.Comma(v.Experience)},
			{"Spirit root", orNone(v.Linggen)},
			{"HP", humanize.Comma(int64(v.Attributes.HP))},
			{"Attack", strconv.Itoa(v.Attributes.Attack)},
			{"Defense", strconv.Itoa(v.Attributes.Defense)},
			{"Speed", strconv.Itoa(v.Attributes.Speed)},
			{"Crit rate", percent(v.Attributes.CritRate)},
		}
	case *game.Equipment:
		return v.Name, []Field{
			{"Slot", fmt.Sprintf("%d (%s)", v.Slot, v.Type)},
			{"Quality", v.Quality},
			{"Level", fmt.Sprintf("%d/%d", v.Level, v.MaxLevel)},
			{"Experience", humanize.Comma(v.Experience)},
			{"Attack", signed(v.AttackBonus)},
			{"Defense", signed(v.DefenseBonus)},
			{"HP", signed(v.HPBonus)},
			{"Speed", signed(v.SpeedBonus)},
			{"Crit rate", percent(v.CritRateBonus)},
			{"Dodge rate", percent(v.DodgeRateBonus)},
			{"Strengthened", strconv.Itoa(v.StrengthenTimes) + "x"},
			{"Rune slots", strconv.Itoa(v.RuneSlots)},
			{"Equipped", yesNo(v.Equipped)},
		}
	case *game.Treasure:
		fields := []Field{
			{"Slot", strconv.Itoa(v.Slot)},
			{"Quality", v.Quality},
			{"Attack", signed(v.AttackBonus)},
		}
		if v.Awakened {
			fields = append(fields, Field{"Awakened", orNone(v.SpecialSkill)})
		}
		if v.RecastTimes > 0 {
			fields = append(fields, Field{"Recast", strconv.Itoa(v.RecastTimes) + "x"})
		}
		return v.Name, fields
	case *game.Mantra:
		return v.Name, []Field{
			{"Quality", v.Quality},
			{"Level", fmt.Sprintf("%d/%d", v.Level, v.MaxLevel)},
			{"Proficiency", fmt.Sprintf("%s (%d/%d)", v.Proficiency, v.ProficiencyExp, v.ProficiencyMax)},
			{"Spirit root", orNone(v.LinggenRequired)},
			{"Slot", slot(v.Equipped, v.Slot)},
			{"Attack", signed(v.AttackBonus)},
			{"Defense", signed(v.DefenseBonus)},
			{"HP", signed(v.HPBonus)},
			{"Speed", signed(v.SpeedBonus)},
			{"Crit rate", percent(v.CritRateBonus)},
			{"Effect", orNone(v.SpecialEffect)},
		}
	case *game.Shentong:
		return v.Name, []Field{
			{"Level", fmt.Sprintf("%d/%d", v.Level, v.MaxLevel)},
			{"Proficiency", strconv.Itoa(v.Proficiency)},
			{"Trigger rate", percent(v.TriggerRate)},
			{"Damage", fmt.Sprintf("x%.2f", v.DamageMultiplier)},
			{"Cooldown", strconv.Itoa(v.Cooldown)},
			{"Slot", slot(v.Equipped, v.Slot)},
			{"Effect", orNone(v.EffectDescription)},
		}
	case *game.Pet:
		return v.Name, []Field{
			{"Quality", orNone(v.Quality)},
			{"Level", strconv.Itoa(v.Level)},
			{"Intimacy", strconv.Itoa(v.IntimacyLevel)},
			{"Skill", orNone(v.SkillName)},
		}
	case *game.MarketPet:
		return v.Name, []Field{
			{"Quality", v.Quality},
			{"Price", humanize.Comma(v.Price) + " spirit stones"},
			{"About", v.Description},
		}
	case *game.MySect:
		return v.Name, append(sectFields(&v.Sect),
			Field{"Position", v.Member.Position},
			Field{"Contribution", humanize.Comma(int64(v.Member.Contribution))},
			Field{"Total contribution", humanize.Comma(int64(v.Member.TotalContribution))},
		)
	case *game.Sect:
		return v.Name, sectFields(v)
	case *game.Rune:
		return v.Name, []Field{
			{"Quality", v.Quality},
			{"Attribute", fmt.Sprintf("%s +%s", v.AttributeType, humanize.FtoaWithDigits(v.AttributeValue, 2))},
			{"Equipment", refs.Label(game.KindEquipment, v.EquipmentID, UnknownEquipment)},
			{"Treasure", refs.Label(game.KindTreasure, v.TreasureID, UnknownTreasure)},
			{"Equipped", yesNo(v.Equipped)},
		}
	case *game.Pill:
		return v.Name, []Field{
			{"Quality", v.Quality},
			{"Level", strconv.Itoa(v.Level)},
			{"Effect", fmt.Sprintf("%s +%s", v.EffectType, humanize.FtoaWithDigits(v.EffectValue, 2))},
			{"Success rate", percent(v.SuccessRate)},
			{"Difficulty", strconv.Itoa(v.Difficulty)},
			{"About", v.Description},
		}
	case *game.Plot:
		crop := "empty"
		if v.Crop != nil {
			crop = fmt.Sprintf("%s (%s, %.0f%%)", v.Crop.Name, v.Crop.GrowthStage, v.Crop.GrowthProgress)
		}
		return v.DisplayName(), []Field{
			{"Soil", v.SoilQuality},
			{"Irrigation", strconv.Itoa(v.IrrigationLevel)},
			{"Fertilizer", strconv.Itoa(v.FertilizerLevel)},
			{"Crop", crop},
		}
	case *game.Crop:
		return v.Name, []Field{
			{"Quality", v.Quality},
			{"Stage", v.GrowthStage},
			{"Growth", fmt.Sprintf("%.0f%%", v.GrowthProgress)},
			{"Water", strconv.Itoa(v.WaterLevel)},
			{"Fertilizer", strconv.Itoa(v.FertilizerLevel)},
			{"Sunlight", strconv.Itoa(v.SunlightLevel)},
			{"Mutated", yesNo(v.Mutated)},
			{"Harvestable", yesNo(v.Mature())},
		}
	case *game.Meridian:
		fields := []Field{
			{"Type", v.Type},
			{"Open", yesNo(v.Open)},
			{"Bonus", humanize.FtoaWithDigits(v.Bonus(), 2)},
		}
		for _, a := range v.Acupoints {
			fields = append(fields, Field{a.Name, fmt.Sprintf("%d/%d", a.Level, a.MaxLevel)})
		}
		return v.Name, fields
	case *game.Monster:
		return v.Name, []Field{
			{"Level", strconv.Itoa(v.Level)},
			{"HP", humanize.Comma(int64(v.HP))},
			{"Attack", strconv.Itoa(v.Attack)},
			{"Defense", strconv.Itoa(v.Defense)},
			{"Speed", strconv.Itoa(v.Speed)},
			{"Rewards", fmt.Sprintf("%s exp, %s spirit stones", humanize.Comma(v.ExperienceReward), humanize.Comma(v.LingshiReward))},
			{"About", v.Description},
		}
	}
	return genericFields(e)
}

func sectFields(s *game.Sect) []Field {
	return []Field{
		{"Level", strconv.Itoa(s.Level)},
		{"Prosperity", humanize.Comma(int64(s.Prosperity))},
		{"Power", humanize.Comma(int64(s.Power))},
		{"Prestige", humanize.Comma(int64(s.Prestige))},
		{"Members", strconv.Itoa(s.MemberCount)},
		{"About", orNone(s.Description)},
	}
}

// genericFields renders any other entity from its JSON fields.
func genericFields(e game.Entity) (string, []Field) {
	m := game.Fields(e)
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	fields := make([]Field, 0, len(keys))
	for _, k := range keys {
		fields = append(fields, Field{k, fmt.Sprint(m[k])})
	}
	return e.DisplayName(), fields
}

func percent(f float64) string {
	return humanize.FtoaWithDigits(f*100, 2) + "%"
}

func signed(n int) string {
	if n >= 0 {
		return "+" + strconv.Itoa(n)
	}
	return strconv.Itoa(n)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

func slot(equipped bool, n *int) string {
	if !equipped || n == nil {
		return "not equipped"
	}
	return strconv.Itoa(*n)
}
