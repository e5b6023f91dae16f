package game

import "strconv"

// Entity is any game object the backend lists by integer id.
type Entity interface {
	EntityID() int
	// DisplayName is the short label used in lists and cross-references.
	DisplayName() string
}

// Attributes are a character's combat stats.
type Attributes struct {
	HP       int     `json:"hp"`
	Attack   int     `json:"attack"`
	Defense  int     `json:"defense"`
	Speed    int     `json:"speed"`
	CritRate float64 `json:"crit_rate"`
}

// Character is the player's cultivator. The backend holds one per account.
type Character struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Level      int        `json:"level"`
	Experience int64      `json:"experience"`
	Realm      string     `json:"realm"`
	RealmLevel int        `json:"realm_level"`
	Linggen    string     `json:"linggen"`
	Wuxing     int        `json:"wuxing,omitempty"`
	Qiyun      int        `json:"qiyun,omitempty"`
	Attributes Attributes `json:"attributes"`
}

func (c *Character) EntityID() int       { return c.ID }
func (c *Character) DisplayName() string { return c.Name }

// Equipment occupies one of ten gear slots.
type Equipment struct {
	ID              int     `json:"id"`
	Slot            int     `json:"slot"`
	Type            string  `json:"type"`
	Name            string  `json:"name"`
	Quality         string  `json:"quality"`
	Level           int     `json:"level"`
	MaxLevel        int     `json:"max_level"`
	Experience      int64   `json:"experience"`
	AttackBonus     int     `json:"attack_bonus"`
	DefenseBonus    int     `json:"defense_bonus"`
	HPBonus         int     `json:"hp_bonus"`
	SpeedBonus      int     `json:"speed_bonus"`
	CritRateBonus   float64 `json:"crit_rate_bonus"`
	DodgeRateBonus  float64 `json:"dodge_rate_bonus"`
	StrengthenTimes int     `json:"strengthen_times"`
	RuneSlots       int     `json:"rune_slots"`
	Equipped        bool    `json:"equipped"`
}

func (e *Equipment) EntityID() int       { return e.ID }
func (e *Equipment) DisplayName() string { return e.Name }

// Treasure is a forged artifact. The list endpoint returns a subset of
// fields; the rest stay zero.
type Treasure struct {
	ID           int    `json:"id"`
	Slot         int    `json:"slot"`
	Name         string `json:"name"`
	Quality      string `json:"quality"`
	Level        int    `json:"level,omitempty"`
	AttackBonus  int    `json:"attack_bonus"`
	DefenseBonus int    `json:"defense_bonus,omitempty"`
	HPBonus      int    `json:"hp_bonus,omitempty"`
	Awakened     bool   `json:"awakened,omitempty"`
	SpecialSkill string `json:"special_skill,omitempty"`
	RecastTimes  int    `json:"recast_times,omitempty"`
}

func (t *Treasure) EntityID() int       { return t.ID }
func (t *Treasure) DisplayName() string { return t.Name }

// Mantra is a cultivation technique; up to six can be equipped.
type Mantra struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Quality         string  `json:"quality"`
	Level           int     `json:"level"`
	MaxLevel        int     `json:"max_level"`
	Experience      int64   `json:"experience"`
	Proficiency     string  `json:"proficiency"`
	ProficiencyExp  int     `json:"proficiency_exp"`
	ProficiencyMax  int     `json:"proficiency_max"`
	LinggenRequired string  `json:"linggen_required"`
	Equipped        bool    `json:"equipped"`
	Slot            *int    `json:"slot"`
	AttackBonus     int     `json:"attack_bonus"`
	DefenseBonus    int     `json:"defense_bonus"`
	HPBonus         int     `json:"hp_bonus"`
	SpeedBonus      int     `json:"speed_bonus"`
	CritRateBonus   float64 `json:"crit_rate_bonus"`
	SpecialEffect   string  `json:"special_effect"`
}

func (m *Mantra) EntityID() int       { return m.ID }
func (m *Mantra) DisplayName() string { return m.Name }

// Shentong is a supernatural power; up to three can be equipped.
type Shentong struct {
	ID                int     `json:"id"`
	Name              string  `json:"name"`
	Level             int     `json:"level"`
	MaxLevel          int     `json:"max_level"`
	Experience        int64   `json:"experience"`
	Proficiency       int     `json:"proficiency"`
	TriggerRate       float64 `json:"trigger_rate"`
	Equipped          bool    `json:"equipped"`
	Slot              *int    `json:"slot"`
	DamageMultiplier  float64 `json:"damage_multiplier"`
	EffectDescription string  `json:"effect_description"`
	Cooldown          int     `json:"cooldown"`
}

func (s *Shentong) EntityID() int       { return s.ID }
func (s *Shentong) DisplayName() string { return s.Name }

// Pet is a captured spirit beast.
type Pet struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	Type          string `json:"type,omitempty"`
	Quality       string `json:"quality,omitempty"`
	Level         int    `json:"level,omitempty"`
	IntimacyLevel int    `json:"intimacy_level"`
	IntimacyExp   int    `json:"intimacy_exp,omitempty"`
	SkillName     string `json:"skill_name,omitempty"`
}

func (p *Pet) EntityID() int       { return p.ID }
func (p *Pet) DisplayName() string { return p.Name }

// MarketPet is a pet template offered for sale.
type MarketPet struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Quality     string `json:"quality"`
	Price       int64  `json:"price"`
	Description string `json:"description"`
}

func (p *MarketPet) EntityID() int       { return p.ID }
func (p *MarketPet) DisplayName() string { return p.Name }

// Sect is a cultivation school any player may join.
type Sect struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	Level        int    `json:"level"`
	Prosperity   int    `json:"prosperity"`
	Contribution int    `json:"contribution,omitempty"`
	Power        int    `json:"power"`
	Construction int    `json:"construction,omitempty"`
	Prestige     int    `json:"prestige"`
	MemberCount  int    `json:"member_count,omitempty"`
	Description  string `json:"description"`
}

func (s *Sect) EntityID() int       { return s.ID }
func (s *Sect) DisplayName() string { return s.Name }

// Membership is the player's standing inside their sect.
type Membership struct {
	Position          string `json:"position"`
	Contribution      int    `json:"contribution"`
	TotalContribution int    `json:"total_contribution"`
}

// MySect is the sect the player belongs to.
type MySect struct {
	Sect
	Member Membership `json:"member"`
}

// Rune sockets into equipment or a treasure. EquipmentID and TreasureID are
// foreign ids into those caches.
type Rune struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Quality        string  `json:"quality"`
	AttributeType  string  `json:"attribute_type"`
	AttributeValue float64 `json:"attribute_value"`
	EquipmentID    *int    `json:"equipment_id"`
	TreasureID     *int    `json:"treasure_id"`
	Equipped       bool    `json:"equipped"`
}

func (r *Rune) EntityID() int       { return r.ID }
func (r *Rune) DisplayName() string { return r.Name }

// Pill is an alchemy recipe.
type Pill struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Quality     string  `json:"quality"`
	Level       int     `json:"level"`
	EffectType  string  `json:"effect_type"`
	EffectValue float64 `json:"effect_value"`
	SuccessRate float64 `json:"success_rate"`
	Difficulty  int     `json:"difficulty"`
	Description string  `json:"description"`
}

func (p *Pill) EntityID() int       { return p.ID }
func (p *Pill) DisplayName() string { return p.Name }

// CropSummary is the crop embedded in a plot listing.
type CropSummary struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Quality        string  `json:"quality"`
	GrowthStage    string  `json:"growth_stage"`
	GrowthProgress float64 `json:"growth_progress"`
}

// Plot is a spirit field that holds at most one crop.
type Plot struct {
	ID              int          `json:"id"`
	Slot            int          `json:"slot"`
	SoilQuality     string       `json:"soil_quality"`
	IrrigationLevel int          `json:"irrigation_level"`
	FertilizerLevel int          `json:"fertilizer_level"`
	Occupied        bool         `json:"is_occupied"`
	Crop            *CropSummary `json:"lingzhi"`
}

func (p *Plot) EntityID() int { return p.ID }
func (p *Plot) DisplayName() string {
	if p.Crop != nil {
		return "Plot " + strconv.Itoa(p.Slot) + " (" + p.Crop.Name + ")"
	}
	return "Plot " + strconv.Itoa(p.Slot)
}

// Crop is a spirit plant growing in a plot.
type Crop struct {
	ID              int     `json:"id"`
	Name            string  `json:"name"`
	Quality         string  `json:"quality"`
	Level           int     `json:"level"`
	GrowthStage     string  `json:"growth_stage"`
	GrowthProgress  float64 `json:"growth_progress"`
	Mutated         bool    `json:"has_mutated"`
	AttributeType   string  `json:"attribute_type"`
	AttributeValue  float64 `json:"attribute_value"`
	WaterLevel      int     `json:"water_level"`
	FertilizerLevel int     `json:"fertilizer_level"`
	SunlightLevel   int     `json:"sunlight_level"`
	PlantedAt       string  `json:"planted_at"`
}

func (c *Crop) EntityID() int       { return c.ID }
func (c *Crop) DisplayName() string { return c.Name }

// Mature reports whether the crop can be harvested.
func (c *Crop) Mature() bool {
	return c.GrowthProgress >= 100
}

// Acupoint is a node on a meridian.
type Acupoint struct {
	ID             int     `json:"id"`
	Name           string  `json:"name"`
	Level          int     `json:"level"`
	MaxLevel       int     `json:"max_level"`
	AttributeBonus float64 `json:"attribute_bonus"`
}

// Meridian is an energy channel with acupoints.
type Meridian struct {
	ID          int        `json:"id"`
	Name        string     `json:"name"`
	Type        string     `json:"type"`
	Coefficient float64    `json:"coefficient"`
	Open        bool       `json:"is_open"`
	Acupoints   []Acupoint `json:"acupoints"`
}

func (m *Meridian) EntityID() int       { return m.ID }
func (m *Meridian) DisplayName() string { return m.Name }

// Bonus sums the attribute bonus of every opened acupoint.
func (m *Meridian) Bonus() float64 {
	var total float64
	for _, a := range m.Acupoints {
		if a.Level > 0 {
			total += a.AttributeBonus * float64(a.Level)
		}
	}
	return total
}

// Monster is a battle opponent.
type Monster struct {
	ID               int    `json:"id"`
	Name             string `json:"name"`
	Level            int    `json:"level"`
	HP               int    `json:"hp"`
	Attack           int    `json:"attack"`
	Defense          int    `json:"defense"`
	Speed            int    `json:"speed"`
	Linggen          string `json:"linggen"`
	ExperienceReward int64  `json:"experience_reward"`
	LingshiReward    int64  `json:"lingshi_reward"`
	AIType           string `json:"ai_type"`
	Description      string `json:"description"`
}

func (m *Monster) EntityID() int       { return m.ID }
func (m *Monster) DisplayName() string { return m.Name }
