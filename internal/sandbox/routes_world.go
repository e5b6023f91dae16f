package sandbox

import (
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/smileynet/xiuxian/internal/game"
)

func (s *Server) listPets(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.pets)
}

func (s *Server) petAction(op string) func(echo.Context, *account) error {
	return func(c echo.Context, a *account) error {
		id, err := pathID(c)
		if err != nil {
			return err
		}
		p, ok := find(a.pets, id)
		if !ok {
			return message(c, http.StatusNotFound, "Pet not found")
		}
		switch op {
		case "feed":
			p.IntimacyExp += 10
		case "play":
			p.IntimacyExp += 5
		case "battle":
			p.IntimacyExp += 2
			a.lingshi += 50
		case "skill":
			if p.SkillName != "" {
				return message(c, http.StatusBadRequest, "Pet already knows a skill")
			}
			p.SkillName = "灵爪"
		case "levelup":
			cost := int64(p.Level) * 300
			if !a.spend(cost) {
				return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
			}
			p.Level++
		}
		for p.IntimacyExp >= 100 {
			p.IntimacyExp -= 100
			p.IntimacyLevel++
		}
		return message(c, http.StatusOK, fmt.Sprintf("%s: %s done", p.Name, op))
	}
}

func (s *Server) capturePet(c echo.Context, a *account) error {
	if !a.spend(100) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": 100})
	}
	p := &game.Pet{ID: s.id(), Name: "野狐", Type: "狐", Quality: "普通", Level: 1, IntimacyLevel: 1}
	a.pets = append(a.pets, p)
	return reply(c, http.StatusCreated, "Captured a wild fox", map[string]any{"pet_id": p.ID})
}

func (s *Server) listMarket(c echo.Context, _ *account) error {
	return c.JSON(http.StatusOK, map[string]any{"market_pets": s.world.market})
}

func (s *Server) buyPet(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	tmpl, ok := find(s.world.market, id)
	if !ok {
		return message(c, http.StatusNotFound, "Pet template not found")
	}
	if !a.spend(tmpl.Price) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": tmpl.Price})
	}
	a.pets = append(a.pets, &game.Pet{ID: s.id(), Name: tmpl.Name, Quality: tmpl.Quality, Level: 1, IntimacyLevel: 1})
	return message(c, http.StatusOK, "Bought "+tmpl.Name)
}

func (s *Server) listSects(c echo.Context, _ *account) error {
	return c.JSON(http.StatusOK, map[string]any{"sects": s.world.sects})
}

func (s *Server) createSect(c echo.Context, a *account) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		return message(c, http.StatusBadRequest, "Sect name required")
	}
	if a.sect != nil {
		return message(c, http.StatusBadRequest, "You already belong to a sect")
	}
	if !a.spend(1000) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": 1000})
	}
	sect := &game.Sect{ID: s.id(), Name: req.Name, Level: 1, MemberCount: 1, Description: req.Description}
	s.world.sects = append(s.world.sects, sect)
	a.sect = sect
	a.member = game.Membership{Position: "宗主"}
	return reply(c, http.StatusCreated, "Sect created", map[string]any{"sect_id": sect.ID})
}

func (s *Server) mySect(c echo.Context, a *account) error {
	if a.sect == nil {
		return c.JSON(http.StatusOK, map[string]any{"sect": nil})
	}
	return c.JSON(http.StatusOK, map[string]any{"sect": a.sect, "member": a.member})
}

func (s *Server) joinSect(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	sect, ok := find(s.world.sects, id)
	if !ok {
		return message(c, http.StatusNotFound, "Sect not found")
	}
	if a.sect != nil {
		return message(c, http.StatusBadRequest, "You already belong to a sect")
	}
	a.sect = sect
	a.member = game.Membership{Position: "弟子"}
	sect.MemberCount++
	return message(c, http.StatusOK, "Joined "+sect.Name)
}

func (s *Server) upgradeSect(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	if a.sect == nil || a.sect.ID != id {
		return message(c, http.StatusForbidden, "Not a member of this sect")
	}
	need := a.sect.Level * 500
	if a.sect.Contribution < need {
		return reply(c, http.StatusBadRequest, "Not enough sect contribution", map[string]any{"required": need})
	}
	a.sect.Contribution -= need
	a.sect.Level++
	return message(c, http.StatusOK, "Sect upgraded")
}

func (s *Server) contribute(c echo.Context, a *account) error {
	var req struct {
		Amount int `json:"amount"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if a.sect == nil {
		return message(c, http.StatusBadRequest, "You do not belong to a sect")
	}
	if req.Amount <= 0 {
		return message(c, http.StatusBadRequest, "Amount must be positive")
	}
	if !a.spend(int64(req.Amount)) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": req.Amount})
	}
	a.sect.Contribution += req.Amount
	a.sect.Prosperity += req.Amount / 10
	a.member.Contribution += req.Amount
	a.member.TotalContribution += req.Amount
	return message(c, http.StatusOK, "Contribution recorded")
}

func (s *Server) listRunes(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.runes)
}

func (s *Server) forgeRune(c echo.Context, a *account) error {
	var req struct {
		Name          string  `json:"name"`
		Quality       string  `json:"quality"`
		AttributeType string  `json:"attribute_type"`
		Value         float64 `json:"attribute_value"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Name == "" {
		req.Name = "符文"
	}
	if !a.spend(200) {
		return message(c, http.StatusBadRequest, "Not enough ling shi")
	}
	r := &game.Rune{ID: s.id(), Name: req.Name, Quality: req.Quality, AttributeType: req.AttributeType, AttributeValue: req.Value}
	a.runes = append(a.runes, r)
	return reply(c, http.StatusCreated, "Forge success", map[string]any{"rune_id": r.ID})
}

func (s *Server) equipRuneToEquipment(c echo.Context, a *account) error {
	var req struct {
		RuneID  int `json:"rune_id"`
		EquipID int `json:"equip_id"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	r, rok := find(a.runes, req.RuneID)
	eq, eok := find(a.equipment, req.EquipID)
	if !rok || !eok {
		return message(c, http.StatusNotFound, "Rune or Equipment not found")
	}
	if r.Equipped {
		return message(c, http.StatusBadRequest, "Rune is already socketed")
	}
	limit := eq.RuneSlots
	if limit <= 0 {
		limit = slotsForQuality(eq.Quality)
	}
	if a.runesOn(eq.ID, 0) >= limit {
		return reply(c, http.StatusBadRequest, "No available rune slots on this equipment", map[string]any{"slot_limit": limit})
	}
	eq.AttackBonus += int(r.AttributeValue)
	r.EquipmentID = intPtr(eq.ID)
	r.Equipped = true
	return reply(c, http.StatusOK, "Rune equipped to equipment", map[string]any{"equip_id": eq.ID, "rune_id": r.ID})
}

func (s *Server) equipRuneToTreasure(c echo.Context, a *account) error {
	var req struct {
		RuneID     int `json:"rune_id"`
		TreasureID int `json:"treasure_id"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	r, rok := find(a.runes, req.RuneID)
	t, tok := find(a.treasures, req.TreasureID)
	if !rok || !tok {
		return message(c, http.StatusNotFound, "Rune or Treasure not found")
	}
	if r.Equipped {
		return message(c, http.StatusBadRequest, "Rune is already socketed")
	}
	if a.runesOn(0, t.ID) >= 2 {
		return reply(c, http.StatusBadRequest, "No available rune slots on this treasure", map[string]any{"slot_limit": 2})
	}
	t.AttackBonus += int(r.AttributeValue)
	r.TreasureID = intPtr(t.ID)
	r.Equipped = true
	return reply(c, http.StatusOK, "Rune equipped to treasure", map[string]any{"treasure_id": t.ID, "rune_id": r.ID})
}

func (s *Server) listPills(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, map[string]any{"pills": a.pills})
}

func (s *Server) refinePill(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, ok := find(a.pills, id)
	if !ok {
		return message(c, http.StatusNotFound, "Pill not found")
	}
	cost := int64(100 * p.Difficulty)
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	return message(c, http.StatusOK, p.Name+" refined")
}

func (s *Server) usePill(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	p, ok := find(a.pills, id)
	if !ok {
		return message(c, http.StatusNotFound, "Pill not found")
	}
	switch p.EffectType {
	case "experience":
		a.char.Experience += int64(p.EffectValue)
	case "hp":
		a.char.Attributes.HP += int(p.EffectValue)
	}
	return message(c, http.StatusOK, p.Name+" consumed")
}

func (s *Server) listPlots(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, map[string]any{"lingtians": a.plots})
}

func (s *Server) initPlots(c echo.Context, a *account) error {
	if len(a.plots) > 0 {
		return message(c, http.StatusBadRequest, "Spirit fields already initialized")
	}
	for slot := 1; slot <= 3; slot++ {
		a.plots = append(a.plots, &game.Plot{ID: s.id(), Slot: slot, SoilQuality: "普通", IrrigationLevel: 1, FertilizerLevel: 1})
	}
	return message(c, http.StatusCreated, "Spirit fields initialized")
}

func (s *Server) listCrops(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, map[string]any{"lingzhis": a.crops})
}

func (s *Server) plant(c echo.Context, a *account) error {
	var req struct {
		Name    string `json:"name"`
		Quality string `json:"quality"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	var free *game.Plot
	for _, p := range a.plots {
		if !p.Occupied {
			free = p
			break
		}
	}
	if free == nil {
		return message(c, http.StatusBadRequest, "No free spirit field")
	}
	crop := &game.Crop{ID: s.id(), Name: req.Name, Quality: req.Quality, Level: 1, GrowthStage: "种子", AttributeType: "hp", AttributeValue: 10}
	a.crops = append(a.crops, crop)
	free.Occupied = true
	free.Crop = &game.CropSummary{ID: crop.ID, Name: crop.Name, Quality: crop.Quality, GrowthStage: crop.GrowthStage}
	return reply(c, http.StatusCreated, "Planted "+crop.Name, map[string]any{"lingzhi_id": crop.ID})
}

func growthStage(progress float64) string {
	switch {
	case progress >= 100:
		return "成熟"
	case progress >= 50:
		return "生长"
	case progress > 0:
		return "发芽"
	default:
		return "种子"
	}
}

func (s *Server) care(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	crop, ok := find(a.crops, id)
	if !ok {
		return message(c, http.StatusNotFound, "Lingzhi not found")
	}
	switch req.Type {
	case "water":
		crop.WaterLevel += 10
	case "fertilizer":
		crop.FertilizerLevel += 10
	case "sunlight":
		crop.SunlightLevel += 10
	default:
		return message(c, http.StatusBadRequest, "Unknown care type")
	}
	if crop.GrowthProgress >= 100 {
		return message(c, http.StatusBadRequest, "Lingzhi is already mature")
	}
	crop.GrowthProgress += 25
	if crop.GrowthProgress > 100 {
		crop.GrowthProgress = 100
	}
	crop.GrowthStage = growthStage(crop.GrowthProgress)
	if p := a.plotOf(crop.ID); p != nil {
		p.Crop.GrowthProgress = crop.GrowthProgress
		p.Crop.GrowthStage = crop.GrowthStage
	}
	return message(c, http.StatusOK, "Care applied: "+req.Type)
}

func (s *Server) harvest(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	crop, ok := find(a.crops, id)
	if !ok {
		return message(c, http.StatusNotFound, "Lingzhi not found")
	}
	if crop.GrowthProgress < 100 {
		return message(c, http.StatusBadRequest, "Lingzhi is not mature yet")
	}
	if p := a.plotOf(crop.ID); p != nil {
		p.Occupied = false
		p.Crop = nil
	}
	a.crops = remove(a.crops, crop.ID)
	a.lingshi += 300
	return reply(c, http.StatusOK, "Harvested "+crop.Name, map[string]any{"reward": 300})
}

func (s *Server) listMeridians(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.meridians)
}

func (s *Server) openMeridian(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, ok := find(a.meridians, id)
	if !ok {
		return message(c, http.StatusNotFound, "Meridian not found")
	}
	if m.Open {
		return message(c, http.StatusBadRequest, "Meridian already open")
	}
	if !a.spend(500) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": 500})
	}
	m.Open = true
	return message(c, http.StatusOK, m.Name+" opened")
}

func (s *Server) openAcupoint(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	for _, m := range a.meridians {
		for i := range m.Acupoints {
			p := &m.Acupoints[i]
			if p.ID != id {
				continue
			}
			if !m.Open {
				return message(c, http.StatusBadRequest, "Open the meridian first")
			}
			if p.Level >= p.MaxLevel {
				return message(c, http.StatusBadRequest, "Acupoint already at max level")
			}
			cost := int64(100 * (p.Level + 1))
			if !a.spend(cost) {
				return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
			}
			p.Level++
			return message(c, http.StatusOK, fmt.Sprintf("%s raised to level %d", p.Name, p.Level))
		}
	}
	return message(c, http.StatusNotFound, "Acupoint not found")
}

func (s *Server) listMonsters(c echo.Context, _ *account) error {
	return c.JSON(http.StatusOK, map[string]any{"monsters": s.world.monsters})
}
