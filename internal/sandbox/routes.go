package sandbox

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/smileynet/xiuxian/internal/game"
)

func (s *Server) routes() {
	e := s.echo
	e.POST("/register", s.register)
	e.POST("/login", s.login)

	auth := s.requireToken
	get := func(path string, h func(echo.Context, *account) error) {
		e.GET(path, s.withCharacter(h), auth)
	}
	post := func(path string, h func(echo.Context, *account) error) {
		e.POST(path, s.withCharacter(h), auth)
	}

	e.POST("/character", s.createCharacter, auth)
	get("/character", s.getCharacter)
	post("/character/levelup", s.levelUp)
	post("/character/realm_breakthrough", s.breakthrough)

	get("/equipment", s.listEquipment)
	post("/equipment/upgrade/:id", s.upgradeEquipment)
	post("/equipment/strengthen/:id", s.strengthenEquipment)

	get("/treasure", s.listTreasures)
	post("/treasure/forge", s.forgeTreasure)
	post("/treasure/awaken/:id", s.awakenTreasure)
	post("/treasure/recast/:id", s.recastTreasure)
	post("/treasure/estimate", s.estimateTreasure)

	get("/mantra", s.listMantras)
	post("/mantra/upgrade/:id", s.upgradeMantra)
	post("/mantra/equip/:id", s.equipMantra)
	post("/mantra/unequip/:id", s.unequipMantra)
	post("/mantra/cultivate/:id", s.cultivateMantra)

	get("/shentong", s.listShentongs)
	post("/shentong/upgrade/:id", s.upgradeShentong)
	post("/shentong/equip/:id", s.equipShentong)
	post("/shentong/unequip/:id", s.unequipShentong)

	get("/pet", s.listPets)
	post("/pet/feed/:id", s.petAction("feed"))
	post("/pet/play/:id", s.petAction("play"))
	post("/pet/battle/:id", s.petAction("battle"))
	post("/pet/skill/:id", s.petAction("skill"))
	post("/pet/levelup/:id", s.petAction("levelup"))
	post("/pet/capture", s.capturePet)
	get("/pet/market", s.listMarket)
	post("/pet/market/buy/:id", s.buyPet)

	get("/sect", s.listSects)
	post("/sect", s.createSect)
	get("/sect/my", s.mySect)
	post("/sect/join/:id", s.joinSect)
	post("/sect/upgrade/:id", s.upgradeSect)
	post("/sect/contribute", s.contribute)

	get("/rune", s.listRunes)
	post("/rune/forge", s.forgeRune)
	post("/rune/equip/equipment", s.equipRuneToEquipment)
	post("/rune/equip/treasure", s.equipRuneToTreasure)

	get("/pill", s.listPills)
	post("/pill/refine/:id", s.refinePill)
	post("/pill/use/:id", s.usePill)

	get("/lingtian", s.listPlots)
	post("/lingtian/init", s.initPlots)
	get("/lingzhi", s.listCrops)
	post("/lingzhi/plant", s.plant)
	post("/lingzhi/care/:id", s.care)
	post("/lingzhi/harvest/:id", s.harvest)

	get("/meridian", s.listMeridians)
	post("/meridian/open/:id", s.openMeridian)
	post("/acupoint/open/:id", s.openAcupoint)

	get("/monsters", s.listMonsters)
}

func (s *Server) register(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Email    string `json:"email"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Password == "" {
		return message(c, http.StatusBadRequest, "Password required")
	}
	if strings.TrimSpace(req.Username) == "" {
		return message(c, http.StatusBadRequest, "Username required")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[req.Username]; ok {
		a.hash = hash
		return message(c, http.StatusOK, "User already existed, updated credentials.")
	}
	s.accounts[req.Username] = &account{username: req.Username, email: req.Email, hash: hash}
	return message(c, http.StatusCreated, "User registered successfully!")
}

func (s *Server) login(c echo.Context) error {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.accounts[req.Username]
	if !ok || bcrypt.CompareHashAndPassword(a.hash, []byte(req.Password)) != nil {
		return message(c, http.StatusUnauthorized, "Invalid credentials")
	}
	return c.JSON(http.StatusOK, map[string]string{"token": s.issueToken(a)})
}

func (s *Server) createCharacter(c echo.Context) error {
	a := c.Get(contextKeyAccount).(*account)
	var req struct {
		Name    string `json:"name"`
		Linggen string `json:"linggen"`
		Wuxing  int    `json:"wuxing"`
		Qiyun   int    `json:"qiyun"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if strings.TrimSpace(req.Name) == "" {
		return message(c, http.StatusBadRequest, "Name required")
	}
	if req.Linggen == "" {
		req.Linggen = "无"
	}
	if req.Wuxing == 0 {
		req.Wuxing = 50
	}
	if req.Qiyun == 0 {
		req.Qiyun = 50
	}
	createCharacter(a, s.id, req.Name, req.Linggen, req.Wuxing, req.Qiyun)
	return message(c, http.StatusCreated, "Character created successfully!")
}

func (s *Server) getCharacter(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.char)
}

func (s *Server) levelUp(c echo.Context, a *account) error {
	ch := a.char
	needed := int64(ch.Level) * 100
	if ch.Experience < needed {
		return reply(c, http.StatusBadRequest, "Not enough experience", map[string]any{"needed": needed})
	}
	if ch.Level%10 == 0 {
		return reply(c, http.StatusBadRequest, "需要境界突破才能继续升级", map[string]any{"need_realm_breakthrough": true})
	}
	ch.Experience -= needed
	ch.Level++
	ch.Attributes.HP += 10
	ch.Attributes.Attack += 2
	ch.Attributes.Defense += 2
	return reply(c, http.StatusOK, "Level up!", map[string]any{"new_level": ch.Level})
}

var realms = []string{"练气", "筑基", "金丹", "元婴", "化神"}

func (s *Server) breakthrough(c echo.Context, a *account) error {
	ch := a.char
	if ch.Level%10 != 0 {
		return message(c, http.StatusBadRequest, "Level too low for a realm breakthrough")
	}
	for i, r := range realms {
		if r == ch.Realm && i+1 < len(realms) {
			ch.Realm = realms[i+1]
			ch.RealmLevel = 1
			ch.Level++
			return reply(c, http.StatusOK, "Breakthrough succeeded!", map[string]any{"realm": ch.Realm})
		}
	}
	return message(c, http.StatusBadRequest, "Already at the highest realm")
}

func (s *Server) listEquipment(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.equipment)
}

func (s *Server) upgradeEquipment(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	eq, ok := find(a.equipment, id)
	if !ok {
		return message(c, http.StatusNotFound, "Equipment not found")
	}
	if eq.Level >= eq.MaxLevel {
		return message(c, http.StatusBadRequest, "Equipment already at max level")
	}
	cost := int64(eq.Level) * 50
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	eq.Level++
	eq.Experience += cost * 2
	eq.AttackBonus += 5
	return reply(c, http.StatusOK, "Equipment upgraded", map[string]any{"new_level": eq.Level, "lingshi_cost": cost})
}

func (s *Server) strengthenEquipment(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Factor float64 `json:"material_quality_factor"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Factor <= 0 {
		req.Factor = 1
	}
	eq, ok := find(a.equipment, id)
	if !ok {
		return message(c, http.StatusNotFound, "Equipment not found")
	}
	if eq.StrengthenTimes >= 20 {
		return message(c, http.StatusBadRequest, "Equipment has reached maximum strengthen level")
	}
	cost := int64(100 * (eq.Level + 1))
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	bonus := int(float64(5+eq.Level) * req.Factor)
	eq.AttackBonus += bonus
	eq.StrengthenTimes++
	return reply(c, http.StatusOK, "Strengthened", map[string]any{"cost": cost, "strengthen_level": eq.StrengthenTimes})
}

func (s *Server) listTreasures(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.treasures)
}

func (s *Server) forgeTreasure(c echo.Context, a *account) error {
	var req struct {
		Slot   int     `json:"slot"`
		Name   string  `json:"name"`
		Factor float64 `json:"material_quality_factor"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Slot < 1 || req.Slot > 6 {
		return message(c, http.StatusBadRequest, "Slot must be between 1 and 6")
	}
	if req.Name == "" {
		req.Name = "法宝"
	}
	if !a.spend(300) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": 300})
	}
	t := &game.Treasure{ID: s.id(), Slot: req.Slot, Name: req.Name, Quality: "黄阶", Level: 1, AttackBonus: 10}
	a.treasures = append(a.treasures, t)
	return reply(c, http.StatusCreated, "Treasure forged", map[string]any{"treasure_id": t.ID})
}

// treasureRates mirrors the estimate the server publishes: rates scale with
// material quality and are capped at certainty.
func treasureRates(t *game.Treasure, factor float64) map[string]any {
	if factor <= 0 {
		factor = 1
	}
	capped := func(x float64) float64 {
		if x > 1 {
			return 1
		}
		return x
	}
	return map[string]any{
		"awaken_rate":  capped(0.3 * factor),
		"recast_rate":  capped(0.5 * factor),
		"awaken_cost":  1500,
		"recast_cost":  1000 + 200*t.RecastTimes,
		"recast_times": t.RecastTimes,
	}
}

func (s *Server) estimateTreasure(c echo.Context, a *account) error {
	var req struct {
		TreasureID int     `json:"treasure_id"`
		Factor     float64 `json:"material_quality_factor"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	t, ok := find(a.treasures, req.TreasureID)
	if !ok {
		return message(c, http.StatusNotFound, "Treasure not found or not yours")
	}
	return c.JSON(http.StatusOK, treasureRates(t, req.Factor))
}

func (s *Server) awakenTreasure(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, ok := find(a.treasures, id)
	if !ok {
		return message(c, http.StatusNotFound, "Treasure not found or not yours")
	}
	if t.Awakened {
		return message(c, http.StatusBadRequest, "Treasure already awakened")
	}
	if !a.spend(1500) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": 1500})
	}
	t.Awakened = true
	t.SpecialSkill = "灵光护体"
	t.AttackBonus += 20
	return message(c, http.StatusOK, "Treasure awakened")
}

func (s *Server) recastTreasure(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	t, ok := find(a.treasures, id)
	if !ok {
		return message(c, http.StatusNotFound, "Treasure not found or not yours")
	}
	cost := int64(1000 + 200*t.RecastTimes)
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	t.RecastTimes++
	t.DefenseBonus += 5
	return message(c, http.StatusOK, "Treasure recast")
}

func (s *Server) listMantras(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.mantras)
}

func (s *Server) upgradeMantra(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, ok := find(a.mantras, id)
	if !ok {
		return message(c, http.StatusNotFound, "Mantra not found")
	}
	if m.Level >= m.MaxLevel {
		return message(c, http.StatusBadRequest, "Mantra already at max level")
	}
	cost := int64(m.Level) * 100
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	m.Level++
	m.AttackBonus += 2
	return message(c, http.StatusOK, "Mantra upgraded")
}

func (s *Server) equipMantra(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Slot int `json:"slot"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	m, ok := find(a.mantras, id)
	if !ok {
		return message(c, http.StatusNotFound, "Mantra not found")
	}
	if req.Slot < 0 || req.Slot > 5 {
		return message(c, http.StatusBadRequest, "Slot must be between 0 and 5")
	}
	if a.slotTaken(req.Slot, m.ID) {
		return message(c, http.StatusBadRequest, "Slot already occupied")
	}
	m.Equipped = true
	m.Slot = intPtr(req.Slot)
	return message(c, http.StatusOK, "Mantra equipped")
}

func (s *Server) unequipMantra(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	m, ok := find(a.mantras, id)
	if !ok {
		return message(c, http.StatusNotFound, "Mantra not found")
	}
	if !m.Equipped {
		return message(c, http.StatusBadRequest, "Mantra is not equipped")
	}
	m.Equipped = false
	m.Slot = nil
	return message(c, http.StatusOK, "Mantra unequipped")
}

var proficiencyStages = []string{"初窥门径", "略有小成", "融会贯通", "炉火纯青", "登峰造极"}

func (s *Server) cultivateMantra(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Hours int     `json:"time_spent"`
		Bonus float64 `json:"weather_bonus"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	m, ok := find(a.mantras, id)
	if !ok {
		return message(c, http.StatusNotFound, "Mantra not found")
	}
	if req.Hours <= 0 {
		return message(c, http.StatusBadRequest, "time_spent must be positive")
	}
	m.ProficiencyExp += int(float64(req.Hours*10) * (1 + req.Bonus))
	for m.ProficiencyExp >= m.ProficiencyMax && m.ProficiencyMax > 0 {
		m.ProficiencyExp -= m.ProficiencyMax
		for i, st := range proficiencyStages {
			if st == m.Proficiency && i+1 < len(proficiencyStages) {
				m.Proficiency = proficiencyStages[i+1]
				break
			}
		}
	}
	return message(c, http.StatusOK, "Cultivation complete")
}

func (s *Server) listShentongs(c echo.Context, a *account) error {
	return c.JSON(http.StatusOK, a.shentongs)
}

func (s *Server) upgradeShentong(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, ok := find(a.shentongs, id)
	if !ok {
		return message(c, http.StatusNotFound, "Shentong not found")
	}
	if st.Level >= st.MaxLevel {
		return message(c, http.StatusBadRequest, "Shentong already at max level")
	}
	cost := int64(st.Level) * 200
	if !a.spend(cost) {
		return reply(c, http.StatusBadRequest, "Not enough ling shi", map[string]any{"required": cost})
	}
	st.Level++
	st.DamageMultiplier += 0.1
	return message(c, http.StatusOK, "Shentong upgraded")
}

func (s *Server) equipShentong(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	var req struct {
		Slot int `json:"slot"`
	}
	if err := bind(c, &req); err != nil {
		return err
	}
	st, ok := find(a.shentongs, id)
	if !ok {
		return message(c, http.StatusNotFound, "Shentong not found")
	}
	if req.Slot < 1 || req.Slot > 3 {
		return message(c, http.StatusBadRequest, "Slot must be between 1 and 3")
	}
	if a.powerSlotTaken(req.Slot, st.ID) {
		return message(c, http.StatusBadRequest, "Slot already occupied")
	}
	st.Equipped = true
	st.Slot = intPtr(req.Slot)
	return message(c, http.StatusOK, "Shentong equipped")
}

func (s *Server) unequipShentong(c echo.Context, a *account) error {
	id, err := pathID(c)
	if err != nil {
		return err
	}
	st, ok := find(a.shentongs, id)
	if !ok {
		return message(c, http.StatusNotFound, "Shentong not found")
	}
	st.Equipped = false
	st.Slot = nil
	return message(c, http.StatusOK, "Shentong unequipped")
}
