package schema

// CharacterSymbol is the symbol equipment payload.
type CharacterSymbol struct {
	Date           *string       `json:"date"`
	CharacterClass string        `json:"character_class"`
	Symbol         []SymbolEntry `json:"symbol"`
}

func (p *CharacterSymbol) Kind() Kind          { return KindSymbol }
func (p *CharacterSymbol) CaptureDate() string { return deref(p.Date) }

// SymbolEntry is one equipped symbol.
type SymbolEntry struct {
	SymbolName               string `json:"symbol_name"`
	SymbolIcon               string `json:"symbol_icon"`
	SymbolDescription        string `json:"symbol_description"`
	SymbolForce              string `json:"symbol_force"`
	SymbolLevel              int    `json:"symbol_level"`
	SymbolStr                string `json:"symbol_str"`
	SymbolDex                string `json:"symbol_dex"`
	SymbolInt                string `json:"symbol_int"`
	SymbolLuk                string `json:"symbol_luk"`
	SymbolHP                 string `json:"symbol_hp"`
	SymbolGrowthCount        int64  `json:"symbol_growth_count"`
	SymbolRequireGrowthCount int64  `json:"symbol_require_growth_count"`
}

// CharacterLinkSkill is the link skill payload.
type CharacterLinkSkill struct {
	Date                    *string     `json:"date"`
	CharacterClass          string      `json:"character_class"`
	CharacterLinkSkill      []SkillInfo `json:"character_link_skill"`
	CharacterOwnedLinkSkill *SkillInfo  `json:"character_owned_link_skill"`
}

func (p *CharacterLinkSkill) Kind() Kind          { return KindLinkSkill }
func (p *CharacterLinkSkill) CaptureDate() string { return deref(p.Date) }

// CharacterVMatrix is the V-matrix payload, synthesized from the skill
// endpoint at grade 5.
type CharacterVMatrix struct {
	Date                *string     `json:"date"`
	CharacterClass      string      `json:"character_class"`
	CharacterSkillGrade *string     `json:"character_skill_grade"`
	CharacterSkill      []SkillInfo `json:"character_skill"`
}

func (p *CharacterVMatrix) Kind() Kind          { return KindVMatrix }
func (p *CharacterVMatrix) CaptureDate() string { return deref(p.Date) }

// SkillInfo is one skill entry shared by the link skill and V-matrix kinds.
type SkillInfo struct {
	SkillName        string `json:"skill_name"`
	SkillDescription string `json:"skill_description"`
	SkillLevel       int    `json:"skill_level"`
	SkillEffect      string `json:"skill_effect"`
	SkillIcon        string `json:"skill_icon"`
}
