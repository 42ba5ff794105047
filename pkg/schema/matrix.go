package schema

// CharacterHexaMatrix is the HEXA core payload.
type CharacterHexaMatrix struct {
	Date                      *string    `json:"date"`
	CharacterHexaCoreEquipment []HexaCore `json:"character_hexa_core_equipment"`
}

func (p *CharacterHexaMatrix) Kind() Kind          { return KindHexaMatrix }
func (p *CharacterHexaMatrix) CaptureDate() string { return deref(p.Date) }

// HexaCore is one equipped HEXA core.
type HexaCore struct {
	HexaCoreName  string      `json:"hexa_core_name"`
	HexaCoreLevel int         `json:"hexa_core_level"`
	HexaCoreType  string      `json:"hexa_core_type"`
	LinkedSkill   []HexaSkill `json:"linked_skill"`
}

// HexaSkill links a HEXA core to a skill.
type HexaSkill struct {
	HexaSkillID string `json:"hexa_skill_id"`
}

// CharacterHexaMatrixStat is the HEXA stat core payload.
type CharacterHexaMatrixStat struct {
	Date                  *string        `json:"date"`
	CharacterClass        string         `json:"character_class"`
	CharacterHexaStatCore []HexaStatCore `json:"character_hexa_stat_core"`
	PresetHexaStatCore    []HexaStatCore `json:"preset_hexa_stat_core"`
}

func (p *CharacterHexaMatrixStat) Kind() Kind          { return KindHexaMatrixStat }
func (p *CharacterHexaMatrixStat) CaptureDate() string { return deref(p.Date) }

// HexaStatCore is one HEXA stat core with its rolled stats.
type HexaStatCore struct {
	SlotID        string `json:"slot_id"`
	MainStatName  string `json:"main_stat_name"`
	SubStatName1  string `json:"sub_stat_name_1"`
	SubStatName2  string `json:"sub_stat_name_2"`
	MainStatLevel int    `json:"main_stat_level"`
	SubStatLevel1 int    `json:"sub_stat_level_1"`
	SubStatLevel2 int    `json:"sub_stat_level_2"`
	StatGrade     int    `json:"stat_grade"`
}
