package schema

import (
	"encoding/json"
	"fmt"
)

// Payload is a validated upstream response for one kind.
type Payload interface {
	Kind() Kind

	// CaptureDate returns the upstream date of the snapshot, empty when the
	// upstream omitted it.
	CaptureDate() string
}

// CharacterID is the response of the name resolution endpoint.
type CharacterID struct {
	OCID string `json:"ocid"`
}

// CharacterBasic is the basic profile payload.
type CharacterBasic struct {
	Date                     *string `json:"date"`
	CharacterName            string  `json:"character_name"`
	WorldName                string  `json:"world_name"`
	CharacterGender          string  `json:"character_gender"`
	CharacterClass           string  `json:"character_class"`
	CharacterClassLevel      string  `json:"character_class_level"`
	CharacterLevel           int     `json:"character_level"`
	CharacterExp             int64   `json:"character_exp"`
	CharacterExpRate         string  `json:"character_exp_rate"`
	CharacterGuildName       *string `json:"character_guild_name"`
	CharacterImage           string  `json:"character_image"`
	CharacterDateCreate      *string `json:"character_date_create"`
	AccessFlag               string  `json:"access_flag"`
	LiberationQuestClearFlag string  `json:"liberation_quest_clear_flag"`
}

func (p *CharacterBasic) Kind() Kind          { return KindBasic }
func (p *CharacterBasic) CaptureDate() string { return deref(p.Date) }

// CharacterPopularity is the popularity score payload.
type CharacterPopularity struct {
	Date       *string `json:"date"`
	Popularity int64   `json:"popularity"`
}

func (p *CharacterPopularity) Kind() Kind          { return KindPopularity }
func (p *CharacterPopularity) CaptureDate() string { return deref(p.Date) }

// CharacterStat is the final stat payload.
type CharacterStat struct {
	Date           *string   `json:"date"`
	CharacterClass string    `json:"character_class"`
	FinalStat      StatList  `json:"final_stat"`
	RemainAP       int       `json:"remain_ap"`
}

func (p *CharacterStat) Kind() Kind          { return KindStat }
func (p *CharacterStat) CaptureDate() string { return deref(p.Date) }

// StatEntry is one named stat value.
type StatEntry struct {
	StatName  string `json:"stat_name"`
	StatValue string `json:"stat_value"`
}

// UnmarshalJSON accepts both the object form {stat_name, stat_value} and the
// legacy [name, value] pair form.
func (e *StatEntry) UnmarshalJSON(data []byte) error {
	type plain StatEntry
	var obj plain
	if err := json.Unmarshal(data, &obj); err == nil {
		*e = StatEntry(obj)
		return nil
	}

	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("stat entry is neither object nor pair: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("stat pair has %d elements, want 2", len(pair))
	}
	e.StatName = pair[0]
	e.StatValue = pair[1]
	return nil
}

// StatList is an ordered list of stat entries.
type StatList []StatEntry

// Map returns the stat_name → stat_value view. Later duplicates win.
func (l StatList) Map() map[string]string {
	m := make(map[string]string, len(l))
	for _, e := range l {
		m[e.StatName] = e.StatValue
	}
	return m
}

// CharacterAbility is the ability payload.
type CharacterAbility struct {
	Date         *string       `json:"date"`
	AbilityGrade string        `json:"ability_grade"`
	AbilityInfo  []AbilityLine `json:"ability_info"`
	RemainFame   int64         `json:"remain_fame"`
}

func (p *CharacterAbility) Kind() Kind          { return KindAbility }
func (p *CharacterAbility) CaptureDate() string { return deref(p.Date) }

// AbilityLine is one rolled ability.
type AbilityLine struct {
	AbilityNo    string `json:"ability_no"`
	AbilityGrade string `json:"ability_grade"`
	AbilityValue string `json:"ability_value"`
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
