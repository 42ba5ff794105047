package store

import (
	"sort"
	"strings"
	"time"
)

// CharacterIdentity is the identity row keyed by OCID. Name lookups resolve
// to the identity with the greatest ObservedAt, so a name that moved between
// characters follows the most recent observation.
type CharacterIdentity struct {
	OCID           string    `gorm:"column:ocid;primaryKey" json:"ocid"`
	CharacterName  string    `gorm:"index" json:"character_name"`
	WorldName      string    `json:"world_name"`
	CharacterClass string    `json:"character_class"`
	CharacterLevel int       `json:"character_level"`
	ObservedAt     time.Time `gorm:"index" json:"observed_at"`
}

// TableName implements gorm naming.
func (CharacterIdentity) TableName() string { return "character_identities" }

// CharacterRecord is one captured payload for (ocid, kind, filter). Records
// are never mutated in place: single-instance kinds overwrite by key, all
// other kinds append and keep history.
type CharacterRecord struct {
	ID         uint      `gorm:"primaryKey" json:"-"`
	OCID       string    `gorm:"column:ocid;index:idx_record_lookup,priority:1" json:"ocid"`
	Kind       string    `gorm:"index:idx_record_lookup,priority:2" json:"kind"`
	Filter     string    `gorm:"index:idx_record_lookup,priority:3" json:"-"`
	CapturedAt time.Time `gorm:"index:idx_record_lookup,priority:4" json:"captured_at"`
	Payload    []byte    `json:"payload"`
}

// TableName implements gorm naming.
func (CharacterRecord) TableName() string { return "character_records" }

// FilterKey canonicalizes extra filters into a deterministic cache key
// fragment: sorted k=v pairs joined by "&", empty for no filters.
func FilterKey(filters map[string]string) string {
	if len(filters) == 0 {
		return ""
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+filters[k])
	}
	return strings.Join(parts, "&")
}
