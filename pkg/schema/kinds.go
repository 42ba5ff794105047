// Package schema defines the eleven character data kinds served by the
// proxy, their typed payload shapes, and the strict decoder that turns
// upstream JSON into validated records.
package schema

import "strings"

// Kind identifies one of the character data categories.
type Kind string

const (
	KindBasic             Kind = "basic"
	KindPopularity        Kind = "popularity"
	KindStat              Kind = "stat"
	KindAbility           Kind = "ability"
	KindItemEquipment     Kind = "item_equipment"
	KindCashItemEquipment Kind = "cashitem_equipment"
	KindSymbol            Kind = "symbol"
	KindLinkSkill         Kind = "link_skill"
	KindVMatrix           Kind = "vmatrix"
	KindHexaMatrix        Kind = "hexamatrix"
	KindHexaMatrixStat    Kind = "hexamatrix_stat"
)

// Kinds lists every kind in serving order.
var Kinds = []Kind{
	KindBasic,
	KindPopularity,
	KindStat,
	KindAbility,
	KindItemEquipment,
	KindCashItemEquipment,
	KindSymbol,
	KindLinkSkill,
	KindVMatrix,
	KindHexaMatrix,
	KindHexaMatrixStat,
}

// pathSegment maps URL path segments to kinds.
var pathSegment = map[string]Kind{
	"basic":              KindBasic,
	"popularity":         KindPopularity,
	"stat":               KindStat,
	"ability":            KindAbility,
	"item-equipment":     KindItemEquipment,
	"cashitem-equipment": KindCashItemEquipment,
	"symbol":             KindSymbol,
	"link-skill":         KindLinkSkill,
	"vmatrix":            KindVMatrix,
	"hexamatrix":         KindHexaMatrix,
	"hexamatrix-stat":    KindHexaMatrixStat,
}

// ParseKind resolves a URL path segment (e.g. "item-equipment") to its kind.
func ParseKind(segment string) (Kind, bool) {
	k, ok := pathSegment[strings.ToLower(strings.TrimSuffix(segment, "/"))]
	return k, ok
}

// PathSegment returns the kind's URL path segment.
func (k Kind) PathSegment() string {
	return strings.ReplaceAll(string(k), "_", "-")
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	return string(k)
}

// SingleInstance reports whether records of this kind overwrite in place.
// Only basic has overwrite semantics; every other kind retains history.
func (k Kind) SingleInstance() bool {
	return k == KindBasic
}

// Valid reports whether k is one of the served kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}
