package schema

import (
	"encoding/json"
	"fmt"

	"github.com/cubelab/maple-proxy/pkg/apierr"
)

// requiredFields lists the top-level fields a payload must carry per kind.
// Missing fields fail validation with the field path in the error detail.
var requiredFields = map[Kind][]string{
	KindBasic:             {"character_name", "world_name", "character_class", "character_level"},
	KindPopularity:        {"popularity"},
	KindStat:              {"final_stat"},
	KindAbility:           {"ability_info"},
	KindItemEquipment:     {"item_equipment"},
	KindCashItemEquipment: {"cash_item_equipment_base"},
	KindSymbol:            {"symbol"},
	KindLinkSkill:         {"character_link_skill"},
	KindVMatrix:           {"character_skill"},
	KindHexaMatrix:        {"character_hexa_core_equipment"},
	KindHexaMatrixStat:    {"character_hexa_stat_core"},
}

// fieldAliases maps known drifting upstream field names to their canonical
// names, applied before validation.
var fieldAliases = map[Kind]map[string]string{
	KindStat:      {"final_stats": "final_stat"},
	KindSymbol:    {"symbols": "symbol"},
	KindLinkSkill: {"character_link_skill_list": "character_link_skill"},
	KindVMatrix:   {"character_skills": "character_skill"},
}

// Decode strictly validates raw upstream JSON for the given kind and returns
// the typed payload. Unknown fields are tolerated; missing required fields
// and type mismatches yield an UpstreamBadPayload error carrying the failing
// field path.
func Decode(kind Kind, raw json.RawMessage) (Payload, error) {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, apierr.Wrap(apierr.KindUpstreamBadPayload, "", err).
			WithDetail("payload is not a JSON object")
	}

	// Canonicalize drifting aliases before the required-field check.
	if aliases := fieldAliases[kind]; len(aliases) > 0 {
		renamed := false
		for alias, canonical := range aliases {
			if v, ok := top[alias]; ok {
				if _, exists := top[canonical]; !exists {
					top[canonical] = v
					renamed = true
				}
				delete(top, alias)
			}
		}
		if renamed {
			canonicalRaw, err := json.Marshal(top)
			if err != nil {
				return nil, apierr.Wrap(apierr.KindUpstreamBadPayload, "", err)
			}
			raw = canonicalRaw
		}
	}

	for _, field := range requiredFields[kind] {
		v, ok := top[field]
		if !ok || string(v) == "null" {
			return nil, apierr.New(apierr.KindUpstreamBadPayload, "").
				WithDetail(fmt.Sprintf("missing required field %q", field))
		}
	}

	payload := newPayload(kind)
	if payload == nil {
		return nil, apierr.New(apierr.KindUpstreamBadPayload, "").
			WithDetail(fmt.Sprintf("unknown kind %q", kind))
	}

	if err := json.Unmarshal(raw, payload); err != nil {
		return nil, decodeError(err)
	}
	return payload, nil
}

// DecodeCharacterID validates the name resolution response.
func DecodeCharacterID(raw json.RawMessage) (*CharacterID, error) {
	var id CharacterID
	if err := json.Unmarshal(raw, &id); err != nil {
		return nil, decodeError(err)
	}
	if id.OCID == "" {
		return nil, apierr.New(apierr.KindUpstreamBadPayload, "").
			WithDetail("missing required field \"ocid\"")
	}
	return &id, nil
}

// newPayload returns a zero payload value for the kind.
func newPayload(kind Kind) Payload {
	switch kind {
	case KindBasic:
		return &CharacterBasic{}
	case KindPopularity:
		return &CharacterPopularity{}
	case KindStat:
		return &CharacterStat{}
	case KindAbility:
		return &CharacterAbility{}
	case KindItemEquipment:
		return &CharacterItemEquipment{}
	case KindCashItemEquipment:
		return &CharacterCashItemEquipment{}
	case KindSymbol:
		return &CharacterSymbol{}
	case KindLinkSkill:
		return &CharacterLinkSkill{}
	case KindVMatrix:
		return &CharacterVMatrix{}
	case KindHexaMatrix:
		return &CharacterHexaMatrix{}
	case KindHexaMatrixStat:
		return &CharacterHexaMatrixStat{}
	default:
		return nil
	}
}

// decodeError maps a json error to UpstreamBadPayload, surfacing the field
// path for type mismatches.
func decodeError(err error) error {
	if typeErr, ok := err.(*json.UnmarshalTypeError); ok {
		detail := typeErr.Field
		if detail == "" {
			detail = fmt.Sprintf("expected %s, got %s", typeErr.Type, typeErr.Value)
		}
		return apierr.Wrap(apierr.KindUpstreamBadPayload, "", err).WithDetail(detail)
	}
	return apierr.Wrap(apierr.KindUpstreamBadPayload, "", err)
}
