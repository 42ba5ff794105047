package upstream

// Endpoint keys used by the fetch pipelines. Each key maps to a sub-path
// below the configured base URL; deployments may override single entries
// (e.g. point "vmatrix" at a first-class upstream endpoint instead of the
// skill synthesis path).
const (
	EndpointID                = "id"
	EndpointBasic             = "basic"
	EndpointPopularity        = "popularity"
	EndpointStat              = "stat"
	EndpointAbility           = "ability"
	EndpointItemEquipment     = "item_equipment"
	EndpointCashItemEquipment = "cashitem_equipment"
	EndpointSymbol            = "symbol"
	EndpointLinkSkill         = "link_skill"
	EndpointSkill             = "skill"
	EndpointVMatrix           = "vmatrix"
	EndpointHexaMatrix        = "hexamatrix"
	EndpointHexaMatrixStat    = "hexamatrix_stat"
)

// defaultEndpoints maps endpoint keys to MapleStory OpenAPI sub-paths.
var defaultEndpoints = map[string]string{
	EndpointID:                "/maplestory/v1/id",
	EndpointBasic:             "/maplestory/v1/character/basic",
	EndpointPopularity:        "/maplestory/v1/character/popularity",
	EndpointStat:              "/maplestory/v1/character/stat",
	EndpointAbility:           "/maplestory/v1/character/ability",
	EndpointItemEquipment:     "/maplestory/v1/character/item-equipment",
	EndpointCashItemEquipment: "/maplestory/v1/character/cashitem-equipment",
	EndpointSymbol:            "/maplestory/v1/character/symbol-equipment",
	EndpointLinkSkill:         "/maplestory/v1/character/link-skill",
	EndpointSkill:             "/maplestory/v1/character/skill",
	EndpointVMatrix:           "/maplestory/v1/character/skill",
	EndpointHexaMatrix:        "/maplestory/v1/character/hexamatrix",
	EndpointHexaMatrixStat:    "/maplestory/v1/character/hexamatrix-stat",
}

// Endpoints returns the endpoint table with overrides applied.
func Endpoints(overrides map[string]string) map[string]string {
	table := make(map[string]string, len(defaultEndpoints))
	for k, v := range defaultEndpoints {
		table[k] = v
	}
	for k, v := range overrides {
		table[k] = v
	}
	return table
}
