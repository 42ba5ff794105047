package schema

// CharacterItemEquipment is the equipped gear payload with presets 1-3.
type CharacterItemEquipment struct {
	Date                 *string `json:"date"`
	CharacterGender      string  `json:"character_gender"`
	CharacterClass       string  `json:"character_class"`
	PresetNo             int     `json:"preset_no"`
	ItemEquipment        []Item  `json:"item_equipment"`
	ItemEquipmentPreset1 []Item  `json:"item_equipment_preset_1"`
	ItemEquipmentPreset2 []Item  `json:"item_equipment_preset_2"`
	ItemEquipmentPreset3 []Item  `json:"item_equipment_preset_3"`
	Title                *Title  `json:"title"`
	DragonEquipment      []Item  `json:"dragon_equipment"`
	MechanicEquipment    []Item  `json:"mechanic_equipment"`
}

func (p *CharacterItemEquipment) Kind() Kind          { return KindItemEquipment }
func (p *CharacterItemEquipment) CaptureDate() string { return deref(p.Date) }

// Item is one equipped item slot.
type Item struct {
	ItemEquipmentPart string  `json:"item_equipment_part"`
	ItemEquipmentSlot string  `json:"item_equipment_slot"`
	ItemName          string  `json:"item_name"`
	ItemIcon          string  `json:"item_icon"`
	ItemDescription   *string `json:"item_description"`
	ItemShapeName     string  `json:"item_shape_name"`
	ItemShapeIcon     string  `json:"item_shape_icon"`
	ItemGender        *string `json:"item_gender"`
	ScrollUpgrade     string  `json:"scroll_upgrade"`
	StarforceCount    string  `json:"starforce"`
	GoldenHammerFlag  string  `json:"golden_hammer_flag"`
}

// Title is the equipped title, absent for characters without one.
type Title struct {
	TitleName        string  `json:"title_name"`
	TitleIcon        string  `json:"title_icon"`
	TitleDescription *string `json:"title_description"`
	DateExpire       *string `json:"date_expire"`
	DateOptionExpire *string `json:"date_option_expire"`
}

// CharacterCashItemEquipment is the cosmetic/cash item payload.
type CharacterCashItemEquipment struct {
	Date                            *string    `json:"date"`
	CharacterGender                 string     `json:"character_gender"`
	CharacterClass                  string     `json:"character_class"`
	PresetNo                        int        `json:"preset_no"`
	CashItemEquipmentBase           []CashItem `json:"cash_item_equipment_base"`
	CashItemEquipmentPreset1        []CashItem `json:"cash_item_equipment_preset_1"`
	CashItemEquipmentPreset2        []CashItem `json:"cash_item_equipment_preset_2"`
	CashItemEquipmentPreset3        []CashItem `json:"cash_item_equipment_preset_3"`
	AdditionalCashItemEquipmentBase []CashItem `json:"additional_cash_item_equipment_base"`
}

func (p *CharacterCashItemEquipment) Kind() Kind          { return KindCashItemEquipment }
func (p *CharacterCashItemEquipment) CaptureDate() string { return deref(p.Date) }

// CashItem is one equipped cash item.
type CashItem struct {
	CashItemEquipmentPart string   `json:"cash_item_equipment_part"`
	CashItemEquipmentSlot string   `json:"cash_item_equipment_slot"`
	CashItemName          string   `json:"cash_item_name"`
	CashItemIcon          string   `json:"cash_item_icon"`
	CashItemDescription   *string  `json:"cash_item_description"`
	CashItemLabel         *string  `json:"cash_item_label"`
	CashItemColoringPrism *Prism   `json:"cash_item_coloring_prism"`
	DateExpire            *string  `json:"date_expire"`
	DateOptionExpire      *string  `json:"date_option_expire"`
	CashItemOption        []Option `json:"cash_item_option"`
}

// Prism is the coloring prism applied to a cash item.
type Prism struct {
	ColorRange string `json:"color_range"`
	Hue        int    `json:"hue"`
	Saturation int    `json:"saturation"`
	Value      int    `json:"value"`
}

// Option is one option line on a cash item.
type Option struct {
	OptionType  string `json:"option_type"`
	OptionValue string `json:"option_value"`
}
