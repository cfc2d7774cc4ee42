package model

// Settings keys persisted in the key/value table.
const (
	SettingPrice       = "price"
	SettingMaintenance = "maintenance_mode"
	SettingMinPurchase = "min_purchase"
	SettingMaxPurchase = "max_purchase"
)

// DefaultSettings are seeded when the schema is created.
var DefaultSettings = map[string]string{
	SettingPrice:       "50000",
	SettingMaintenance: "off",
	SettingMinPurchase: "1",
	SettingMaxPurchase: "1",
}

// PurchaseLimits bound how many orders a customer may have open.
type PurchaseLimits struct {
	Min int
	Max int
}
