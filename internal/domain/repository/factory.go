package repository

// Factory describes access to different domain repositories.
type Factory interface {
	Items() InventoryRepository
	Orders() OrderRepository
	Customers() CustomerRepository
	PaymentChannels() PaymentChannelRepository
	Settings() SettingsRepository
	Ledger() Ledger
}
