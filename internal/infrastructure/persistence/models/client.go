package models

// Client statuses
const (
	ClientStatusActive   = "ACTIVE"
	ClientStatusInactive = "INACTIVE"
)

// ClientModel is a customer company of a tenant. Clients are tenant-wide and
// are deactivated instead of removed.
type ClientModel struct {
	ScopedModel
	Code            string `gorm:"type:varchar(50);not null;index"`
	Name            string `gorm:"type:varchar(200);not null"`
	ContactName     string `gorm:"type:varchar(100)"`
	ContactPhone    string `gorm:"type:varchar(50)"`
	Email           string `gorm:"type:varchar(200)"`
	GSTIN           string `gorm:"column:gstin;type:varchar(20)"`
	BillingAddress  string `gorm:"type:text"`
	ShippingAddress string `gorm:"type:text"`
	PaymentTerms    int    `gorm:"not null;default:0"`
	Status          string `gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	Remark          string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (ClientModel) TableName() string {
	return "clients"
}
