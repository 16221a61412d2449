package entity

type Item struct {
	Base

	OwnerID string
	Owner   User `gorm:"foreignKey:OwnerID"`

	Name        string
	Description string
}
