package entity

import "github.com/rafflehub/backend/pkg/enum"

type UserRoleType string

var (
	UserRoleUser  = enum.New(UserRoleType("user"))
	UserRoleAdmin = enum.New(UserRoleType("admin"))
)

type User struct {
	Base

	Name          string `gorm:"unique"`
	WalletAddress string
	Role          UserRoleType `gorm:"default:user"`
}
