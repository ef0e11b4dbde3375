package models

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAdmin  = "admin"
	RoleMember = "member"

	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

type TripMember struct {
	gorm.Model

	UserID   uint      `gorm:"not null;uniqueIndex:idx_user_trip"`
	TripID   uint      `gorm:"not null;uniqueIndex:idx_user_trip"`
	Role     string    `gorm:"not null"` // "admin" or "member"
	Status   string    `gorm:"not null"` // "pending", "approved" or "rejected"
	JoinedAt time.Time `gorm:"not null"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Trip Trip `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
