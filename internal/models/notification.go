package models

import "gorm.io/gorm"

type Notification struct {
	gorm.Model

	UserID  uint   `gorm:"not null;index"`
	Content string `gorm:"not null"`
	IsRead  bool   `gorm:"default:false"`

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
