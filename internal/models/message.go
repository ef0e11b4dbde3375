package models

import "gorm.io/gorm"

// Message rows are immutable once created and are never deleted
// while the trip exists.
type Message struct {
	gorm.Model

	TripID   uint   `gorm:"not null;index"`
	SenderID uint   `gorm:"not null;index"`
	Content  string `gorm:"not null"`

	// Relationships
	Trip   Trip `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Sender User `gorm:"foreignKey:SenderID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
