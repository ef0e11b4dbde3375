package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Trip struct {
	gorm.Model

	Title       string `gorm:"not null"`
	Destination string `gorm:"not null"`
	Description string
	StartDate   time.Time `gorm:"not null"`
	EndDate     time.Time `gorm:"not null"`
	Budget      *float64
	Tags        datatypes.JSON `gorm:"type:jsonb"` // JSON array of tag strings
	CreatorID   uint           `gorm:"not null;index"`

	// Relationships
	Creator  User         `gorm:"foreignKey:CreatorID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Members  []TripMember `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Messages []Message    `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Reviews  []Review     `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
