package models

import "gorm.io/gorm"

type Review struct {
	gorm.Model

	UserID  uint `gorm:"not null;uniqueIndex:idx_review_user_trip"`
	TripID  uint `gorm:"not null;uniqueIndex:idx_review_user_trip"`
	Rating  int  `gorm:"not null"` // 1-5
	Comment string

	// Relationships
	User User `gorm:"foreignKey:UserID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
	Trip Trip `gorm:"foreignKey:TripID;constraint:OnUpdate:Cascade,OnDelete:CASCADE"`
}
