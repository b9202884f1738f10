// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a musician profile in the Jammer application.
type User struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	Username    string         `gorm:"unique;not null" json:"username"`
	Email       string         `gorm:"unique;not null" json:"email"`
	Password    string         `gorm:"not null" json:"-"`
	DisplayName string         `gorm:"size:80" json:"display_name"`
	Bio         string         `gorm:"type:text" json:"bio"`
	City        string         `gorm:"size:120;index" json:"city"`
	Country     string         `gorm:"size:120" json:"country"`
	Lat         *float64       `json:"lat,omitempty"`
	Lng         *float64       `json:"lng,omitempty"`
	Instruments StringList     `gorm:"type:text" json:"instruments"`
	Genres      StringList     `gorm:"type:text" json:"genres"`
	AvatarPath  string         `json:"avatar_path"`
	AvatarURL   string         `json:"avatar_url"`
	IsAdmin     bool           `gorm:"default:false" json:"is_admin"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

// TableName specifies the table name for GORM
func (User) TableName() string {
	return "users"
}

// HasCoordinates reports whether the profile carries a usable location.
func (u *User) HasCoordinates() bool {
	return u.Lat != nil && u.Lng != nil
}
