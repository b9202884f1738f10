package models

import (
	"time"

	"gorm.io/gorm"
)

// Jam represents a hosted jam session with a time, location, desired
// instrument tags, and capacity.
type Jam struct {
	ID                 uint           `gorm:"primaryKey" json:"id"`
	HostID             uint           `gorm:"not null;index" json:"host_id"`
	Title              string         `gorm:"size:160;not null" json:"title"`
	Description        string         `gorm:"type:text" json:"description"`
	JamTime            time.Time      `gorm:"not null;index" json:"jam_time"`
	City               string         `gorm:"size:120" json:"city"`
	Country            string         `gorm:"size:120" json:"country"`
	Lat                *float64       `json:"lat,omitempty"`
	Lng                *float64       `json:"lng,omitempty"`
	DesiredInstruments StringList     `gorm:"type:text" json:"desired_instruments"`
	MaxAttendees       int            `gorm:"default:0" json:"max_attendees"`
	CoverPath          string         `json:"cover_path"`
	CoverURL           string         `json:"cover_url"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Host    User        `gorm:"foreignKey:HostID" json:"host,omitempty"`
	Members []JamMember `gorm:"foreignKey:JamID" json:"members,omitempty"`

	// DistanceKm is populated by proximity search, never stored. The tag
	// keeps it out of migrations while letting SELECT aliases scan into it.
	DistanceKm *float64 `gorm:"->;-:migration" json:"distance_km,omitempty"`
}

// TableName specifies the table name for GORM
func (Jam) TableName() string {
	return "jams"
}

// HasCoordinates reports whether the jam carries a usable location.
func (j *Jam) HasCoordinates() bool {
	return j.Lat != nil && j.Lng != nil
}
