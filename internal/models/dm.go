package models

import "time"

// DM is the implicit direct-message channel between two users. Exactly one
// row exists per unordered pair; UserAID is always the smaller user ID so
// lookup and creation are idempotent regardless of argument order.
type DM struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	UserAID       uint       `gorm:"not null;uniqueIndex:idx_dm_pair" json:"user_a_id"`
	UserBID       uint       `gorm:"not null;uniqueIndex:idx_dm_pair" json:"user_b_id"`
	CreatedAt     time.Time  `json:"created_at"`
	UserALastRead *time.Time `gorm:"column:user_a_last_read_at" json:"user_a_last_read_at,omitempty"`
	UserBLastRead *time.Time `gorm:"column:user_b_last_read_at" json:"user_b_last_read_at,omitempty"`

	// Relationships
	UserA User `gorm:"foreignKey:UserAID" json:"user_a,omitempty"`
	UserB User `gorm:"foreignKey:UserBID" json:"user_b,omitempty"`

	// UnreadCount is computed per viewer, never stored.
	UnreadCount int64 `gorm:"-" json:"unread_count"`
}

// TableName specifies the table name for GORM
func (DM) TableName() string {
	return "dms"
}

// CanonicalPair orders two user IDs so the smaller one comes first.
// This is the de-duplication mechanism for DM rows.
func CanonicalPair(a, b uint) (uint, uint) {
	if a > b {
		return b, a
	}
	return a, b
}

// Involves reports whether the given user is a participant of the DM.
func (d *DM) Involves(userID uint) bool {
	return d.UserAID == userID || d.UserBID == userID
}

// OtherUser returns the participant that is not the given user.
func (d *DM) OtherUser(userID uint) uint {
	if d.UserAID == userID {
		return d.UserBID
	}
	return d.UserAID
}

// WatermarkFor returns the viewer's last-read watermark. A nil watermark
// means the viewer has never read the channel, so every foreign message
// counts as unread.
func (d *DM) WatermarkFor(viewerID uint) *time.Time {
	if d.UserAID == viewerID {
		return d.UserALastRead
	}
	return d.UserBLastRead
}

// WatermarkColumnFor returns the database column holding the viewer's
// last-read watermark.
func (d *DM) WatermarkColumnFor(viewerID uint) string {
	if d.UserAID == viewerID {
		return "user_a_last_read_at"
	}
	return "user_b_last_read_at"
}
