package models

import (
	"time"

	"gorm.io/gorm"
)

// RoomType identifies which kind of room a message belongs to.
type RoomType string

const (
	// RoomTypeDM is a two-person direct-message channel.
	RoomTypeDM RoomType = "dm"
	// RoomTypeJam is a jam's group chat room.
	RoomTypeJam RoomType = "jam"
)

// ValidRoomType reports whether the given value is a known room type.
func ValidRoomType(t RoomType) bool {
	return t == RoomTypeDM || t == RoomTypeJam
}

// Message is a chat message in a DM or jam room. Unread tracking lives on
// the DM row as per-user last-read watermarks, not on the message.
type Message struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	RoomType  RoomType       `gorm:"type:varchar(10);not null;index:idx_messages_room" json:"room_type"`
	RoomID    uint           `gorm:"not null;index:idx_messages_room" json:"room_id"`
	SenderID  uint           `gorm:"not null;index" json:"sender_id"`
	Content   string         `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time      `gorm:"index" json:"created_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Sender *User `gorm:"foreignKey:SenderID" json:"sender,omitempty"`
}

// TableName specifies the table name for GORM
func (Message) TableName() string {
	return "messages"
}
