package models

import "time"

// JamMemberRole defines a member's role in a jam.
type JamMemberRole string

const (
	// JamMemberRoleHost is the jam host role.
	JamMemberRoleHost JamMemberRole = "host"
	// JamMemberRoleAttendee is the default attendee role.
	JamMemberRoleAttendee JamMemberRole = "attendee"
)

// JamMemberStatus defines lifecycle states for jam join requests.
type JamMemberStatus string

const (
	// JamMemberStatusPending indicates the join request is awaiting the host.
	JamMemberStatusPending JamMemberStatus = "pending"
	// JamMemberStatusApproved indicates the host accepted the request.
	JamMemberStatusApproved JamMemberStatus = "approved"
	// JamMemberStatusDeclined indicates the host declined the request.
	JamMemberStatusDeclined JamMemberStatus = "declined"
)

// JamMember is a join request/approval record keyed by (jam, user). The
// host is implicitly confirmed and never stored as a member row.
type JamMember struct {
	JamID    uint            `gorm:"primaryKey;autoIncrement:false" json:"jam_id"`
	UserID   uint            `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Role     JamMemberRole   `gorm:"type:varchar(20);not null;default:'attendee'" json:"role"`
	Status   JamMemberStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	JoinedAt time.Time       `gorm:"autoCreateTime" json:"joined_at"`

	// Relationships
	Jam  *Jam  `gorm:"foreignKey:JamID" json:"jam,omitempty"`
	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// TableName specifies the table name for GORM
func (JamMember) TableName() string {
	return "jam_members"
}

// ValidDecision reports whether a host decision value is acceptable.
func ValidDecision(s JamMemberStatus) bool {
	return s == JamMemberStatusApproved || s == JamMemberStatusDeclined
}

// MemberCounts summarizes a jam's membership. Confirmed counts approved
// rows only; the host is not included.
type MemberCounts struct {
	Confirmed int64 `json:"confirmed"`
	Pending   int64 `json:"pending"`
}
