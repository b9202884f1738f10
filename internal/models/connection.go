package models

import "time"

// ConnectionStatus represents the stored status of a connection edge.
type ConnectionStatus string

const (
	// ConnectionStatusPending indicates a request awaiting the receiver.
	ConnectionStatusPending ConnectionStatus = "pending"
	// ConnectionStatusConnected indicates an accepted connection.
	ConnectionStatusConnected ConnectionStatus = "connected"
)

// ConnectionView is the connection state as seen from a viewer's perspective.
type ConnectionView string

const (
	// ConnectionViewNone means no edge exists between the two users.
	ConnectionViewNone ConnectionView = "none"
	// ConnectionViewPending means the viewer sent a request that is still open.
	ConnectionViewPending ConnectionView = "pending"
	// ConnectionViewIncoming means the viewer received a request that is still open.
	ConnectionViewIncoming ConnectionView = "incoming"
	// ConnectionViewConnected means the edge has been accepted.
	ConnectionViewConnected ConnectionView = "connected"
	// ConnectionViewSelf means the viewer is looking at their own profile.
	ConnectionViewSelf ConnectionView = "self"
)

// Connection represents a directed connection request between two musicians
// that becomes a symmetric relationship once accepted. At most one edge
// exists per unordered user pair; the pair lookup is order-independent.
type Connection struct {
	ID           uint             `gorm:"primaryKey" json:"id"`
	RequesterID  uint             `gorm:"not null;uniqueIndex:idx_connection_users" json:"requester_id"`
	ReceiverID   uint             `gorm:"not null;uniqueIndex:idx_connection_users" json:"receiver_id"`
	Status       ConnectionStatus `gorm:"type:varchar(20);default:'pending';index:idx_connections_status" json:"status"`
	ContextJamID *uint            `json:"context_jam_id,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
	ResolvedAt   *time.Time       `json:"resolved_at,omitempty"`

	// Relationships
	Requester User `gorm:"foreignKey:RequesterID" json:"requester,omitempty"`
	Receiver  User `gorm:"foreignKey:ReceiverID" json:"receiver,omitempty"`
}

// TableName specifies the table name for GORM
func (Connection) TableName() string {
	return "connections"
}

// Involves reports whether the given user is one of the edge's endpoints.
func (c *Connection) Involves(userID uint) bool {
	return c.RequesterID == userID || c.ReceiverID == userID
}

// OtherUser returns the endpoint that is not the given user.
func (c *Connection) OtherUser(userID uint) uint {
	if c.RequesterID == userID {
		return c.ReceiverID
	}
	return c.RequesterID
}

// DeriveConnectionView computes the viewer-relative connection state.
// It is a pure function of the edge and the viewer; the result is never
// stored. A nil edge means no relationship exists.
func DeriveConnectionView(edge *Connection, viewerID, targetID uint) ConnectionView {
	if viewerID == targetID {
		return ConnectionViewSelf
	}
	if edge == nil {
		return ConnectionViewNone
	}
	if edge.Status == ConnectionStatusConnected {
		return ConnectionViewConnected
	}
	if edge.RequesterID == viewerID {
		return ConnectionViewPending
	}
	return ConnectionViewIncoming
}
