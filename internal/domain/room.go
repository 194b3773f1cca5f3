package domain

// RoomID is the path segment a client connects with. It is not validated.
type RoomID string

// RoomInfo is a read-only view of a live room.
type RoomInfo struct {
	ID          RoomID `json:"id"`
	MemberCount int    `json:"member_count"`
}
