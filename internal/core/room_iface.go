package core

import (
	"errors"

	"github.com/dkeye/relay/internal/domain"
)

var (
	// ErrRoomRetired means the room emptied and was retired before Join got its lock.
	// The caller should retry on a fresh room.
	ErrRoomRetired = errors.New("room retired")
	// ErrWelcomeUndeliverable means the joining connection rejected its welcome.
	ErrWelcomeUndeliverable = errors.New("welcome undeliverable")
)

// Dropped is a member whose connection refused a frame.
type Dropped struct {
	ID   domain.ClientID
	Conn SignalConnection
	Err  error
}

// PublishResult reports delivery stats/backpressure to the registry.
type PublishResult struct {
	SendTo  int
	Dropped []Dropped
}

func (p *PublishResult) merge(o PublishResult) {
	p.SendTo += o.SendTo
	p.Dropped = append(p.Dropped, o.Dropped...)
}

// JoinResult describes a completed Join.
type JoinResult struct {
	// Peers is the membership snapshot taken before the new member was inserted.
	Peers []domain.ClientID
	PublishResult
}

// LeaveResult describes a Leave. Retired is true when this call emptied the room.
type LeaveResult struct {
	Found   bool
	Retired bool
	PublishResult
}

// RoomService is the core-facing API of a room.
// It owns the membership set but never touches transport resources beyond TrySend.
type RoomService interface {
	ID() domain.RoomID
	MemberCount() int
	Members() []domain.ClientID
	Retired() bool

	Join(id domain.ClientID, conn SignalConnection) (JoinResult, error)
	Leave(id domain.ClientID) LeaveResult
	Lookup(id domain.ClientID) (SignalConnection, bool)
	Broadcast(data Frame) PublishResult
}
