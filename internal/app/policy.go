package app

import (
	"errors"

	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
)

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	KickMember
	DropFrame
)

// Policy decides what happens to a member whose connection refused a frame.
type Policy interface {
	OnSendFailure(room domain.RoomID, member domain.ClientID, err error) BackpressureAction
}

// KickPolicy closes any connection that refuses a frame. Its own read loop
// then ends and removes it from the room.
type KickPolicy struct{}

func (KickPolicy) OnSendFailure(domain.RoomID, domain.ClientID, error) BackpressureAction {
	return KickMember
}

// DropPolicy discards frames for a full queue but still kicks closed connections.
type DropPolicy struct{}

func (DropPolicy) OnSendFailure(_ domain.RoomID, _ domain.ClientID, err error) BackpressureAction {
	if errors.Is(err, core.ErrConnClosed) {
		return KickMember
	}
	return DropFrame
}

// PolicyByName maps the slow_peer_policy config value.
func PolicyByName(name string) Policy {
	if name == "drop" {
		return DropPolicy{}
	}
	return KickPolicy{}
}
