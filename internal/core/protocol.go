package core

import (
	"encoding/json"

	"github.com/dkeye/relay/internal/domain"
)

// Control message types emitted by the registry.
const (
	TypeWelcome  = "welcome"
	TypeNewPeer  = "new-peer"
	TypePeerLeft = "peer-left"
)

type welcomeMsg struct {
	Type     string            `json:"type"`
	ClientID domain.ClientID   `json:"client_id"`
	Peers    []domain.ClientID `json:"peers"`
}

type peerMsg struct {
	Type   string          `json:"type"`
	PeerID domain.ClientID `json:"peer_id"`
}

// WelcomeFrame tells a new member its id and who was already in the room.
func WelcomeFrame(id domain.ClientID, peers []domain.ClientID) Frame {
	if peers == nil {
		peers = []domain.ClientID{}
	}
	return mustMarshal(welcomeMsg{Type: TypeWelcome, ClientID: id, Peers: peers})
}

// NewPeerFrame announces a joining member.
func NewPeerFrame(id domain.ClientID) Frame {
	return mustMarshal(peerMsg{Type: TypeNewPeer, PeerID: id})
}

// PeerLeftFrame announces a departed member.
func PeerLeftFrame(id domain.ClientID) Frame {
	return mustMarshal(peerMsg{Type: TypePeerLeft, PeerID: id})
}

// the control structs contain only strings, so Marshal cannot fail.
func mustMarshal(v any) Frame {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}
