package app

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// Registry owns the room-to-peers mapping. The map itself is guarded by mu;
// each room guards its own membership, so rooms never wait on each other.
// A room that empties is retired under its own lock and dropped from the map
// afterwards; an Admit that finds a retired room starts a fresh one.
type Registry struct {
	mu      sync.Mutex
	rooms   map[domain.RoomID]core.RoomService
	policy  Policy
	metrics *Metrics
}

func NewRegistry(policy Policy, metrics *Metrics) *Registry {
	if policy == nil {
		policy = KickPolicy{}
	}
	return &Registry{
		rooms:   make(map[domain.RoomID]core.RoomService),
		policy:  policy,
		metrics: metrics,
	}
}

// Admit assigns a new client id, announces it to the room and welcomes conn.
// On error the peer was never admitted and Remove must not be called for it.
func (r *Registry) Admit(roomID domain.RoomID, conn core.SignalConnection) (domain.ClientID, error) {
	id := domain.NewClientID()
	for {
		room := r.getOrCreate(roomID)
		res, err := room.Join(id, conn)
		if errors.Is(err, core.ErrRoomRetired) {
			continue
		}
		r.HandleDropped(roomID, res.Dropped)
		if err != nil {
			if room.Retired() {
				r.forget(roomID, room)
			}
			return "", fmt.Errorf("admit to room %q: %w", roomID, err)
		}

		r.metrics.peerJoined()
		r.metrics.control(core.TypeNewPeer, res.SendTo)
		r.metrics.control(core.TypeWelcome, 1)
		log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("client", string(id)).Msg("admitted")
		return id, nil
	}
}

// Remove drops the peer and tells the remaining members. Safe to call for
// unknown peers and rooms.
func (r *Registry) Remove(roomID domain.RoomID, id domain.ClientID) {
	room, ok := r.get(roomID)
	if !ok {
		log.Debug().Str("module", "app.registry").Str("room", string(roomID)).Str("client", string(id)).Msg("remove: no such room")
		return
	}
	res := room.Leave(id)
	if res.Found {
		r.metrics.peerLeft()
	}
	r.metrics.control(core.TypePeerLeft, res.SendTo)
	if res.Retired {
		r.forget(roomID, room)
	}
	r.HandleDropped(roomID, res.Dropped)
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Str("client", string(id)).Bool("found", res.Found).Msg("removed")
}

// Lookup resolves a member's connection.
func (r *Registry) Lookup(roomID domain.RoomID, id domain.ClientID) (core.SignalConnection, bool) {
	room, ok := r.get(roomID)
	if !ok {
		return nil, false
	}
	return room.Lookup(id)
}

// BroadcastToRoom enqueues data for every member. Missing rooms are a no-op.
func (r *Registry) BroadcastToRoom(roomID domain.RoomID, data core.Frame) core.PublishResult {
	room, ok := r.get(roomID)
	if !ok {
		return core.PublishResult{}
	}
	res := room.Broadcast(data)
	r.HandleDropped(roomID, res.Dropped)
	return res
}

// Rooms lists live rooms ordered by id.
func (r *Registry) Rooms() []domain.RoomInfo {
	r.mu.Lock()
	rooms := make([]core.RoomService, 0, len(r.rooms))
	for _, room := range r.rooms {
		rooms = append(rooms, room)
	}
	r.mu.Unlock()

	out := make([]domain.RoomInfo, 0, len(rooms))
	for _, room := range rooms {
		if n := room.MemberCount(); n > 0 {
			out = append(out, domain.RoomInfo{ID: room.ID(), MemberCount: n})
		}
	}
	slices.SortFunc(out, func(a, b domain.RoomInfo) int { return strings.Compare(string(a.ID), string(b.ID)) })
	return out
}

// Members returns the current member ids of a room, or false if it does not exist.
func (r *Registry) Members(roomID domain.RoomID) ([]domain.ClientID, bool) {
	room, ok := r.get(roomID)
	if !ok {
		return nil, false
	}
	members := room.Members()
	if len(members) == 0 {
		return nil, false
	}
	slices.Sort(members)
	return members, true
}

// HandleDropped applies the slow-peer policy to connections that refused a frame.
// It must be called without any room lock held.
func (r *Registry) HandleDropped(roomID domain.RoomID, dropped []core.Dropped) {
	for _, d := range dropped {
		switch r.policy.OnSendFailure(roomID, d.ID, d.Err) {
		case KickMember:
			if !errors.Is(d.Err, core.ErrConnClosed) {
				log.Warn().Err(d.Err).Str("module", "app.registry").Str("room", string(roomID)).Str("client", string(d.ID)).Msg("kicking slow peer")
				r.metrics.kicked()
			}
			d.Conn.Close()
		case DropFrame, NoAction:
			log.Debug().Err(d.Err).Str("module", "app.registry").Str("room", string(roomID)).Str("client", string(d.ID)).Msg("frame dropped")
		}
	}
}

func (r *Registry) get(roomID domain.RoomID) (core.RoomService, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	room, ok := r.rooms[roomID]
	return room, ok
}

func (r *Registry) getOrCreate(roomID domain.RoomID) core.RoomService {
	r.mu.Lock()
	defer r.mu.Unlock()
	if room, ok := r.rooms[roomID]; ok {
		if !room.Retired() {
			return room
		}
		r.metrics.roomClosed()
	}
	room := core.NewRoomService(roomID)
	r.rooms[roomID] = room
	r.metrics.roomOpened()
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room created")
	return room
}

// forget deletes room from the map unless it was already replaced.
func (r *Registry) forget(roomID domain.RoomID, room core.RoomService) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.rooms[roomID] != room {
		return
	}
	delete(r.rooms, roomID)
	r.metrics.roomClosed()
	log.Info().Str("module", "app.registry").Str("room", string(roomID)).Msg("room deleted")
}
