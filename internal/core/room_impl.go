package core

import (
	"fmt"
	"sync"

	"github.com/dkeye/relay/internal/domain"
	"github.com/rs/zerolog/log"
)

// roomImpl is a threadsafe in-memory room.
// It never closes adapter-owned resources.
type roomImpl struct {
	id      domain.RoomID
	mu      sync.RWMutex
	members map[domain.ClientID]SignalConnection
	retired bool
}

func NewRoomService(id domain.RoomID) RoomService {
	return &roomImpl{
		id:      id,
		members: make(map[domain.ClientID]SignalConnection),
	}
}

func (r *roomImpl) ID() domain.RoomID { return r.id }

func (r *roomImpl) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *roomImpl) Retired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.retired
}

func (r *roomImpl) Members() []domain.ClientID {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.snapshotLocked()
}

// Join announces id to the current members, inserts it and enqueues its
// welcome, all under one lock. If the welcome cannot be enqueued the join is
// undone and the members that saw new-peer get peer-left.
func (r *roomImpl) Join(id domain.ClientID, conn SignalConnection) (JoinResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.retired {
		return JoinResult{}, ErrRoomRetired
	}

	res := JoinResult{Peers: r.snapshotLocked()}
	res.merge(r.fanoutLocked(NewPeerFrame(id)))

	r.members[id] = conn

	if err := conn.TrySend(WelcomeFrame(id, res.Peers)); err != nil {
		delete(r.members, id)
		if len(r.members) == 0 {
			r.retired = true
		}
		res.merge(r.fanoutLocked(PeerLeftFrame(id)))
		log.Warn().Err(err).Str("module", "core.room").Str("room", string(r.id)).Str("client", string(id)).Msg("welcome rejected, join undone")
		return res, fmt.Errorf("%w: %w", ErrWelcomeUndeliverable, err)
	}

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("client", string(id)).Int("peers", len(res.Peers)).Msg("member added")
	return res, nil
}

// Leave removes id if present and tells whoever remains. The room retires
// when its last member leaves and never accepts members again.
func (r *roomImpl) Leave(id domain.ClientID) LeaveResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res LeaveResult
	if _, ok := r.members[id]; ok {
		delete(r.members, id)
		res.Found = true
	}
	if len(r.members) == 0 && !r.retired {
		r.retired = true
		res.Retired = true
	}
	res.merge(r.fanoutLocked(PeerLeftFrame(id)))

	log.Info().Str("module", "core.room").Str("room", string(r.id)).Str("client", string(id)).Bool("found", res.Found).Bool("retired", res.Retired).Msg("member removed")
	return res
}

func (r *roomImpl) Lookup(id domain.ClientID) (SignalConnection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.members[id]
	return conn, ok
}

func (r *roomImpl) Broadcast(data Frame) PublishResult {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := r.fanoutLocked(data)
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (r *roomImpl) fanoutLocked(data Frame) PublishResult {
	res := PublishResult{}
	for id, conn := range r.members {
		if err := conn.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, Dropped{ID: id, Conn: conn, Err: err})
			continue
		}
		res.SendTo++
	}
	return res
}

func (r *roomImpl) snapshotLocked() []domain.ClientID {
	out := make([]domain.ClientID, 0, len(r.members))
	for id := range r.members {
		out = append(out, id)
	}
	return out
}
