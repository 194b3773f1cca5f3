package orch_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/relay/internal/app"
	"github.com/dkeye/relay/internal/app/orch"
	"github.com/dkeye/relay/internal/core"
	"github.com/dkeye/relay/internal/core/coretest"
	"github.com/dkeye/relay/internal/domain"
)

type fixture struct {
	o       *orch.Orchestrator
	metrics *app.Metrics
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	m := app.NewMetrics(prometheus.NewRegistry())
	return fixture{o: orch.New(app.NewRegistry(app.KickPolicy{}, m), m), metrics: m}
}

func (f fixture) join(t *testing.T, room domain.RoomID) (domain.ClientID, *coretest.Conn) {
	t.Helper()
	c := coretest.NewConn()
	id, err := f.o.Join(room, c)
	require.NoError(t, err)
	return id, c
}

// peerMessages skips control frames.
func peerMessages(c *coretest.Conn) []map[string]any {
	var out []map[string]any
	for _, m := range c.Messages() {
		switch m["type"] {
		case core.TypeWelcome, core.TypeNewPeer, core.TypePeerLeft:
			continue
		}
		out = append(out, m)
	}
	return out
}

func TestRoute_DeliversWithSender(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "r1")
	idB, b := f.join(t, "r1")

	err := f.o.Route("r1", idA, []byte(`{"to":"`+string(idB)+`","type":"offer","sdp":"v=0"}`))
	require.NoError(t, err)

	assert.Equal(t, []map[string]any{{
		"to":   string(idB),
		"from": string(idA),
		"type": "offer",
		"sdp":  "v=0",
	}}, peerMessages(b))
	assert.Empty(t, peerMessages(a))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Routed))
}

func TestRoute_OverwritesSpoofedFrom(t *testing.T) {
	f := newFixture(t)
	idA, _ := f.join(t, "r1")
	idB, b := f.join(t, "r1")

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"`+string(idB)+`","from":"mallory"}`)))

	got := peerMessages(b)
	require.Len(t, got, 1)
	assert.Equal(t, string(idA), got[0]["from"])
}

func TestRoute_UnknownTargetIsDroppedSilently(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "r1")
	_, b := f.join(t, "r1")
	idC, _ := f.join(t, "r2")

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"nobody"}`)))
	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"`+string(idC)+`"}`)))
	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":42}`)))

	assert.Empty(t, peerMessages(a))
	assert.Empty(t, peerMessages(b))
	assert.Equal(t, 3.0, testutil.ToFloat64(f.metrics.Dropped.WithLabelValues(app.ReasonUnknownTarget)))
}

func TestRoute_NoTargetIsDropped(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "r1")
	_, b := f.join(t, "r1")

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"type":"offer"}`)))

	assert.Empty(t, peerMessages(a))
	assert.Empty(t, peerMessages(b))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Dropped.WithLabelValues(app.ReasonNoTarget)))
}

func TestRoute_Malformed(t *testing.T) {
	f := newFixture(t)
	idA, _ := f.join(t, "r1")
	_, b := f.join(t, "r1")

	for _, raw := range []string{`not json`, `null`, `[1,2]`, `"to"`, `{"to":`} {
		err := f.o.Route("r1", idA, []byte(raw))
		assert.ErrorIs(t, err, orch.ErrMalformedMessage, raw)
	}
	assert.Empty(t, peerMessages(b))
	assert.Equal(t, 5.0, testutil.ToFloat64(f.metrics.Dropped.WithLabelValues(app.ReasonMalformed)))
}

func TestRoute_SelfAddressed(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "r1")

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"`+string(idA)+`"}`)))
	assert.Equal(t, []map[string]any{{"to": string(idA), "from": string(idA)}}, peerMessages(a))
}

func TestRoute_SlowTargetIsKickedSenderUnaffected(t *testing.T) {
	f := newFixture(t)
	idA, a := f.join(t, "r1")
	idB, b := f.join(t, "r1")
	b.Fail = core.ErrBackpressure

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"`+string(idB)+`"}`)))

	assert.True(t, b.Closed())
	assert.False(t, a.Closed())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Dropped.WithLabelValues(app.ReasonSendFailed)))
}

func TestScenario_TwoPeersHandshake(t *testing.T) {
	f := newFixture(t)

	idA, a := f.join(t, "r1")
	assert.Equal(t, []map[string]any{{"type": core.TypeWelcome, "client_id": string(idA), "peers": []any{}}}, a.Messages())

	idB, b := f.join(t, "r1")
	assert.Equal(t, []map[string]any{{"type": core.TypeWelcome, "client_id": string(idB), "peers": []any{string(idA)}}}, b.Messages())
	assert.Equal(t, []map[string]any{{"type": core.TypeNewPeer, "peer_id": string(idB)}}, a.OfType(core.TypeNewPeer))

	require.NoError(t, f.o.Route("r1", idB, []byte(`{"to":"`+string(idA)+`","type":"offer","sdp":"X"}`)))
	assert.Equal(t, []map[string]any{{"to": string(idA), "from": string(idB), "type": "offer", "sdp": "X"}}, peerMessages(a))

	require.NoError(t, f.o.Route("r1", idA, []byte(`{"to":"`+string(idB)+`","type":"answer","sdp":"Y"}`)))
	assert.Equal(t, []map[string]any{{"to": string(idB), "from": string(idA), "type": "answer", "sdp": "Y"}}, peerMessages(b))

	f.o.Leave("r1", idB)
	assert.Equal(t, []map[string]any{{"type": core.TypePeerLeft, "peer_id": string(idB)}}, a.OfType(core.TypePeerLeft))

	f.o.Leave("r1", idA)
	assert.Empty(t, f.o.Registry.Rooms())
}
