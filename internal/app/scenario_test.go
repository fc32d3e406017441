package app

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kawayt/stampsys-back-sub000/internal/adapter/metrics"
	"github.com/kawayt/stampsys-back-sub000/internal/broadcast"
	"github.com/kawayt/stampsys-back-sub000/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// node is one process: its own registry and broadcast service over a shared store.
type node struct {
	id        string
	registry  *broadcast.Registry
	broadcast *BroadcastService
	service   *Service
}

// fakeBus delivers published room ids to every other node, mirroring the
// origin check of the real subscriber.
type fakeBus struct {
	nodes []*node
}

type busPublisher struct {
	bus    *fakeBus
	origin string
}

func (p *busPublisher) Publish(ctx context.Context, roomID int64) error {
	for _, n := range p.bus.nodes {
		if n.id == p.origin {
			continue
		}
		n.broadcast.OnRelayedRoomChanged(ctx, roomID)
	}
	return nil
}

func newNode(t *testing.T, id string, store *memMessages, bus *fakeBus) *node {
	t.Helper()
	n := &node{id: id, registry: broadcast.NewRegistry(nil)}

	var pub domain.RelayPublisher
	if bus != nil {
		pub = &busPublisher{bus: bus, origin: id}
	}
	n.broadcast, _ = newTestBroadcastService(store, n.registry, pub, inlinePool{})

	tx := &fakeTx{}
	bridge := NewCommitBridge(tx, n.broadcast, inlinePool{})
	n.service = NewService(&mockRoomRepo{}, &mockStampRepo{}, store, store, tx, bridge, metrics.NewStampMetrics(prometheus.NewRegistry()))
	if bus != nil {
		bus.nodes = append(bus.nodes, n)
	}
	return n
}

// watch registers a channel and writes the initial snapshot the way a stream
// binding does.
func (n *node) watch(t *testing.T, roomID int64) *broadcast.Channel {
	t.Helper()
	ch := n.registry.Register(roomID)
	snap, err := n.service.Summary(context.Background(), roomID)
	require.NoError(t, err)
	n.registry.Broadcast(roomID, snap)
	return ch
}

func nextEvent(t *testing.T, ch *broadcast.Channel) broadcast.Event {
	t.Helper()
	select {
	case ev, ok := <-ch.Events():
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event received")
		return broadcast.Event{}
	}
}

func assertNoEvent(t *testing.T, ch *broadcast.Channel) {
	t.Helper()
	select {
	case ev := <-ch.Events():
		t.Fatalf("unexpected event: %s", ev.Data)
	default:
	}
}

func decode(t *testing.T, ev broadcast.Event) domain.Snapshot {
	t.Helper()
	var snap domain.Snapshot
	require.NoError(t, json.Unmarshal(ev.Data, &snap))
	return snap
}

func TestScenario_WatcherSeesEachCommit(t *testing.T) {
	store := newMemMessages()
	n := newNode(t, "a", store, nil)

	ch := n.watch(t, 42)
	initial := decode(t, nextEvent(t, ch))
	require.Len(t, initial, 2)
	assert.Zero(t, initial.Total())
	assertNoEvent(t, ch)

	_, err := n.service.SendStamp(context.Background(), 42, 1, "")
	require.NoError(t, err)

	updated := decode(t, nextEvent(t, ch))
	assert.Equal(t, int64(1), updated[0].Count)
	assert.Equal(t, 100.0, updated[0].Percentage)
	assertNoEvent(t, ch)

	assert.Equal(t, 1, n.registry.Count(42))
	ch.Close()
	assert.Equal(t, 0, n.registry.Count(42))
}

func TestScenario_OtherRoomsUnaffected(t *testing.T) {
	store := newMemMessages()
	n := newNode(t, "a", store, nil)

	ch := n.watch(t, 7)
	nextEvent(t, ch)

	_, err := n.service.SendStamp(context.Background(), 42, 1, "")
	require.NoError(t, err)

	assertNoEvent(t, ch)
}

func TestScenario_RelayDisabledStaysLocal(t *testing.T) {
	store := newMemMessages()
	a := newNode(t, "a", store, nil)
	b := newNode(t, "b", store, nil)

	chB := b.watch(t, 42)
	nextEvent(t, chB)

	_, err := a.service.SendStamp(context.Background(), 42, 2, "")
	require.NoError(t, err)

	assertNoEvent(t, chB)
}

func TestScenario_RelayConvergesAcrossInstances(t *testing.T) {
	store := newMemMessages()
	bus := &fakeBus{}
	a := newNode(t, "a", store, bus)
	b := newNode(t, "b", store, bus)

	chA := a.watch(t, 42)
	chB := b.watch(t, 42)
	nextEvent(t, chA)
	nextEvent(t, chB)

	_, err := a.service.SendStamp(context.Background(), 42, 2, "")
	require.NoError(t, err)

	evA := nextEvent(t, chA)
	evB := nextEvent(t, chB)
	assert.Equal(t, evA.Data, evB.Data)
	assert.Equal(t, int64(1), decode(t, evB)[1].Count)

	// The origin never re-broadcasts its own relayed message.
	assertNoEvent(t, chA)
	assertNoEvent(t, chB)
}
