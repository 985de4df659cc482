package cluster

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/hl1221hl/thingsboard/pkg/broadcast"
)

// MemoryBus is an in-process Producer and Consumer for single-node
// deployments and tests. Messages published to a topic are fanned out to all
// of the topic's subscribers on the same process.
type MemoryBus struct {
	topics map[string]*broadcast.MemoryBroadcaster[Message]
	buffer int
	mu     sync.Mutex
}

// NewMemoryBus creates an in-memory bus. The buffer size applies per
// subscriber; slow subscribers drop messages rather than blocking senders,
// mirroring the fire-and-forget contract of the real transport.
func NewMemoryBus(bufferSize int) *MemoryBus {
	return &MemoryBus{
		topics: make(map[string]*broadcast.MemoryBroadcaster[Message]),
		buffer: bufferSize,
	}
}

func (b *MemoryBus) topic(name string) *broadcast.MemoryBroadcaster[Message] {
	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.topics[name]
	if !ok {
		t = broadcast.NewMemoryBroadcaster[Message](b.buffer)
		b.topics[name] = t
	}
	return t
}

// Send publishes the message to the topic's local subscribers.
func (b *MemoryBus) Send(ctx context.Context, tpi TopicPartitionInfo, msg Message) error {
	return b.topic(tpi.Topic).Broadcast(ctx, msg)
}

// Messages subscribes to the topic until the context is cancelled.
func (b *MemoryBus) Messages(ctx context.Context, tpi TopicPartitionInfo) (<-chan Message, error) {
	return b.topic(tpi.Topic).Subscribe(ctx).Receive(ctx), nil
}

// Close shuts down all topics.
func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, t := range b.topics {
		_ = t.Close()
	}
	clear(b.topics)
	return nil
}

// StaticDiscovery resolves topology from a fixed node list. Useful for tests
// and deployments without dynamic membership.
type StaticDiscovery struct {
	nodeIDs []string
}

// NewStaticDiscovery creates a discovery over a fixed, pre-sorted set of core
// node ids.
func NewStaticDiscovery(nodeIDs ...string) *StaticDiscovery {
	ids := make([]string, len(nodeIDs))
	copy(ids, nodeIDs)
	return &StaticDiscovery{nodeIDs: ids}
}

func (d *StaticDiscovery) CoreNodeIDs(ctx context.Context) ([]string, error) {
	ids := make([]string, len(d.nodeIDs))
	copy(ids, d.nodeIDs)
	return ids, nil
}

func (d *StaticDiscovery) CorePartitionOwner(ctx context.Context, tenantID uuid.UUID) (string, error) {
	return partitionOwner(tenantID, d.nodeIDs)
}
