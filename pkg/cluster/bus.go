package cluster

import (
	"context"

	"github.com/google/uuid"
)

// Producer sends messages to per-node partitioned topics.
// Sends are fire-and-forget from the caller's perspective: no delivery
// acknowledgment is surfaced and failed sends are not retried by this layer.
type Producer interface {
	Send(ctx context.Context, tpi TopicPartitionInfo, msg Message) error
}

// Consumer receives messages addressed to this node's topics.
type Consumer interface {
	// Messages returns a channel delivering messages published to the topic.
	// The channel is closed when the context is cancelled.
	Messages(ctx context.Context, tpi TopicPartitionInfo) (<-chan Message, error)
}

// Discovery resolves the current cluster topology.
type Discovery interface {
	// CoreNodeIDs lists the ids of all nodes currently hosting core services.
	CoreNodeIDs(ctx context.Context) ([]string, error)

	// CorePartitionOwner resolves the node owning the tenant's core
	// partition. The mapping is stable for a fixed set of nodes.
	CorePartitionOwner(ctx context.Context, tenantID uuid.UUID) (string, error)
}
