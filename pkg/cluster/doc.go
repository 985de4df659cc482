// Package cluster provides the cross-node messaging primitives used to
// propagate notification state changes and scheduling messages between nodes
// of a partitioned deployment.
//
// Topics are partitioned per node: NotificationsTopic(serviceType, nodeID)
// derives a deterministic topic name so any node can address any other
// without coordination. A Producer sends opaque, identified payloads
// (Message) to such topics; a Consumer receives the messages addressed to its
// own node. Both are fire-and-forget: no delivery acknowledgment is surfaced
// and failed sends are not retried at this layer.
//
// Discovery resolves the current topology: the set of live core nodes, and
// the owner of a tenant's core partition (a stable hash of the tenant id over
// the sorted node list).
//
// Two transports are provided: RedisBus/RedisDiscovery on redis pub/sub with
// heartbeat-based membership, and MemoryBus/StaticDiscovery for single-node
// deployments and tests.
package cluster
