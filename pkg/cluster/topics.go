package cluster

import "fmt"

// ServiceType identifies the kind of service a cluster node runs.
type ServiceType string

const (
	// ServiceTypeCore identifies nodes running core services, including
	// notification processing and live subscription sessions.
	ServiceTypeCore ServiceType = "core"
)

// TopicPartitionInfo addresses a per-node partitioned topic.
// Messages sent to the same TopicPartitionInfo are consumed by exactly one
// node: the one identified by NodeID.
type TopicPartitionInfo struct {
	Topic       string
	ServiceType ServiceType
	NodeID      string
}

// NotificationsTopic returns the notifications topic for the given service
// type and node. The topic name is derived deterministically so that any node
// can address any other node without coordination.
func NotificationsTopic(serviceType ServiceType, nodeID string) TopicPartitionInfo {
	return TopicPartitionInfo{
		Topic:       fmt.Sprintf("notifications.%s.%s", serviceType, nodeID),
		ServiceType: serviceType,
		NodeID:      nodeID,
	}
}
