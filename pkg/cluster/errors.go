package cluster

import "errors"

var (
	ErrSendFailed       = errors.New("cluster: failed to send message")
	ErrSubscribeFailed  = errors.New("cluster: failed to subscribe to topic")
	ErrDiscoveryFailed  = errors.New("cluster: failed to resolve cluster topology")
	ErrNoNodesAvailable = errors.New("cluster: no nodes available")
)
