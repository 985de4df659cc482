package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/hl1221hl/thingsboard/pkg/logger"
)

const nodesKeyPrefix = "cluster:nodes:"

// Config holds cluster membership configuration for this node.
type Config struct {
	NodeID            string        `env:"CLUSTER_NODE_ID,required"`                       // NodeID uniquely identifies this node within the cluster.
	HeartbeatInterval time.Duration `env:"CLUSTER_HEARTBEAT_INTERVAL" envDefault:"10s"`    // HeartbeatInterval is how often this node refreshes its registration.
	NodeTTL           time.Duration `env:"CLUSTER_NODE_TTL" envDefault:"30s"`              // NodeTTL is how long a node stays visible without a heartbeat.
	MessageBuffer     int           `env:"CLUSTER_MESSAGE_BUFFER" envDefault:"256"`        // MessageBuffer is the consumer channel buffer size.
}

// RedisBus is a redis-backed Producer and Consumer: messages are published to
// per-node topics as JSON over redis pub/sub.
type RedisBus struct {
	client *redis.Client
	buffer int
	log    *slog.Logger
}

// NewRedisBus creates a bus on top of an established redis client.
func NewRedisBus(client *redis.Client, cfg Config, log *slog.Logger) *RedisBus {
	if log == nil {
		log = slog.Default()
	}
	return &RedisBus{
		client: client,
		buffer: max(cfg.MessageBuffer, 1),
		log:    log,
	}
}

// Send publishes the message to the topic. Delivery is fire-and-forget:
// pub/sub has no acknowledgment and subscribers that are down miss the
// message.
func (b *RedisBus) Send(ctx context.Context, tpi TopicPartitionInfo, msg Message) error {
	raw, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal cluster message: %w", err)
	}
	if err := b.client.Publish(ctx, tpi.Topic, raw).Err(); err != nil {
		return errors.Join(ErrSendFailed, err)
	}
	return nil
}

// Messages subscribes to the topic and delivers decoded messages until the
// context is cancelled. Undecodable payloads are logged and skipped.
func (b *RedisBus) Messages(ctx context.Context, tpi TopicPartitionInfo) (<-chan Message, error) {
	sub := b.client.Subscribe(ctx, tpi.Topic)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Join(ErrSubscribeFailed, err)
	}

	out := make(chan Message, b.buffer)
	go func() {
		defer close(out)
		defer func() { _ = sub.Close() }()

		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-ch:
				if !ok {
					return
				}
				var msg Message
				if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil {
					b.log.LogAttrs(ctx, slog.LevelWarn, "Skipping undecodable cluster message",
						logger.Topic(tpi.Topic),
						logger.Error(err),
					)
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// RedisDiscovery tracks cluster membership in a redis sorted set scored by
// heartbeat time. Nodes that stop heartbeating fall out of view after NodeTTL.
type RedisDiscovery struct {
	client *redis.Client
	cfg    Config
	log    *slog.Logger
}

// NewRedisDiscovery creates a discovery backed by the given redis client.
func NewRedisDiscovery(client *redis.Client, cfg Config, log *slog.Logger) *RedisDiscovery {
	if log == nil {
		log = slog.Default()
	}
	return &RedisDiscovery{client: client, cfg: cfg, log: log}
}

// Register announces this node and keeps its registration fresh until the
// context is cancelled. Intended to be run in its own goroutine.
func (d *RedisDiscovery) Register(ctx context.Context, serviceType ServiceType) {
	ticker := time.NewTicker(d.cfg.HeartbeatInterval)
	defer ticker.Stop()

	d.heartbeat(ctx, serviceType)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.heartbeat(ctx, serviceType)
		}
	}
}

func (d *RedisDiscovery) heartbeat(ctx context.Context, serviceType ServiceType) {
	key := nodesKeyPrefix + string(serviceType)
	err := d.client.ZAdd(ctx, key, redis.Z{
		Score:  float64(time.Now().Unix()),
		Member: d.cfg.NodeID,
	}).Err()
	if err != nil {
		d.log.LogAttrs(ctx, slog.LevelWarn, "Failed to refresh node registration",
			logger.NodeID(d.cfg.NodeID),
			logger.Error(err),
		)
	}
}

// CoreNodeIDs lists nodes with a heartbeat within NodeTTL, sorted for a
// stable partition mapping.
func (d *RedisDiscovery) CoreNodeIDs(ctx context.Context) ([]string, error) {
	key := nodesKeyPrefix + string(ServiceTypeCore)
	cutoff := time.Now().Add(-d.cfg.NodeTTL).Unix()

	ids, err := d.client.ZRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatInt(cutoff, 10),
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, errors.Join(ErrDiscoveryFailed, err)
	}
	sort.Strings(ids)
	return ids, nil
}

// CorePartitionOwner hashes the tenant id onto the sorted list of live core
// nodes.
func (d *RedisDiscovery) CorePartitionOwner(ctx context.Context, tenantID uuid.UUID) (string, error) {
	ids, err := d.CoreNodeIDs(ctx)
	if err != nil {
		return "", err
	}
	return partitionOwner(tenantID, ids)
}

// partitionOwner maps a tenant onto one of the sorted node ids. The mapping
// is deterministic for a fixed node set.
func partitionOwner(tenantID uuid.UUID, sortedNodeIDs []string) (string, error) {
	if len(sortedNodeIDs) == 0 {
		return "", ErrNoNodesAvailable
	}
	h := fnv.New32a()
	_, _ = h.Write(tenantID[:])
	return sortedNodeIDs[int(h.Sum32())%len(sortedNodeIDs)], nil
}
