// internal/cache/redis.go
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jason-s-yu/trivia/internal/persist"
	"github.com/redis/go-redis/v9"
)

// DefaultQueueName is the Redis list (queue) name for session action logs.
const DefaultQueueName = "trivia_actions"

// channelPrefix namespaces the pub/sub channels carrying document writes.
const channelPrefix = "trivia:doc:"

// ActionRecord holds the minimal info needed by the historian.
type ActionRecord struct {
	SessionID     string          `json:"session_id"`
	ActionIndex   int             `json:"action_index"`
	ActorID       string          `json:"actor_id"`
	ActionType    string          `json:"action_type"`
	ActionPayload json.RawMessage `json:"action_payload,omitempty"`
	Revision      int64           `json:"revision"`
	Timestamp     int64           `json:"timestamp"` // epoch millis
}

// Connect creates a Redis client and pings it.
func Connect(ctx context.Context, addr string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}
	return rdb, nil
}

// Client wraps Redis for snapshot fan-out and the action queue.
type Client struct {
	rdb   *redis.Client
	queue string
}

// New wraps rdb. An empty queue name uses DefaultQueueName.
func New(rdb *redis.Client, queue string) *Client {
	if queue == "" {
		queue = DefaultQueueName
	}
	return &Client{rdb: rdb, queue: queue}
}

func channel(kind persist.Kind, id string) string {
	return channelPrefix + string(kind) + ":" + id
}

// Publish announces a document write to subscribers on every node.
func (c *Client) Publish(ctx context.Context, d persist.Doc) error {
	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal doc: %w", err)
	}
	if err := c.rdb.Publish(ctx, channel(d.Kind, d.ID), data).Err(); err != nil {
		return fmt.Errorf("failed to publish %s %s: %w", d.Kind, d.ID, err)
	}
	return nil
}

// Subscribe streams writes to one document until ctx is done.
func (c *Client) Subscribe(ctx context.Context, kind persist.Kind, id string) (<-chan persist.Doc, error) {
	ps := c.rdb.Subscribe(ctx, channel(kind, id))
	// wait for the subscription to be confirmed so no write is missed
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, fmt.Errorf("failed to subscribe to %s %s: %w", kind, id, err)
	}

	out := make(chan persist.Doc, 16)
	msgs := ps.Channel()
	go func() {
		defer close(out)
		defer ps.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var d persist.Doc
				if err := json.Unmarshal([]byte(msg.Payload), &d); err != nil {
					continue
				}
				select {
				case out <- d:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Ping checks the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// PublishAction serializes the given record to JSON, then pushes it to the
// historian queue.
func (c *Client) PublishAction(ctx context.Context, record ActionRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal ActionRecord: %w", err)
	}
	if err := c.rdb.RPush(ctx, c.queue, data).Err(); err != nil {
		return fmt.Errorf("failed to RPush to Redis list '%s': %w", c.queue, err)
	}
	return nil
}

// PopAction blocks up to timeout for the next queued record. It returns nil
// without error when the queue stayed empty.
func (c *Client) PopAction(ctx context.Context, timeout time.Duration) (*ActionRecord, error) {
	res, err := c.rdb.BLPop(ctx, timeout, c.queue).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// res[0] is the queue name and res[1] the payload.
	if len(res) < 2 {
		return nil, nil
	}
	var rec ActionRecord
	if err := json.Unmarshal([]byte(res[1]), &rec); err != nil {
		return nil, fmt.Errorf("invalid action record: %w", err)
	}
	return &rec, nil
}
