// Package cache buffers high-volume listing engagement in Redis until the
// analytics worker folds it into daily buckets.
package cache

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event is a kind of engagement counted against a listing
type Event string

const (
	EventView    Event = "views"
	EventClick   Event = "clicks"
	EventInquiry Event = "inquiries"
)

func (e Event) Valid() bool {
	return e == EventView || e == EventClick || e == EventInquiry
}

// Bucket is the drained engagement of one property on one UTC day
type Bucket struct {
	PropertyID uuid.UUID
	Day        time.Time
	Views      int64
	Clicks     int64
	Inquiries  int64
}

const (
	keyPrefix = "analytics:"
	dayLayout = "2006-01-02"
	keyTTL    = 72 * time.Hour
)

// RedisCounters keeps one hash per property and day
type RedisCounters struct {
	client *redis.Client
}

// NewRedisCounters connects to addr and checks the connection
func NewRedisCounters(ctx context.Context, addr, password string, db int) (*RedisCounters, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return &RedisCounters{client: client}, nil
}

func (r *RedisCounters) Close() error {
	return r.client.Close()
}

// Incr adds n to the event counter of propertyID for the day of at
func (r *RedisCounters) Incr(ctx context.Context, propertyID uuid.UUID, at time.Time, event Event, n int64) error {
	if !event.Valid() {
		return fmt.Errorf("unknown engagement event %q", event)
	}
	key := counterKey(propertyID, at)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HIncrBy(ctx, key, string(event), n)
		pipe.Expire(ctx, key, keyTTL)
		return nil
	})
	return err
}

// Drain reads and deletes every counter hash. Increments that land after a
// hash is read start a fresh hash and are picked up by the next drain.
func (r *RedisCounters) Drain(ctx context.Context) ([]Bucket, error) {
	var buckets []Bucket

	iter := r.client.Scan(ctx, 0, keyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		propertyID, day, err := parseKey(key)
		if err != nil {
			continue
		}

		var fields *redis.MapStringStringCmd
		_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			fields = pipe.HGetAll(ctx, key)
			pipe.Del(ctx, key)
			return nil
		})
		if err != nil {
			return buckets, fmt.Errorf("drain %s: %w", key, err)
		}

		b := Bucket{PropertyID: propertyID, Day: day}
		for field, raw := range fields.Val() {
			v, err := strconv.ParseInt(raw, 10, 64)
			if err != nil {
				continue
			}
			switch Event(field) {
			case EventView:
				b.Views = v
			case EventClick:
				b.Clicks = v
			case EventInquiry:
				b.Inquiries = v
			}
		}
		if b.Views+b.Clicks+b.Inquiries > 0 {
			buckets = append(buckets, b)
		}
	}
	if err := iter.Err(); err != nil {
		return buckets, fmt.Errorf("scan counters: %w", err)
	}
	return buckets, nil
}

func counterKey(propertyID uuid.UUID, at time.Time) string {
	return keyPrefix + propertyID.String() + ":" + at.UTC().Format(dayLayout)
}

func parseKey(key string) (uuid.UUID, time.Time, error) {
	parts := strings.Split(strings.TrimPrefix(key, keyPrefix), ":")
	if len(parts) != 2 {
		return uuid.Nil, time.Time{}, fmt.Errorf("malformed counter key %q", key)
	}
	id, err := uuid.Parse(parts[0])
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	day, err := time.Parse(dayLayout, parts[1])
	if err != nil {
		return uuid.Nil, time.Time{}, err
	}
	return id, day, nil
}
