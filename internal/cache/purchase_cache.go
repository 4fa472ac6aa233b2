package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// PurchaseState is the poll-side view of an in-flight purchase. It is a
// read-side convenience only; the voucher table remains the source of truth.
type PurchaseState struct {
	Status    string `json:"status"` // pending, ready, failed
	Code      string `json:"code,omitempty"`
	PlanID    string `json:"plan_id"`
	Phone     string `json:"phone"`
	ClientMAC string `json:"client_mac"`
	APMAC     string `json:"ap_mac,omitempty"`
	Message   string `json:"message,omitempty"`
}

// PurchaseCache stores purchase poll state in Redis with a TTL matching the
// client's bounded retry window.
type PurchaseCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewPurchaseCache(addr, password string, db int, ttl time.Duration) (*PurchaseCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	log.Printf("[cache] Connected to Redis at %s", addr)

	return &PurchaseCache{client: client, ttl: ttl}, nil
}

func (c *PurchaseCache) key(requestRef string) string {
	return "purchase:" + requestRef
}

// Set stores the state under the purchase TTL.
func (c *PurchaseCache) Set(ctx context.Context, requestRef string, state *PurchaseState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal purchase state: %w", err)
	}
	if err := c.client.Set(ctx, c.key(requestRef), data, c.ttl).Err(); err != nil {
		return fmt.Errorf("set purchase state: %w", err)
	}
	return nil
}

// Get returns the state, or (nil, nil) when the ref is unknown or expired.
func (c *PurchaseCache) Get(ctx context.Context, requestRef string) (*PurchaseState, error) {
	data, err := c.client.Get(ctx, c.key(requestRef)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get purchase state: %w", err)
	}

	state := &PurchaseState{}
	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("unmarshal purchase state: %w", err)
	}
	return state, nil
}

func (c *PurchaseCache) Close() error {
	return c.client.Close()
}
