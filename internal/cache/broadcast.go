// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// broadcast.go fans taxonomy invalidations out to every running instance.
// Each instance keeps its own in-memory tree cache; when an admin mutation
// lands on one of them, the others learn about it over a Valkey channel and
// drop their copy of the affected domain.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel is the pub/sub channel carrying invalidation messages.
const DefaultChannel = "taxonomy:invalidate"

// Subscribe retry backoff bounds.
const (
	minRetryDelay = time.Second
	maxRetryDelay = 30 * time.Second
)

// invalidation is the wire format of a channel message.
type invalidation struct {
	Domain string `json:"domain"`
	Origin string `json:"origin"`
}

// Broadcaster publishes and receives taxonomy invalidations.
type Broadcaster struct {
	client   *redis.Client
	channel  string
	origin   string
	minRetry time.Duration
	maxRetry time.Duration
}

// NewBroadcaster creates a broadcaster on DefaultChannel. Every broadcaster
// gets a random origin id so it can ignore its own messages.
func NewBroadcaster(client *redis.Client) *Broadcaster {
	return &Broadcaster{
		client:  client,
		channel:  DefaultChannel,
		origin:   uuid.NewString(),
		minRetry: minRetryDelay,
		maxRetry: maxRetryDelay,
	}
}

// Origin returns this instance's id as carried in published messages.
func (b *Broadcaster) Origin() string {
	return b.origin
}

// Publish announces that domain's cache is stale.
func (b *Broadcaster) Publish(ctx context.Context, domain string) error {
	payload, err := json.Marshal(invalidation{Domain: domain, Origin: b.origin})
	if err != nil {
		return fmt.Errorf("encode invalidation: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("publish invalidation: %w", err)
	}
	slog.Debug("taxonomy invalidation published", "domain", domain)
	return nil
}

// Listen subscribes to the channel and calls fn with the domain of every
// invalidation published by another instance. It blocks until ctx is done.
// A failed or lost subscription is retried with exponential backoff, so
// Valkey being down at boot only delays cross-instance invalidation.
func (b *Broadcaster) Listen(ctx context.Context, fn func(domain string)) {
	delay := b.minRetry
	for {
		subscribed, err := b.listenOnce(ctx, fn)
		if ctx.Err() != nil {
			return
		}
		if subscribed {
			delay = b.minRetry
		}
		slog.Warn("taxonomy invalidation subscription failed, retrying",
			"channel", b.channel,
			"retry_in", delay.String(),
			"error", err,
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		delay = min(delay*2, b.maxRetry)
	}
}

// listenOnce runs a single subscription. subscribed reports whether the
// server confirmed it before the failure.
func (b *Broadcaster) listenOnce(ctx context.Context, fn func(domain string)) (subscribed bool, err error) {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	// Wait for the subscription confirmation before consuming messages.
	if _, err := sub.Receive(ctx); err != nil {
		return false, fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	slog.Info("listening for taxonomy invalidations", "channel", b.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return true, nil
		case msg, ok := <-ch:
			if !ok {
				return true, errors.New("subscription channel closed")
			}
			b.handle(msg.Payload, fn)
		}
	}
}

func (b *Broadcaster) handle(payload string, fn func(domain string)) {
	var inv invalidation
	if err := json.Unmarshal([]byte(payload), &inv); err != nil {
		slog.Warn("malformed invalidation message", "payload", payload, "error", err)
		return
	}
	if inv.Origin == b.origin || inv.Domain == "" {
		return
	}
	slog.Debug("taxonomy invalidation received", "domain", inv.Domain, "origin", inv.Origin)
	fn(inv.Domain)
}
