// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package lease provides single-owner leases on shared-store keys. A lease
// expires on its own if the owner dies, and only the owner can renew or
// release it.
package lease

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrNotHeld is returned when renewing or releasing a lease owned by someone else.
var ErrNotHeld = errors.New("lease not held")

// renewScript extends the TTL only if the caller still owns the key.
// KEYS[1] = lease key, ARGV[1] = owner, ARGV[2] = ttl in milliseconds
var renewScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 0
`)

// releaseScript deletes the key only if the caller still owns it.
// KEYS[1] = lease key, ARGV[1] = owner
var releaseScript = redis.NewScript(`
if redis.call('GET', KEYS[1]) == ARGV[1] then
	return redis.call('DEL', KEYS[1])
end
return 0
`)

// Lease is a held lease.
type Lease struct {
	client redis.UniversalClient
	key    string
	owner  string
	ttl    time.Duration
}

// TryAcquire takes the lease at key for owner. ok is false when another
// owner holds it. Re-acquiring an own lease renews it.
func TryAcquire(ctx context.Context, client redis.UniversalClient, key, owner string, ttl time.Duration) (*Lease, bool, error) {
	if ttl <= 0 {
		return nil, false, errors.New("invalid ttl")
	}
	l := &Lease{client: client, key: key, owner: owner, ttl: ttl}

	acquired, err := client.SetNX(ctx, key, owner, ttl).Result()
	if err != nil {
		return nil, false, fmt.Errorf("acquire lease %s: %w", key, err)
	}
	if acquired {
		return l, true, nil
	}
	// Re-entry by the same owner.
	if err := l.Renew(ctx); err != nil {
		if errors.Is(err, ErrNotHeld) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return l, true, nil
}

// Key returns the leased key.
func (l *Lease) Key() string { return l.key }

// Owner returns the owner identity.
func (l *Lease) Owner() string { return l.owner }

// TTL returns the lease duration applied on acquire and renew.
func (l *Lease) TTL() time.Duration { return l.ttl }

// Renew extends the lease by its TTL.
func (l *Lease) Renew(ctx context.Context) error {
	n, err := renewScript.Run(ctx, l.client, []string{l.key}, l.owner, l.ttl.Milliseconds()).Int()
	if err != nil {
		return fmt.Errorf("renew lease %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.key)
	}
	return nil
}

// Release gives the lease up.
func (l *Lease) Release(ctx context.Context) error {
	n, err := releaseScript.Run(ctx, l.client, []string{l.key}, l.owner).Int()
	if err != nil {
		return fmt.Errorf("release lease %s: %w", l.key, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotHeld, l.key)
	}
	return nil
}
