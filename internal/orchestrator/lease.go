// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/redis/go-redis/v9"

	"github.com/ManuGH/contentrelease/internal/kv"
	"github.com/ManuGH/contentrelease/internal/lease"
	"github.com/ManuGH/contentrelease/internal/model"
)

// HeldLease is a lease the orchestrator holds for the duration of a render.
type HeldLease interface {
	Renew(ctx context.Context) error
	Release(ctx context.Context) error
}

// Leaser hands out the per-release lease. ok is false when someone else holds it.
type Leaser interface {
	Acquire(ctx context.Context, id model.ReleaseID) (held HeldLease, ok bool, err error)
}

// RedisLeaser takes leases under the release's lease key.
type RedisLeaser struct {
	Client redis.UniversalClient
	Keys   kv.Keys
	Owner  string
	TTL    time.Duration
}

// DefaultOwner identifies this process: host, pid and a random suffix.
func DefaultOwner() string {
	host, _ := os.Hostname()
	return fmt.Sprintf("%s-%d-%s", host, os.Getpid(), uuid.NewString())
}

func (l RedisLeaser) Acquire(ctx context.Context, id model.ReleaseID) (HeldLease, bool, error) {
	ttl := l.TTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	owner := l.Owner
	if owner == "" {
		owner = DefaultOwner()
	}
	held, ok, err := lease.TryAcquire(ctx, l.Client, l.Keys.Lease(id), owner, ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return held, true, nil
}

// leaseKeeper renews a held lease once renewEvery has passed since the last
// renewal. The render loop calls it between store operations, so a lapse is
// noticed before the next write.
type leaseKeeper struct {
	held  HeldLease
	clock clockwork.Clock
	every time.Duration
	last  time.Time
}

func newLeaseKeeper(held HeldLease, clock clockwork.Clock, every time.Duration) *leaseKeeper {
	if held == nil {
		return nil
	}
	if every <= 0 {
		every = DefaultLeaseRenewEvery
		if t, ok := held.(interface{ TTL() time.Duration }); ok && t.TTL() > 0 {
			every = t.TTL() / 3
		}
	}
	return &leaseKeeper{held: held, clock: clock, every: every, last: clock.Now()}
}

// renewIfDue returns ErrLeaseLost when the lease is owned by someone else.
func (k *leaseKeeper) renewIfDue(ctx context.Context) error {
	if k == nil || k.clock.Since(k.last) < k.every {
		return nil
	}
	if err := k.held.Renew(ctx); err != nil {
		if errors.Is(err, lease.ErrNotHeld) {
			return fmt.Errorf("%w: %w", ErrLeaseLost, err)
		}
		return err
	}
	k.last = k.clock.Now()
	return nil
}
