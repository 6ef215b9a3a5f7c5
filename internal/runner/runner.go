// Package runner implements the party's cooperative sync + liveness loop
// (spec.md §4.7, C8): pull the watchtower's snapshot, verify it end-to-end,
// materialize the roster, then probe any not-yet-connected peer. Grounded
// on original_source's crates/party/src/main.rs Run command loop.
package runner

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/forestrie/roster-attestation/internal/client"
	"github.com/forestrie/roster-attestation/internal/liveness"
	"github.com/forestrie/roster-attestation/internal/party"
	"github.com/forestrie/roster-attestation/internal/wire"
)

// Runner drives one party's periodic sync-and-connect loop for the
// lifetime of a process.
type Runner struct {
	wt             *client.Watchtower
	pubW           ed25519.PublicKey
	state          *party.State
	interval       time.Duration
	connectTimeout time.Duration
	log            *zap.SugaredLogger

	connected map[uint64]bool
}

// New constructs a Runner. state is mutated in place by each tick; callers
// own persisting it (e.g. via internal/statefile) between ticks.
func New(wt *client.Watchtower, pubW ed25519.PublicKey, state *party.State, interval, connectTimeout time.Duration, logger *zap.SugaredLogger) *Runner {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Runner{
		wt:             wt,
		pubW:           pubW,
		state:          state,
		interval:       interval,
		connectTimeout: connectTimeout,
		log:            logger,
		connected:      make(map[uint64]bool),
	}
}

// SyncOnce pulls the current snapshot and full log, verifies it end-to-end,
// and on success applies it to r.state. It is wrapped in an exponential
// backoff so a transient watchtower outage doesn't fail the whole tick.
func (r *Runner) SyncOnce(ctx context.Context) error {
	op := func() error {
		srs, err := r.wt.Snapshot(ctx)
		if err != nil {
			return err
		}

		var entries []wire.PRR
		if srs.Msg.LogLen > 0 {
			entries, err = r.wt.Entries(ctx, 1, srs.Msg.LogLen)
			if err != nil {
				return err
			}
		}

		roster, err := party.Verify(r.pubW, srs, entries)
		if err != nil {
			return backoff.Permanent(err)
		}

		r.state.ApplyVerifiedSync(srs, roster)
		return nil
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	return backoff.Retry(op, bo)
}

// ProbePeers attempts a liveness probe against every roster peer not yet
// marked connected (excluding the runner's own party_id), fanning out
// concurrently. A failed probe is not fatal and is retried on the next
// call; per-peer failures are aggregated into one debug-level log line
// rather than raised, since "probe failures are silent" (spec.md §4.7).
func (r *Runner) ProbePeers(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)

	type target struct {
		partyID  uint64
		endpoint wire.Endpoint
	}
	var targets []target
	for pid, entry := range r.state.Roster {
		if pid == r.state.PartyID || r.connected[pid] {
			continue
		}
		targets = append(targets, target{partyID: pid, endpoint: entry.Endpoint})
	}

	var mu sync.Mutex
	var probeErrs *multierror.Error

	results := make(chan uint64, len(targets))
	for _, t := range targets {
		t := t
		g.Go(func() error {
			if err := liveness.Probe(gctx, string(t.endpoint), r.state.PartyID, r.connectTimeout); err != nil {
				mu.Lock()
				probeErrs = multierror.Append(probeErrs, fmt.Errorf("party_id=%d: %w", t.partyID, err))
				mu.Unlock()
				return nil
			}
			results <- t.partyID
			return nil
		})
	}
	_ = g.Wait()
	close(results)

	if probeErrs.ErrorOrNil() != nil {
		r.log.Debugw("unreachable peers this tick", "errors", probeErrs.Error())
	}

	for pid := range results {
		r.connected[pid] = true
		r.log.Infow("connected to peer", "party_id", pid)
	}
}

// Tick runs one sync+probe cycle, logging sync errors instead of returning
// them (spec.md §4.7: "sync errors are logged and the loop continues").
func (r *Runner) Tick(ctx context.Context) {
	if err := r.SyncOnce(ctx); err != nil {
		r.log.Warnw("sync error", "error", err)
		return
	}
	r.ProbePeers(ctx)
	r.log.Infow("ready-check", "roster_size", len(r.state.Roster), "connected_peers", len(r.connected))
}

// Run blocks, ticking every r.interval until ctx is canceled. onTick, if
// non-nil, runs after every tick (used to persist state to disk).
func (r *Runner) Run(ctx context.Context, onTick func()) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Tick(ctx)
		if onTick != nil {
			onTick()
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
