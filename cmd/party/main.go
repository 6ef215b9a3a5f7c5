// Command party implements the party side of the roster-attestation
// protocol (spec.md §4, C1-C3, C8): registering with a watchtower,
// syncing and verifying its roster, running the cooperative sync+liveness
// loop, and forwarding/receiving gossip for equivocation detection.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/forestrie/roster-attestation/internal/api"
	"github.com/forestrie/roster-attestation/internal/canon"
	"github.com/forestrie/roster-attestation/internal/client"
	"github.com/forestrie/roster-attestation/internal/config"
	"github.com/forestrie/roster-attestation/internal/gossip"
	"github.com/forestrie/roster-attestation/internal/keyfile"
	"github.com/forestrie/roster-attestation/internal/liveness"
	"github.com/forestrie/roster-attestation/internal/logging"
	"github.com/forestrie/roster-attestation/internal/merkle"
	"github.com/forestrie/roster-attestation/internal/party"
	"github.com/forestrie/roster-attestation/internal/runner"
	"github.com/forestrie/roster-attestation/internal/signing"
	"github.com/forestrie/roster-attestation/internal/statefile"
	"github.com/forestrie/roster-attestation/internal/wire"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{Use: "party", Short: "Roster-attestation party client"}
	root.AddCommand(
		newRegisterCmd(),
		newSyncCmd(),
		newRunCmd(),
		newGossipServeCmd(),
		newGossipSendCmd(),
		newShowRosterCmd(),
	)
	return root
}

// sharedFlags centralizes the flag definitions common to most subcommands,
// mirroring original_source's repeated clap arg groups per Command variant.
type sharedFlags struct {
	watchtower          string
	epoch               uint64
	partyID             uint64
	stateFile           string
	keyFile             string
	watchtowerPubkeyB64 string
	debug               bool
}

func (f *sharedFlags) bindCommon(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.watchtower, "watchtower", "", "watchtower base URL")
	cmd.Flags().Uint64Var(&f.epoch, "epoch", 1, "session epoch")
	cmd.Flags().Uint64Var(&f.partyID, "party-id", 0, "this party's 64-bit id")
	cmd.Flags().StringVar(&f.stateFile, "state-file", config.DefaultStateFile, "path to persisted party state")
	cmd.Flags().StringVar(&f.watchtowerPubkeyB64, "watchtower-pubkey-b64", "", "pin the watchtower's public key (base64); if omitted, fetched via TOFU")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "enable debug logging")
	_ = cmd.MarkFlagRequired("watchtower")
	_ = cmd.MarkFlagRequired("party-id")
}

func loadOrFetchWatchtowerPubKey(ctx context.Context, wt *client.Watchtower, b64 string) ([]byte, error) {
	if b64 != "" {
		pk, err := base64.StdEncoding.DecodeString(b64)
		if err != nil {
			return nil, errors.Wrap(err, "decoding --watchtower-pubkey-b64")
		}
		return pk, nil
	}
	return wt.WatchtowerPubKey(ctx)
}

func registerSelf(ctx context.Context, wt *client.Watchtower, keys keyfile.Keys, st *party.State, endpoint string) error {
	seq := st.AdvanceSeq()

	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return errors.Wrap(err, "generating nonce")
	}

	msg := wire.RegistrationMessage{
		Epoch:    st.Epoch,
		PartyID:  st.PartyID,
		Endpoint: wire.Endpoint(endpoint),
		PKParty:  keys.Public,
		Seq:      seq,
		Nonce:    nonce,
	}
	sig, err := signing.SignStruct(keys.Private, msg)
	if err != nil {
		return errors.Wrap(err, "signing registration")
	}

	srs, err := wt.Register(ctx, wire.PRR{Msg: msg, SigParty: sig})
	if err != nil {
		return errors.Wrap(err, "submitting registration")
	}
	srsCopy := srs
	st.CurrentSRS = &srsCopy
	return nil
}

func fullSyncAndVerify(ctx context.Context, wt *client.Watchtower, pubW []byte, st *party.State) error {
	srs, err := wt.Snapshot(ctx)
	if err != nil {
		return errors.Wrap(err, "fetching snapshot")
	}

	var entries []wire.PRR
	if srs.Msg.LogLen > 0 {
		entries, err = wt.Entries(ctx, 1, srs.Msg.LogLen)
		if err != nil {
			return errors.Wrap(err, "fetching entries")
		}
	}

	roster, err := party.Verify(pubW, srs, entries)
	if err != nil {
		return errors.Wrap(err, "verifying snapshot")
	}

	st.ApplyVerifiedSync(srs, roster)
	return nil
}

func newRegisterCmd() *cobra.Command {
	f := &sharedFlags{}
	var endpoint string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register this party with the watchtower",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(f.debug)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			wt := client.NewWatchtower(f.watchtower)
			pubW, err := loadOrFetchWatchtowerPubKey(ctx, wt, f.watchtowerPubkeyB64)
			if err != nil {
				return err
			}

			keys, err := keyfile.LoadOrCreate(f.keyFile)
			if err != nil {
				return err
			}

			st, err := statefile.Load(f.stateFile, f.epoch, f.partyID)
			if err != nil {
				return err
			}

			if err := registerSelf(ctx, wt, keys, st, endpoint); err != nil {
				return err
			}
			if err := fullSyncAndVerify(ctx, wt, pubW, st); err != nil {
				return err
			}
			if err := statefile.Save(f.stateFile, st); err != nil {
				return err
			}

			logger.Infow("registered and synced", "roster_size", len(st.Roster))
			return nil
		},
	}
	f.bindCommon(cmd)
	cmd.Flags().StringVar(&f.keyFile, "key-file", config.DefaultKeyFile, "path to this party's persisted Ed25519 seed")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "this party's externally reachable endpoint, e.g. host:port")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newSyncCmd() *cobra.Command {
	f := &sharedFlags{}

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Fetch and verify the current roster from the watchtower",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(f.debug)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			wt := client.NewWatchtower(f.watchtower)
			pubW, err := loadOrFetchWatchtowerPubKey(ctx, wt, f.watchtowerPubkeyB64)
			if err != nil {
				return err
			}

			st, err := statefile.Load(f.stateFile, f.epoch, f.partyID)
			if err != nil {
				return err
			}
			if err := fullSyncAndVerify(ctx, wt, pubW, st); err != nil {
				return err
			}
			if err := statefile.Save(f.stateFile, st); err != nil {
				return err
			}

			logger.Infow("synced", "roster_size", len(st.Roster))
			return nil
		},
	}
	f.bindCommon(cmd)
	return cmd
}

func newRunCmd() *cobra.Command {
	f := &sharedFlags{}
	var (
		endpoint         string
		intervalSecs     uint64
		connectTimeoutMs uint64
		livenessBind     string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the liveness listener, register, and loop sync+connect",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(f.debug)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			wt := client.NewWatchtower(f.watchtower)
			pubW, err := loadOrFetchWatchtowerPubKey(ctx, wt, f.watchtowerPubkeyB64)
			if err != nil {
				return err
			}

			keys, err := keyfile.LoadOrCreate(f.keyFile)
			if err != nil {
				return err
			}

			st, err := statefile.Load(f.stateFile, f.epoch, f.partyID)
			if err != nil {
				return err
			}

			go func() {
				if err := liveness.Serve(ctx, livenessBind, logger); err != nil {
					logger.Errorw("liveness server error", "error", err)
				}
			}()

			if err := registerSelf(ctx, wt, keys, st, endpoint); err != nil {
				return err
			}
			if err := fullSyncAndVerify(ctx, wt, pubW, st); err != nil {
				return err
			}
			if err := statefile.Save(f.stateFile, st); err != nil {
				return err
			}

			r := runner.New(wt, pubW, st, time.Duration(intervalSecs)*time.Second,
				time.Duration(connectTimeoutMs)*time.Millisecond, logger)
			r.Run(ctx, func() {
				if err := statefile.Save(f.stateFile, st); err != nil {
					logger.Warnw("state save error", "error", err)
				}
			})
			return nil
		},
	}
	f.bindCommon(cmd)
	cmd.Flags().StringVar(&f.keyFile, "key-file", config.DefaultKeyFile, "path to this party's persisted Ed25519 seed")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "this party's advertised liveness endpoint, e.g. host:port (the listener binds --liveness-bind)")
	cmd.Flags().Uint64Var(&intervalSecs, "interval-secs", uint64(config.DefaultSyncInterval/time.Second), "sync+connect loop interval, in seconds")
	cmd.Flags().Uint64Var(&connectTimeoutMs, "connect-timeout-ms", uint64(config.DefaultConnectTimeout/time.Millisecond), "per-peer liveness probe timeout, in milliseconds")
	cmd.Flags().StringVar(&livenessBind, "liveness-bind", config.DefaultLivenessBind, "bind address for the liveness listener")
	_ = cmd.MarkFlagRequired("endpoint")
	return cmd
}

func newGossipServeCmd() *cobra.Command {
	f := &sharedFlags{}
	var (
		bind     string
		useIndex bool
	)

	cmd := &cobra.Command{
		Use:   "gossip-serve",
		Short: "Run this party's gossip equivocation-detection endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(f.debug)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck
			ctx := cmd.Context()

			wt := client.NewWatchtower(f.watchtower)
			pubW, err := loadOrFetchWatchtowerPubKey(ctx, wt, f.watchtowerPubkeyB64)
			if err != nil {
				return err
			}

			st, err := statefile.Load(f.stateFile, f.epoch, f.partyID)
			if err != nil {
				return err
			}

			var recv api.Receiver
			if useIndex {
				idx := gossip.NewIndex(pubW, logger)
				if st.CurrentSRS != nil {
					idx.Receive(wire.GossipSnapshot{FromPartyID: f.partyID, SRS: *st.CurrentSRS}) //nolint:errcheck
				}
				recv = idx
			} else {
				d := gossip.NewDetector(pubW, logger)
				if st.CurrentSRS != nil {
					d.Seed(*st.CurrentSRS)
				}
				recv = d
			}

			router := api.NewGossipRouter(recv, logger)
			logger.Infow("gossip server starting", "bind", bind, "gossip_index", useIndex)
			return http.ListenAndServe(bind, api.WithRequestID(router, logger))
		},
	}
	f.bindCommon(cmd)
	cmd.Flags().StringVar(&bind, "bind", config.DefaultPartyGossipBind, "HTTP listen address for the gossip endpoint")
	cmd.Flags().BoolVar(&useIndex, "gossip-index", false, "use the multi-slot equivocation index instead of the single-slot detector")
	return cmd
}

func newGossipSendCmd() *cobra.Command {
	var (
		peer      string
		partyID   uint64
		stateFile string
	)

	cmd := &cobra.Command{
		Use:   "gossip-send",
		Short: "Push this party's current signed snapshot to a peer's gossip endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(false)
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			st, err := statefile.Peek(stateFile)
			if err != nil {
				return err
			}
			if st.CurrentSRS == nil {
				return errors.New("gossip-send: no current_srs in state file; run `register` or `sync` first")
			}

			status, body, err := client.SendGossip(cmd.Context(), peer, partyID, *st.CurrentSRS)
			if err != nil {
				return err
			}
			logger.Infow("gossip sent", "peer", peer, "status", status, "body", body)
			return nil
		},
	}
	cmd.Flags().StringVar(&peer, "peer", "", "peer's gossip base URL, e.g. http://host:port")
	cmd.Flags().Uint64Var(&partyID, "party-id", 0, "this party's id")
	cmd.Flags().StringVar(&stateFile, "state-file", config.DefaultStateFile, "path to persisted party state")
	_ = cmd.MarkFlagRequired("peer")
	_ = cmd.MarkFlagRequired("party-id")
	return cmd
}

func newShowRosterCmd() *cobra.Command {
	var (
		stateFile      string
		watchtowerURL  string
		explain        bool
		explainPartyID uint64
	)

	cmd := &cobra.Command{
		Use:   "show-roster",
		Short: "Print the locally persisted roster",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := statefile.Peek(stateFile)
			if err != nil {
				return err
			}

			fmt.Printf("epoch: %d\n", st.Epoch)
			fmt.Printf("party_id: %d\n", st.PartyID)
			fmt.Printf("next_seq: %d\n", st.NextSeq)
			fmt.Printf("last_log_len: %d\n", st.LastLogLen)
			fmt.Println("roster (party_id -> endpoint, seq):")

			ids := make([]uint64, 0, len(st.Roster))
			for pid := range st.Roster {
				ids = append(ids, pid)
			}
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
			for _, pid := range ids {
				e := st.Roster[pid]
				fmt.Printf("  %d -> %s, seq=%d\n", pid, e.Endpoint, e.Seq)
			}

			if !explain {
				return nil
			}
			return explainInclusion(cmd.Context(), watchtowerURL, explainPartyID, st)
		},
	}
	cmd.Flags().StringVar(&stateFile, "state-file", config.DefaultStateFile, "path to persisted party state")
	cmd.Flags().StringVar(&watchtowerURL, "watchtower", "", "watchtower base URL (required with --explain)")
	cmd.Flags().BoolVar(&explain, "explain", false, "print the Merkle inclusion path for --explain-party-id's latest registration")
	cmd.Flags().Uint64Var(&explainPartyID, "explain-party-id", 0, "party_id whose inclusion path to explain")
	return cmd
}

// explainInclusion re-fetches the full log from the watchtower and prints
// the sibling path merkle.InclusionPath needs to recompute the root for
// partyID's latest registration. It is a debugging aid only: the real
// verifier (party.Verify) never trusts a single-leaf path, it always
// recomputes the whole root from the full fetched log (spec.md §4.5).
func explainInclusion(ctx context.Context, watchtowerURL string, partyID uint64, st *party.State) error {
	if watchtowerURL == "" {
		return errors.New("show-roster --explain requires --watchtower")
	}
	if _, ok := st.Roster[partyID]; !ok {
		return errors.Errorf("show-roster --explain: party_id %d not in roster", partyID)
	}
	if st.LastLogLen == 0 {
		return errors.New("show-roster --explain: local state has no synced log")
	}

	wt := client.NewWatchtower(watchtowerURL)
	entries, err := wt.Entries(ctx, 1, st.LastLogLen)
	if err != nil {
		return errors.Wrap(err, "fetching entries")
	}

	leaves := make([][32]byte, len(entries))
	targetIndex := -1
	for i, prr := range entries {
		h, err := canon.HashStruct(prr)
		if err != nil {
			return errors.Wrap(err, "hashing entry")
		}
		leaves[i] = h
		if prr.Msg.PartyID == partyID {
			targetIndex = i
		}
	}
	if targetIndex < 0 {
		return errors.Errorf("show-roster --explain: no registration found for party_id %d", partyID)
	}

	path, err := merkle.InclusionPath(leaves, targetIndex)
	if err != nil {
		return errors.Wrap(err, "computing inclusion path")
	}

	fmt.Printf("inclusion path for party_id %d (log index %d):\n", partyID, targetIndex)
	for i, sib := range path {
		fmt.Printf("  level %d sibling: %s\n", i, hex.EncodeToString(sib[:]))
	}
	return nil
}
