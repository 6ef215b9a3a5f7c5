// Command watchtower runs the single-writer roster-attestation log server
// (spec.md §4.4): it accepts party registrations over HTTP, and serves
// signed snapshots and log entries back to any party that asks.
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/spf13/cobra"

	"github.com/forestrie/roster-attestation/internal/api"
	"github.com/forestrie/roster-attestation/internal/config"
	"github.com/forestrie/roster-attestation/internal/keyfile"
	"github.com/forestrie/roster-attestation/internal/logging"
	"github.com/forestrie/roster-attestation/internal/watchtower"
)

func main() {
	var (
		bind    string
		epoch   uint64
		keyFile string
		debug   bool
	)

	root := &cobra.Command{
		Use:   "watchtower",
		Short: "Run the roster-attestation watchtower log server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := logging.New(debug)
			if err != nil {
				return fmt.Errorf("building logger: %w", err)
			}
			defer logger.Sync() //nolint:errcheck

			keys, err := keyfile.LoadOrCreate(keyFile)
			if err != nil {
				return fmt.Errorf("loading watchtower keys: %w", err)
			}

			l := watchtower.New(watchtower.Config{Epoch: epoch}, keys.Private, keys.Public, logger)
			router := api.NewWatchtowerRouter(l, logger)

			logger.Infow("watchtower starting", "bind", bind, "epoch", epoch)
			return http.ListenAndServe(bind, api.WithRequestID(router, logger))
		},
	}

	root.Flags().StringVar(&bind, "bind", config.DefaultWatchtowerBind, "HTTP listen address")
	root.Flags().Uint64Var(&epoch, "epoch", 1, "session epoch this watchtower serves")
	root.Flags().StringVar(&keyFile, "key-file", config.DefaultKeyFile, "path to the watchtower's persisted Ed25519 seed")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug logging")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
