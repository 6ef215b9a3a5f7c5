// Package config holds the small set of defaults shared by the watchtower
// and party CLIs, kept separate from cmd/ so both binaries bind the same
// flag defaults via cobra/pflag.
package config

import "time"

const (
	// DefaultWatchtowerBind is the watchtower HTTP listen address.
	DefaultWatchtowerBind = ":8080"

	// DefaultPartyGossipBind is a party's gossip HTTP listen address.
	DefaultPartyGossipBind = ":8081"

	// DefaultLivenessBind is a party's liveness TCP listen address.
	DefaultLivenessBind = ":8082"

	// DefaultKeyFile is the default path for a process's persisted Ed25519
	// seed.
	DefaultKeyFile = "keyfile.json"

	// DefaultStateFile is the default path for a party's persisted local
	// state.
	DefaultStateFile = "state.json"

	// DefaultSyncInterval is how often the party runner loop pulls and
	// re-verifies the watchtower's log in `run` mode.
	DefaultSyncInterval = 5 * time.Second

	// DefaultConnectTimeout bounds a single liveness probe dial.
	DefaultConnectTimeout = 2 * time.Second
)
