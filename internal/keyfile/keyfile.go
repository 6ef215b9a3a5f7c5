// Package keyfile persists an Ed25519 seed to a JSON file and loads it
// back, or generates a fresh keypair on first use. It is out-of-scope
// plumbing per spec.md §1 ("key-file persistence on disk") — no
// algorithmic content, just glue around internal/signing.
package keyfile

import (
	"encoding/base64"
	"encoding/json"
	"os"

	"github.com/pkg/errors"

	"github.com/forestrie/roster-attestation/internal/signing"
)

type fileFormat struct {
	SeedB64 string `json:"sk_seed_b64"`
}

// Keys holds a loaded or freshly generated keypair.
type Keys struct {
	Public  []byte
	Private []byte
}

// LoadOrCreate reads path as a JSON seed file if it exists, or generates a
// fresh keypair and writes it to path.
func LoadOrCreate(path string) (Keys, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		var ff fileFormat
		if err := json.Unmarshal(data, &ff); err != nil {
			return Keys{}, errors.Wrapf(err, "keyfile: parsing %s", path)
		}
		seed, err := base64.StdEncoding.DecodeString(ff.SeedB64)
		if err != nil {
			return Keys{}, errors.Wrapf(err, "keyfile: decoding seed in %s", path)
		}
		pub, priv, err := signing.FromSeed(seed)
		if err != nil {
			return Keys{}, errors.Wrapf(err, "keyfile: %s", path)
		}
		return Keys{Public: pub, Private: priv}, nil
	}
	if !os.IsNotExist(err) {
		return Keys{}, errors.Wrapf(err, "keyfile: reading %s", path)
	}

	pub, priv, err := signing.GenerateKey()
	if err != nil {
		return Keys{}, errors.Wrap(err, "keyfile: generating key")
	}
	ff := fileFormat{SeedB64: base64.StdEncoding.EncodeToString(signing.Seed(priv))}
	out, err := json.MarshalIndent(ff, "", "  ")
	if err != nil {
		return Keys{}, errors.Wrap(err, "keyfile: marshaling new key")
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return Keys{}, errors.Wrapf(err, "keyfile: writing %s", path)
	}
	return Keys{Public: pub, Private: priv}, nil
}
