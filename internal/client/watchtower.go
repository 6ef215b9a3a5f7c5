// Package client implements the party-side HTTP clients: one for the
// watchtower's register/snapshot/entries/pubkey surface, one for pushing a
// gossip snapshot to a peer. Grounded on original_source's
// crates/party/src/client.rs and gossip.rs's send_gossip, translated to
// Go's net/http (the example pack carries no third-party HTTP client
// library; see DESIGN.md).
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/forestrie/roster-attestation/internal/wire"
)

// Watchtower is an HTTP client bound to one watchtower base URL.
type Watchtower struct {
	base string
	http *http.Client
}

// NewWatchtower constructs a client for the watchtower listening at base.
func NewWatchtower(base string) *Watchtower {
	return &Watchtower{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type registerRequest struct {
	PRR wire.PRR `json:"prr"`
}

type srsResponse struct {
	SRS wire.SRS `json:"srs"`
}

type entriesResponse struct {
	Entries []wire.PRR `json:"entries"`
}

// Register submits prr and returns the watchtower's fresh snapshot.
func (c *Watchtower) Register(ctx context.Context, prr wire.PRR) (wire.SRS, error) {
	body, err := json.Marshal(registerRequest{PRR: prr})
	if err != nil {
		return wire.SRS{}, errors.Wrap(err, "client: encoding register request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/register", bytes.NewReader(body))
	if err != nil {
		return wire.SRS{}, errors.Wrap(err, "client: building register request")
	}
	req.Header.Set("Content-Type", "application/json")

	var resp srsResponse
	if err := c.doJSON(req, &resp); err != nil {
		return wire.SRS{}, errors.Wrap(err, "client: register")
	}
	return resp.SRS, nil
}

// Snapshot fetches the watchtower's current signed snapshot.
func (c *Watchtower) Snapshot(ctx context.Context) (wire.SRS, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/snapshot", nil)
	if err != nil {
		return wire.SRS{}, errors.Wrap(err, "client: building snapshot request")
	}

	var resp srsResponse
	if err := c.doJSON(req, &resp); err != nil {
		return wire.SRS{}, errors.Wrap(err, "client: snapshot")
	}
	return resp.SRS, nil
}

// Entries fetches log[from:to] (1-indexed, inclusive).
func (c *Watchtower) Entries(ctx context.Context, from, to uint64) ([]wire.PRR, error) {
	url := fmt.Sprintf("%s/entries?from=%s&to=%s", c.base, strconv.FormatUint(from, 10), strconv.FormatUint(to, 10))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "client: building entries request")
	}

	var resp entriesResponse
	if err := c.doJSON(req, &resp); err != nil {
		return nil, errors.Wrap(err, "client: entries")
	}
	return resp.Entries, nil
}

// WatchtowerPubKey fetches and decodes the watchtower's base64 public key.
func (c *Watchtower) WatchtowerPubKey(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/watchtower_pubkey", nil)
	if err != nil {
		return nil, errors.Wrap(err, "client: building watchtower_pubkey request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "client: watchtower_pubkey")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "client: reading watchtower_pubkey response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("client: watchtower_pubkey failed: %s %s", resp.Status, string(body))
	}

	pk, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return nil, errors.Wrap(err, "client: decoding watchtower_pubkey")
	}
	return pk, nil
}

func (c *Watchtower) doJSON(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrap(err, "reading response body")
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Errorf("request failed: %s %s", resp.Status, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}
