package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/forestrie/roster-attestation/internal/wire"
)

// SendGossip posts fromPartyID's srs to a peer's /gossip endpoint. A 409
// response is not an error: it means the peer accepted the message and
// reported an equivocation, whose body is returned as respBody.
func SendGossip(ctx context.Context, peerBase string, fromPartyID uint64, srs wire.SRS) (status int, respBody string, err error) {
	url := strings.TrimRight(peerBase, "/") + "/gossip"
	g := wire.GossipSnapshot{FromPartyID: fromPartyID, SRS: srs}

	body, err := json.Marshal(g)
	if err != nil {
		return 0, "", errors.Wrap(err, "client: encoding gossip snapshot")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, "", errors.Wrap(err, "client: building gossip request")
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := &http.Client{Timeout: 10 * time.Second}
	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, "", errors.Wrap(err, "client: sending gossip")
	}
	defer resp.Body.Close()

	respB, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, "", errors.Wrap(err, "client: reading gossip response")
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusConflict {
		return resp.StatusCode, string(respB), errors.Errorf("client: gossip send failed: %s %s", resp.Status, string(respB))
	}
	return resp.StatusCode, string(respB), nil
}
