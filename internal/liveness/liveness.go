// Package liveness implements the party-to-party TCP liveness handshake:
// no algorithmic content, just a way for one party to confirm it can reach
// another (spec.md §1, "p2p liveness check"). A client dials a peer, sends
// its own party_id as 8 bytes little-endian, and expects a 2-byte "OK" ack.
package liveness

import (
	"context"
	"encoding/binary"
	"net"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

var okAck = []byte("OK")

// Serve listens on bindAddr until ctx is canceled, logging each incoming
// handshake. It never returns an error on a per-connection failure — those
// are logged and the listener keeps accepting.
func Serve(ctx context.Context, bindAddr string, logger *zap.SugaredLogger) error {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	lc := net.ListenConfig{}
	ln, err := lc.Listen(ctx, "tcp", bindAddr)
	if err != nil {
		return errors.Wrapf(err, "liveness: listening on %s", bindAddr)
	}
	logger.Infow("liveness listener bound", "addr", bindAddr)

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warnw("liveness accept error", "error", err)
			continue
		}
		go handleIncoming(conn, logger)
	}
}

func handleIncoming(conn net.Conn, logger *zap.SugaredLogger) {
	defer conn.Close()

	buf := make([]byte, 8)
	if _, err := readFull(conn, buf); err != nil {
		logger.Warnw("liveness incoming handshake error", "peer", conn.RemoteAddr(), "error", err)
		return
	}
	remotePartyID := binary.LittleEndian.Uint64(buf)
	logger.Infow("liveness incoming", "from_party_id", remotePartyID, "peer", conn.RemoteAddr())

	if _, err := conn.Write(okAck); err != nil {
		logger.Warnw("liveness ack write error", "peer", conn.RemoteAddr(), "error", err)
	}
}

// Probe dials addr and performs the client side of the handshake, sending
// myPartyID and expecting an "OK" ack within timeout.
func Probe(ctx context.Context, addr string, myPartyID uint64, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "liveness: connecting to %s", addr)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	idBuf := make([]byte, 8)
	binary.LittleEndian.PutUint64(idBuf, myPartyID)
	if _, err := conn.Write(idBuf); err != nil {
		return errors.Wrapf(err, "liveness: sending handshake to %s", addr)
	}

	resp := make([]byte, 2)
	if _, err := readFull(conn, resp); err != nil {
		return errors.Wrapf(err, "liveness: reading response from %s", addr)
	}
	if string(resp) != "OK" {
		return ErrBadHandshake
	}
	return nil
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
