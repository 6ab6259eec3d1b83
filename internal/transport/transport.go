// Package transport defines the encrypted session the worker pool reads
// requests from and writes replies to, plus a Noise-protocol-backed
// reference implementation. The handshake/authentication layer itself is
// a spec non-goal (§6, "out of scope"); NoiseSession exists so the
// interface has one real collaborator instead of staying purely abstract.
package transport

import (
	"context"
	"encoding/binary"
	"io"
	"net"

	"github.com/flynn/noise"

	"ezdb/internal/ezerr"
)

// Session is the channel a worker reads one decrypted frame from and
// writes one encrypted reply to (spec §4.7, §6.1).
type Session interface {
	Recv(ctx context.Context) ([]byte, error)
	Send(ctx context.Context, frame []byte) error
	Close() error
}

var cipherSuite = noise.NewCipherSuite(noise.DH25519, noise.CipherAESGCM, noise.HashSHA256)

// NoiseSession wraps a net.Conn with a completed Noise XX handshake,
// framing each transport message with a 4-byte big-endian length prefix.
type NoiseSession struct {
	conn       net.Conn
	send, recv *noise.CipherState
}

// NewNoiseSession runs the XX handshake over conn (three messages) and
// returns a Session ready for Recv/Send. staticKey is this side's long-term
// keypair and is handed to the handshake unchanged; no key is generated here.
func NewNoiseSession(conn net.Conn, initiator bool, staticKey noise.DHKey) (*NoiseSession, error) {
	hs, err := noise.NewHandshakeState(noise.Config{
		CipherSuite:   cipherSuite,
		Pattern:       noise.HandshakeXX,
		Initiator:     initiator,
		StaticKeypair: staticKey,
	})
	if err != nil {
		return nil, ezerr.Wrap(ezerr.Crypto, "transport: init handshake", err)
	}

	var send, recv *noise.CipherState
	// XX is three messages: -> e, <- e,ee,s,es, -> s,se.
	writeTurn := initiator
	for send == nil || recv == nil {
		if writeTurn {
			out, cs1, cs2, err := hs.WriteMessage(nil, nil)
			if err != nil {
				return nil, ezerr.Wrap(ezerr.Crypto, "transport: handshake write", err)
			}
			if err := writeFrame(conn, out); err != nil {
				return nil, err
			}
			if cs1 != nil {
				send, recv = cs1, cs2
			}
		} else {
			in, err := readFrame(conn)
			if err != nil {
				return nil, err
			}
			_, cs1, cs2, err := hs.ReadMessage(nil, in)
			if err != nil {
				return nil, ezerr.Wrap(ezerr.Crypto, "transport: handshake read", err)
			}
			if cs1 != nil {
				send, recv = cs2, cs1
			}
		}
		writeTurn = !writeTurn
	}

	return &NoiseSession{conn: conn, send: send, recv: recv}, nil
}

// Recv reads and decrypts one transport frame. ctx is honored only via
// its deadline, which Recv applies as conn's read deadline; cancelling a
// ctx that has no deadline does not interrupt the read.
func (s *NoiseSession) Recv(ctx context.Context) ([]byte, error) {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetReadDeadline(dl)
	}
	ciphertext, err := readFrame(s.conn)
	if err != nil {
		return nil, err
	}
	plaintext, err := s.recv.Decrypt(nil, nil, ciphertext)
	if err != nil {
		return nil, ezerr.Wrap(ezerr.Crypto, "transport: decrypt frame", err)
	}
	return plaintext, nil
}

// Send encrypts and writes one transport frame.
func (s *NoiseSession) Send(ctx context.Context, frame []byte) error {
	if dl, ok := ctx.Deadline(); ok {
		_ = s.conn.SetWriteDeadline(dl)
	}
	ciphertext := s.send.Encrypt(nil, nil, frame)
	return writeFrame(s.conn, ciphertext)
}

// Close closes the underlying connection.
func (s *NoiseSession) Close() error {
	return s.conn.Close()
}

func writeFrame(w io.Writer, payload []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return ezerr.Wrap(ezerr.Io, "transport: write frame length", err)
	}
	if _, err := w.Write(payload); err != nil {
		return ezerr.Wrap(ezerr.Io, "transport: write frame body", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, ezerr.Wrap(ezerr.Io, "transport: read frame length", err)
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, ezerr.Wrap(ezerr.Io, "transport: read frame body", err)
	}
	return buf, nil
}
