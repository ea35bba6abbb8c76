// Package bootstrap implements the out-of-band TCP handshake: a queue
// pair's connection attributes are exchanged exactly once per connection,
// after which the TCP socket is not used for data.
package bootstrap

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"

	"github.com/covrpc/covrpc/internal/logger"
)

// maxUserDataLen bounds the opaque user metadata exchanged alongside the
// queue-pair attributes, so a peer cannot make the receiver allocate an
// unbounded buffer.
const maxUserDataLen = 4096

// Attrs carries the fields the verb layer needs to transition a queue pair
// RTR then RTS: local identifier, queue-pair number, send-queue starting
// packet sequence number, and the RDMA global identifier.
type Attrs struct {
	LID      uint16
	QPNum    uint32
	SQPSN    uint32
	GID      [16]byte
	UserData []byte
}

func (a Attrs) encode() []byte {
	buf := make([]byte, 2+4+4+16+4+len(a.UserData))
	off := 0
	binary.LittleEndian.PutUint16(buf[off:], a.LID)
	off += 2
	binary.LittleEndian.PutUint32(buf[off:], a.QPNum)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], a.SQPSN)
	off += 4
	copy(buf[off:], a.GID[:])
	off += 16
	binary.LittleEndian.PutUint32(buf[off:], uint32(len(a.UserData)))
	off += 4
	copy(buf[off:], a.UserData)
	return buf
}

func decodeAttrs(r io.Reader) (Attrs, error) {
	head := make([]byte, 2+4+4+16+4)
	if _, err := io.ReadFull(r, head); err != nil {
		return Attrs{}, fmt.Errorf("bootstrap: read attrs header: %w", err)
	}
	var a Attrs
	off := 0
	a.LID = binary.LittleEndian.Uint16(head[off:])
	off += 2
	a.QPNum = binary.LittleEndian.Uint32(head[off:])
	off += 4
	a.SQPSN = binary.LittleEndian.Uint32(head[off:])
	off += 4
	copy(a.GID[:], head[off:off+16])
	off += 16
	userLen := binary.LittleEndian.Uint32(head[off:])
	if userLen > maxUserDataLen {
		return Attrs{}, fmt.Errorf("bootstrap: user_data length %d exceeds max %d", userLen, maxUserDataLen)
	}
	if userLen > 0 {
		a.UserData = make([]byte, userLen)
		if _, err := io.ReadFull(r, a.UserData); err != nil {
			return Attrs{}, fmt.Errorf("bootstrap: read user_data: %w", err)
		}
	}
	return a, nil
}

// Handshake exchanges local for remote Attrs over conn: it writes local
// first, then reads remote, so both sides of a symmetric dial/accept pair
// make progress without a separate turn-taking protocol.
func Handshake(conn net.Conn, local Attrs) (remote Attrs, connID string, err error) {
	connID = uuid.NewString()

	if _, err = conn.Write(local.encode()); err != nil {
		return Attrs{}, "", fmt.Errorf("bootstrap: write local attrs: %w", err)
	}
	remote, err = decodeAttrs(conn)
	if err != nil {
		return Attrs{}, "", err
	}

	logger.Info("bootstrap handshake complete",
		logger.ConnectionID(connID),
		logger.RemoteAddr(conn.RemoteAddr().String()),
		logger.LocalAddr(conn.LocalAddr().String()))

	return remote, connID, nil
}

// Accept is a convenience loop: it accepts one TCP connection at a time on
// ln and hands each accepted conn to handle, so a caller can build a
// multi-connection server by looping Accept -> bootstrap.Handshake ->
// server.New -> server.Run per connection without reimplementing the
// accept loop itself.
func Accept(ln net.Listener, handle func(conn net.Conn)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("bootstrap: accept: %w", err)
		}
		go handle(conn)
	}
}
