package bootstrap

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandshakeExchangesAttrs(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	serverAttrs := Attrs{LID: 1, QPNum: 100, SQPSN: 200, UserData: []byte("server-meta")}
	clientAttrs := Attrs{LID: 2, QPNum: 300, SQPSN: 400, UserData: []byte("client-meta")}

	serverDone := make(chan struct{})
	var serverRemote Attrs
	var serverErr error
	go func() {
		defer close(serverDone)
		conn, err := ln.Accept()
		if err != nil {
			serverErr = err
			return
		}
		defer conn.Close()
		serverRemote, _, serverErr = Handshake(conn, serverAttrs)
	}()

	conn, err := net.DialTimeout("tcp", ln.Addr().String(), time.Second)
	require.NoError(t, err)
	defer conn.Close()

	clientRemote, connID, err := Handshake(conn, clientAttrs)
	require.NoError(t, err)
	assert.NotEmpty(t, connID)
	assert.Equal(t, serverAttrs.QPNum, clientRemote.QPNum)
	assert.Equal(t, serverAttrs.UserData, clientRemote.UserData)

	<-serverDone
	require.NoError(t, serverErr)
	assert.Equal(t, clientAttrs.QPNum, serverRemote.QPNum)
	assert.Equal(t, clientAttrs.UserData, serverRemote.UserData)
}

func TestDecodeAttrsRejectsOversizedUserData(t *testing.T) {
	a := Attrs{UserData: make([]byte, maxUserDataLen+1)}
	buf := a.encode()
	_, err := decodeAttrs(&sliceReader{data: buf})
	assert.Error(t, err)
}

type sliceReader struct {
	data []byte
	pos  int
}

func (r *sliceReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, net.ErrClosed
	}
	n := copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}
