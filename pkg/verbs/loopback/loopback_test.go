package loopback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendRecvRoundTrip(t *testing.T) {
	a, b := NewConnectedPair(4)
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	go func() {
		cp := a.PostSend(ctx, []byte("hello"))
		assert.NoError(t, cp.Err)
	}()

	buf := make([]byte, 16)
	cp := b.PostRecv(ctx, buf)
	require.NoError(t, cp.Err)
	assert.Equal(t, "hello", string(buf[:cp.NBytes]))
}

func TestCloseUnblocksPostRecv(t *testing.T) {
	a, b := NewConnectedPair(1)
	defer a.Close()

	done := make(chan struct{})
	go func() {
		cp := b.PostRecv(context.Background(), make([]byte, 8))
		assert.ErrorIs(t, cp.Err, ErrClosed)
		close(done)
	}()

	b.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("PostRecv did not unblock after Close")
	}
}

func TestPostSendRespectsContext(t *testing.T) {
	a, _ := NewConnectedPair(0)
	defer a.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	cp := a.PostSend(ctx, []byte("x"))
	assert.Error(t, cp.Err)
}

func TestRegisterMemoryAfterClose(t *testing.T) {
	pd := NewProtectionDomain()
	require.NoError(t, pd.Close())
	_, err := pd.RegisterMemory(make([]byte, 8))
	assert.Error(t, err)
}
