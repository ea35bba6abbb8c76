package bench

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/covrpc/covrpc/pkg/client"
	"github.com/covrpc/covrpc/pkg/mux"
	"github.com/covrpc/covrpc/pkg/server"
	"github.com/covrpc/covrpc/pkg/verbs/loopback"
)

func newBenchPair(t *testing.T, reqPayload, respPayload int) *client.Client {
	t.Helper()

	m := mux.New()
	require.NoError(t, m.Register(0, func(req, resp []byte) int {
		return copy(resp, make([]byte, respPayload))
	}))
	m.Freeze()

	clientQP, serverQP := loopback.NewConnectedPair(reqPayload + respPayload + 64)

	srvCfg := server.DefaultConfig()
	srvCfg.MaxInflight = 8
	srvCfg.MaxReqPayload = reqPayload
	srvCfg.MaxRespPayload = respPayload
	srv, err := server.New(serverQP, loopback.NewProtectionDomain(), m, srvCfg, "bench-server")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = srv.Run(ctx) }()

	cliCfg := client.DefaultConfig()
	cliCfg.MaxInflight = 8
	cliCfg.MaxReqPayload = reqPayload
	cliCfg.MaxRespPayload = respPayload
	cli, err := client.New(clientQP, loopback.NewProtectionDomain(), cliCfg, "bench-client")
	require.NoError(t, err)
	t.Cleanup(func() { _ = cli.Close() })

	return cli
}

func TestRunReportsLatencyPercentiles(t *testing.T) {
	cli := newBenchPair(t, 64, 64)

	opts := Options{
		FnID:        0,
		ReqPayload:  make([]byte, 64),
		RespBufSize: 64,
		NumCalls:    200,
		Threads:     2,
		WarmupCalls: 10,
	}

	result, err := Run(context.Background(), cli, opts)
	require.NoError(t, err)
	require.Equal(t, 200, result.Calls)
	require.Greater(t, result.P50us, 0.0)
	require.GreaterOrEqual(t, result.P99us, result.P50us)
}

func TestRunSingleThreaded(t *testing.T) {
	cli := newBenchPair(t, 32, 32)

	opts := Options{
		FnID:        0,
		ReqPayload:  make([]byte, 32),
		RespBufSize: 32,
		NumCalls:    50,
		Threads:     1,
		WarmupCalls: 5,
	}

	result, err := Run(context.Background(), cli, opts)
	require.NoError(t, err)
	require.Equal(t, 50, result.Calls)
}

func TestSummarizeEmpty(t *testing.T) {
	result := summarize(nil)
	require.Equal(t, Result{}, result)
}

func TestToMicros(t *testing.T) {
	require.InDelta(t, 1000.0, toMicros(time.Millisecond), 0.001)
}
