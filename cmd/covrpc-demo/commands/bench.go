package commands

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/covrpc/covrpc/internal/output"
	"github.com/covrpc/covrpc/internal/telemetry"
	"github.com/covrpc/covrpc/pkg/bench"
	"github.com/covrpc/covrpc/pkg/client"
	"github.com/covrpc/covrpc/pkg/mux"
	"github.com/covrpc/covrpc/pkg/server"
	"github.com/covrpc/covrpc/pkg/verbs/loopback"
)

var (
	benchNumCalls    int
	benchThreads     int
	benchReqBytes    int
	benchRespBytes   int
	benchProfile     bool
	benchProfileAddr string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Run the call-latency benchmark over a loopback transport",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchNumCalls, "calls", 200_000, "total number of calls to issue")
	benchCmd.Flags().IntVar(&benchThreads, "threads", 4, "number of concurrent calling goroutines")
	benchCmd.Flags().IntVar(&benchReqBytes, "req-bytes", 256, "request payload size")
	benchCmd.Flags().IntVar(&benchRespBytes, "resp-bytes", 256, "max response payload and response buffer size (the echo handler replies with at most req-bytes)")
	benchCmd.Flags().BoolVar(&benchProfile, "profile", false, "upload CPU/allocation profiles to a Pyroscope server while the benchmark runs")
	benchCmd.Flags().StringVar(&benchProfileAddr, "profile-addr", "http://localhost:4040", "Pyroscope server address, used when --profile is set")
}

type benchResultTable struct {
	result bench.Result
}

func (t benchResultTable) Headers() []string {
	return []string{"calls", "avg_us", "p50_us", "p99_us"}
}

func (t benchResultTable) Rows() [][]string {
	return [][]string{{
		strconv.Itoa(t.result.Calls),
		strconv.FormatFloat(t.result.AvgUs, 'f', 1, 64),
		strconv.FormatFloat(t.result.P50us, 'f', 1, 64),
		strconv.FormatFloat(t.result.P99us, 'f', 1, 64),
	}}
}

func runBench(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	shutdownProfiling, err := telemetry.StartProfiling(telemetry.ProfilingConfig{
		Enabled:        benchProfile,
		ServiceName:    "covrpc-demo-bench",
		ServiceVersion: Version,
		Endpoint:       benchProfileAddr,
	})
	if err != nil {
		return fmt.Errorf("start profiling: %w", err)
	}
	defer func() { _ = shutdownProfiling() }()

	m := mux.New()
	if err := m.Register(0, func(req, resp []byte) int {
		return copy(resp, req)
	}); err != nil {
		return fmt.Errorf("register handler: %w", err)
	}
	m.Freeze()

	cellSize := benchReqBytes
	if benchRespBytes > cellSize {
		cellSize = benchRespBytes
	}
	clientQP, serverQP := loopback.NewConnectedPair(cellSize + 64)

	srvCfg := server.DefaultConfig()
	srvCfg.MaxInflight = cfg.MaxInflight
	srvCfg.MaxReqPayload = benchReqBytes
	srvCfg.MaxRespPayload = benchRespBytes
	srvCfg.ThreadCount = cfg.ThreadCount
	srv, err := server.New(serverQP, loopback.NewProtectionDomain(), m, srvCfg, "bench-server")
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() { _ = srv.Run(ctx) }()

	cliCfg := client.DefaultConfig()
	cliCfg.MaxInflight = cfg.MaxInflight
	cliCfg.MaxReqPayload = benchReqBytes
	cliCfg.MaxRespPayload = benchRespBytes
	cli, err := client.New(clientQP, loopback.NewProtectionDomain(), cliCfg, "bench-client")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	opts := bench.DefaultOptions()
	opts.NumCalls = benchNumCalls
	opts.Threads = benchThreads
	opts.ReqPayload = make([]byte, benchReqBytes)
	opts.RespBufSize = benchRespBytes

	result, err := bench.Run(ctx, cli, opts)
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return output.PrintTable(os.Stdout, benchResultTable{result: result})
}
