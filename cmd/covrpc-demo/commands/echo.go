package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/covrpc/covrpc/internal/logger"
	"github.com/covrpc/covrpc/pkg/client"
	"github.com/covrpc/covrpc/pkg/mux"
	"github.com/covrpc/covrpc/pkg/server"
	"github.com/covrpc/covrpc/pkg/verbs/loopback"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Run the single-handler echo scenario over a loopback transport",
	RunE:  runEcho,
}

func runEcho(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	m := mux.New()
	if err := m.Register(0, func(req, resp []byte) int {
		return copy(resp, req)
	}); err != nil {
		return fmt.Errorf("register echo handler: %w", err)
	}
	m.Freeze()

	clientQP, serverQP := loopback.NewConnectedPair(cfg.MaxReqPayload + cfg.MaxRespPayload + 64)

	srvCfg := server.DefaultConfig()
	srvCfg.MaxInflight = cfg.MaxInflight
	srvCfg.MaxReqPayload = cfg.MaxReqPayload
	srvCfg.MaxRespPayload = cfg.MaxRespPayload
	srvCfg.ThreadCount = cfg.ThreadCount
	srv, err := server.New(serverQP, loopback.NewProtectionDomain(), m, srvCfg, "echo-server")
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Warn("echo server stopped", logger.Err(err))
		}
	}()

	cliCfg := client.DefaultConfig()
	cliCfg.MaxInflight = cfg.MaxInflight
	cliCfg.MaxReqPayload = cfg.MaxReqPayload
	cliCfg.MaxRespPayload = cfg.MaxRespPayload
	cli, err := client.New(clientQP, loopback.NewProtectionDomain(), cliCfg, "echo-client")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	req := []byte("hello from covrpc-demo")
	resp := make([]byte, cfg.MaxRespPayload)
	n, err := cli.Call(ctx, 0, req, resp)
	if err != nil {
		return fmt.Errorf("call: %w", err)
	}

	fmt.Printf("echo reply: %q\n", resp[:n])
	return nil
}
