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

const fanoutHandlerCount = 20

var fanoutCmd = &cobra.Command{
	Use:   "fanout",
	Short: "Run the multi-handler fanout scenario over a loopback transport",
	RunE:  runFanout,
}

func runFanout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := InitLogger(cfg); err != nil {
		return err
	}

	m := mux.New()
	for fnID := uint32(0); fnID < fanoutHandlerCount; fnID++ {
		fill := byte(0x20) + byte(fnID)
		if err := m.Register(fnID, func(req, resp []byte) int {
			for i := range resp {
				resp[i] = fill
			}
			return len(resp)
		}); err != nil {
			return fmt.Errorf("register handler %d: %w", fnID, err)
		}
	}
	m.Freeze()

	clientQP, serverQP := loopback.NewConnectedPair(cfg.MaxReqPayload + cfg.MaxRespPayload + 64)

	srvCfg := server.DefaultConfig()
	srvCfg.MaxInflight = cfg.MaxInflight
	srvCfg.MaxReqPayload = cfg.MaxReqPayload
	srvCfg.MaxRespPayload = cfg.MaxRespPayload
	srvCfg.ThreadCount = cfg.ThreadCount
	srv, err := server.New(serverQP, loopback.NewProtectionDomain(), m, srvCfg, "fanout-server")
	if err != nil {
		return fmt.Errorf("new server: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() {
		if err := srv.Run(ctx); err != nil {
			logger.Warn("fanout server stopped", logger.Err(err))
		}
	}()

	cliCfg := client.DefaultConfig()
	cliCfg.MaxInflight = cfg.MaxInflight
	cliCfg.MaxReqPayload = cfg.MaxReqPayload
	cliCfg.MaxRespPayload = cfg.MaxRespPayload
	cli, err := client.New(clientQP, loopback.NewProtectionDomain(), cliCfg, "fanout-client")
	if err != nil {
		return fmt.Errorf("new client: %w", err)
	}
	defer func() { _ = cli.Close() }()

	req := make([]byte, 64)
	resp := make([]byte, cfg.MaxRespPayload)
	for fnID := uint32(0); fnID < fanoutHandlerCount; fnID++ {
		n, err := cli.Call(ctx, fnID, req, resp)
		if err != nil {
			return fmt.Errorf("call fn_id=%d: %w", fnID, err)
		}
		fmt.Printf("fn_id=%2d reply byte=0x%02x len=%d\n", fnID, resp[0], n)
	}
	return nil
}
