package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/villas-project/villasnode-go/internal/config"
	"github.com/villas-project/villasnode-go/pkg/hook"
	"github.com/villas-project/villasnode-go/pkg/stats"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Load the configuration and run the routing engine until stopped",
		RunE:  runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	logger := newLogger(viper.GetString("log-level"))

	cfg, err := config.Load(viper.GetString("config"))
	if err != nil {
		return err
	}
	if err := config.Validate(cfg, func(t string) bool {
		_, ok := hook.Lookup(t)
		return ok
	}); err != nil {
		return err
	}

	nodes, err := buildNodes(cfg)
	if err != nil {
		return fmt.Errorf("building nodes: %w", err)
	}

	paths, err := buildPaths(cfg, nodes, logger)
	if err != nil {
		return fmt.Errorf("building paths: %w", err)
	}

	for _, p := range paths {
		if err := p.Prepare(); err != nil {
			return fmt.Errorf("preparing %s: %w", p.Name, err)
		}
	}
	for _, p := range paths {
		if err := p.Start(); err != nil {
			return fmt.Errorf("starting %s: %w", p.Name, err)
		}
	}
	logger.Info("routing engine started", "paths", len(paths))

	var statsSources []stats.Source
	for _, p := range paths {
		statsSources = append(statsSources, stats.Source{Name: p.Name, Stats: &p.Stats})
	}
	statsCtx, statsCancel := context.WithCancel(context.Background())
	defer statsCancel()
	if cfg.Global.Stats > 0 {
		emitter := stats.NewEmitter(time.Duration(cfg.Global.Stats)*time.Second, stats.SlogSink(logger), statsSources...)
		go emitter.Run(statsCtx)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	logger.Info("shutting down")

	for _, p := range paths {
		if err := p.Stop(); err != nil {
			logger.Error("path stop error", "path", p.Name, "error", err)
		}
	}
	for _, n := range nodes.All() {
		if err := n.Type().Destroy(); err != nil {
			logger.Error("node destroy error", "node", n.Name(), "error", err)
		}
	}
	return nil
}
