// Package main provides btrun, which loads a behaviour tree from a DSL file
// and ticks it on a fixed interval until stopped.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
	"github.com/cory-johannsen/behave/internal/bt/dsl"
	"github.com/cory-johannsen/behave/internal/bt/runner"
	"github.com/cory-johannsen/behave/internal/config"
	"github.com/cory-johannsen/behave/internal/leaf"
	"github.com/cory-johannsen/behave/internal/observability"
	"github.com/cory-johannsen/behave/internal/scripting"
	"github.com/cory-johannsen/behave/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "", "path to configuration file; empty = defaults and BEHAVE_* environment")
	treePath := flag.String("tree", "", "behaviour tree DSL file; overrides runner.tree_path")
	owner := flag.String("owner", "", "owner name; overrides runner.owner")
	maxTicks := flag.Int("max-ticks", -1, "stop after this many ticks; overrides runner.max_ticks")
	format := flag.Bool("format", false, "print the parsed tree in canonical form and exit")
	flag.Parse()

	v := config.NewViper()
	if *configPath != "" {
		v.SetConfigFile(*configPath)
		if err := v.ReadInConfig(); err != nil {
			log.Fatalf("reading config file: %v", err)
		}
	}
	if *treePath != "" {
		v.Set("runner.tree_path", *treePath)
	}
	if *owner != "" {
		v.Set("runner.owner", *owner)
	}
	if *maxTicks >= 0 {
		v.Set("runner.max_ticks", *maxTicks)
	}
	cfg, err := config.LoadFromViper(v)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	var deps leaf.Deps
	if cfg.Scripting.Enabled() {
		scripts := scripting.NewManager(logger)
		defer scripts.Close()
		if err := scripts.LoadGlobal(cfg.Scripting.ScriptDir, cfg.Scripting.InstructionLimit); err != nil {
			logger.Fatal("loading scripts", zap.String("dir", cfg.Scripting.ScriptDir), zap.Error(err))
		}
		deps.Scripts = scripts
	}

	registry := bt.NewRegistry()
	if err := leaf.RegisterBuiltins(registry, deps); err != nil {
		logger.Fatal("registering builtin leaves", zap.Error(err))
	}
	if cfg.Leaves.CatalogDir != "" {
		catalog, err := leaf.LoadCatalog(cfg.Leaves.CatalogDir)
		if err != nil {
			logger.Fatal("loading leaf catalog", zap.String("dir", cfg.Leaves.CatalogDir), zap.Error(err))
		}
		if err := leaf.RegisterCatalog(registry, catalog, deps); err != nil {
			logger.Fatal("registering leaf catalog", zap.Error(err))
		}
		logger.Info("leaf catalog loaded", zap.Int("leaves", len(catalog.Leaves)))
	}

	r := runner.New(dsl.NewParser(registry, logger), logger, runner.WithName(cfg.Runner.Owner))
	if err := r.LoadBehaviourTree(cfg.Runner.TreePath); err != nil {
		logger.Fatal("loading behaviour tree", zap.Error(err))
	}

	if *format {
		name := filepath.Base(cfg.Runner.TreePath)
		name = name[:len(name)-len(filepath.Ext(name))]
		fmt.Fprint(os.Stdout, dsl.Format(name, r.Root()))
		return
	}

	svc := runner.NewService(r, runner.NewTickManager(cfg.Runner.TickInterval, logger), runner.ServiceOptions{
		MaxTicks:     cfg.Runner.MaxTicks,
		StopOnResult: cfg.Runner.StopOnResult,
	})

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("runner", svc)

	logger.Info("btrun ready",
		zap.String("runner_id", r.ID()),
		zap.String("tree", cfg.Runner.TreePath),
		zap.Duration("tick_interval", cfg.Runner.TickInterval),
		zap.Duration("startup", time.Since(start)),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("runner exited", zap.Error(err))
	}
	logger.Info("runner finished",
		zap.Int64("ticks", svc.Ticks()),
		zap.Stringer("last_result", svc.LastResult()),
	)
}
