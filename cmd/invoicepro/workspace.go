package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/kingrea/invoicepro/internal/config"
	"github.com/kingrea/invoicepro/internal/export"
	"github.com/kingrea/invoicepro/internal/ledger"
	"github.com/kingrea/invoicepro/internal/logbook"
	"github.com/kingrea/invoicepro/internal/logging"
	"github.com/kingrea/invoicepro/internal/persist"
	"github.com/kingrea/invoicepro/internal/store"
)

// workspace is everything a command needs, opened once per invocation.
type workspace struct {
	cfg          *config.Config
	journal      *logbook.Logbook
	log          *logging.Logger
	kv           store.KV
	flusher      *persist.Flusher
	synchronizer *persist.Synchronizer
	ledger       *ledger.Ledger
	exporter     *export.Exporter
}

func openWorkspace(ctx context.Context, projectDir string) (*workspace, error) {
	absolute, err := filepath.Abs(projectDir)
	if err != nil {
		return nil, fmt.Errorf("resolve project dir: %w", err)
	}
	if err := config.InitDir(absolute); err != nil {
		return nil, fmt.Errorf("init %s: %w", config.Dir, err)
	}
	cfg, err := config.NewConfig(absolute)
	if err != nil {
		return nil, err
	}
	rt := &workspace{cfg: cfg}
	rt.journal, err = logbook.New(filepath.Join(cfg.LogsDir(), "journey.log"))
	if err != nil {
		return nil, err
	}
	rt.log, err = logging.New(absolute)
	if err != nil {
		rt.log = logging.Nop()
	}
	rt.kv, err = store.Open(cfg)
	if err != nil {
		rt.log.Errorw("store unavailable", "backend", cfg.Project.Store.Backend, "error", err)
		_ = rt.log.Close()
		return nil, err
	}
	rt.synchronizer = persist.New(rt.kv,
		persist.WithLogger(rt.journal),
		persist.WithTimeout(cfg.Project.Store.Timeout))
	initial := rt.synchronizer.Load(ctx)
	rt.flusher = persist.NewFlusher(rt.synchronizer)
	rt.ledger = ledger.New(initial,
		ledger.WithObserver(rt.flusher),
		ledger.WithLogger(rt.journal))
	rt.exporter = export.NewExporter(cfg.ExportDir(),
		export.NewPDFRenderer(cfg.Company()),
		export.WithLogger(rt.journal))
	rt.log.Infow("session opened", "invoices", len(initial), "backend", cfg.Project.Store.Backend)
	return rt, nil
}

// Close writes any pending snapshot and releases the store.
func (rt *workspace) Close() error {
	if rt.flusher != nil {
		rt.flusher.Close()
	}
	var err error
	if rt.kv != nil {
		err = rt.kv.Close()
	}
	if rt.log != nil {
		_ = rt.log.Close()
	}
	return err
}
