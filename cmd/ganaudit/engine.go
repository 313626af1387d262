package main

import (
	"path/filepath"

	"go.uber.org/zap"

	"ganaudit/internal/archive"
	"ganaudit/internal/cache"
	"ganaudit/internal/config"
	"ganaudit/internal/judge"
	"ganaudit/internal/orchestrator"
	"ganaudit/internal/progress"
	"ganaudit/internal/sanitize"
	"ganaudit/internal/store"
)

// engine bundles a fully wired orchestrator and its closable resources.
type engine struct {
	orch *orchestrator.Orchestrator
	arch *archive.Archive
}

// buildEngine wires the orchestrator with the built-in heuristic judge
// behind a circuit breaker. Real judges attach through the same seam.
func buildEngine(cfg *config.Config) (*engine, error) {
	sessions, err := store.New(cfg.StateDir, cfg.Store.WriteRetries)
	if err != nil {
		return nil, err
	}

	var arch *archive.Archive
	var archiver orchestrator.Archiver
	if cfg.Archive.Enabled {
		arch, err = archive.Open(filepath.Join(cfg.StateDir, "archive.db"))
		if err != nil {
			// The archive is best-effort; run without it.
			logger.Warn("archive unavailable", zap.Error(err))
		} else {
			archiver = arch
		}
	}

	orch, err := orchestrator.New(cfg, orchestrator.Deps{
		Store:     sessions,
		Cache:     cache.New(cfg.Cache.Capacity, cfg.Cache.TTL),
		Tracker:   progress.New(cfg.Progress.EnableAfter, cfg.Progress.MaxTracked),
		Sanitizer: sanitize.New(cfg.Sanitizer),
		Judge:     judge.NewBreaker(judge.NewHeuristicJudge()),
		Contexts:  judge.StaticContextBuilder{},
		Archive:   archiver,
	})
	if err != nil {
		if arch != nil {
			arch.Close()
		}
		return nil, err
	}
	return &engine{orch: orch, arch: arch}, nil
}

func (e *engine) close() {
	e.orch.Close()
	if e.arch != nil {
		e.arch.Close()
	}
}
