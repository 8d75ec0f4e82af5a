package main

import (
	"context"
	"fmt"
	"time"

	"github.com/INLOpen/nvattr/config"
	"github.com/INLOpen/nvattr/hooks"
	"github.com/INLOpen/nvattr/hooks/listeners"
	"github.com/INLOpen/nvattr/medium"
	"github.com/INLOpen/nvattr/metrics"
	"github.com/INLOpen/nvattr/store"
)

// openMedium opens the configured medium. fresh reports whether it holds
// no layout yet. A memory medium is always fresh.
func openMedium(env *environment) (m medium.Medium, fresh bool, err error) {
	sc := env.cfg.Store
	switch sc.Backend {
	case "memory":
		return medium.NewMemory(sc.SizeBytes, sc.FillByte), true, nil
	case "file":
		f, err := medium.OpenFile(sc.Path, sc.SizeBytes, medium.FileOptions{
			LockTimeout: config.ParseDuration(sc.LockTimeout, 2*time.Second, env.logger),
			Preallocate: sc.Preallocate,
			Logger:      env.logger,
		})
		if err != nil {
			return nil, false, err
		}
		return f, f.Created(), nil
	default:
		return nil, false, fmt.Errorf("unknown backend %q", sc.Backend)
	}
}

// openStore opens the store, formatting the medium when it is fresh or
// when format is set.
func openStore(ctx context.Context, env *environment, format bool) (*store.AttributeStore, error) {
	m, fresh, err := openMedium(env)
	if err != nil {
		return nil, err
	}

	manager := hooks.NewHookManager(env.logger)
	if ids := env.cfg.ProtectedAttributeIDs(); len(ids) > 0 {
		manager.Register(hooks.EventPreSetAttribute, listeners.NewWriteGuardListener(env.logger, ids...))
	}
	alerter := listeners.NewCorrectionAlerterListener(env.logger, env.cfg.Metrics.CorrectionAlertThreshold)
	manager.Register(hooks.EventOnValueCorrected, alerter)
	manager.Register(hooks.EventOnIntegrityFailure, alerter)

	collector := metrics.NewCollector()
	if env.cfg.Metrics.Enabled {
		collector.Publish(env.cfg.Metrics.Prefix)
	}

	opts := store.Options{
		Medium:          m,
		CRC16Polynomial: env.cfg.Store.CRC16Polynomial,
		ErrorCorrection: env.cfg.Store.ErrorCorrection,
		Logger:          env.logger,
		Tracer:          env.tracer,
		Hooks:           manager,
		Metrics:         collector,
	}
	var s *store.AttributeStore
	if format || fresh {
		if fresh && !format {
			env.logger.Info("Medium is fresh, formatting", "backend", env.cfg.Store.Backend)
		}
		s, err = store.Format(ctx, opts)
	} else {
		s, err = store.Open(ctx, opts)
	}
	if err != nil {
		m.Close()
		return nil, err
	}
	return s, nil
}
