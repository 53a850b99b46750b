package main

import (
	"context"
	"errors"
	"net/http"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// watch creates the tables of the schema document, then again every time
// the document is written, until ctx is done. Metrics are served on
// MetricsAddr meanwhile.
func (e *env) watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()
	schema, err := filepath.Abs(e.cfg.Schema)
	if err != nil {
		return err
	}
	// Editors often replace the file, so the directory is watched.
	if err := w.Add(filepath.Dir(schema)); err != nil {
		return err
	}
	if e.cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              e.cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(e.metrics, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				e.log.Error("serving metrics", "error", err)
			}
		}()
		defer srv.Close()
		e.log.Info("serving metrics", "addr", e.cfg.MetricsAddr)
	}

	e.reload(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != schema || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			e.log.Debug("schema changed", "op", ev.Op.String())
			e.reload(ctx)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			e.log.Warn("watching schema", "error", err)
		}
	}
}

// reload creates the tables of the current schema document. Failures are
// logged; the watch goes on.
func (e *env) reload(ctx context.Context) {
	if err := e.create(ctx); err != nil {
		e.log.Error("applying schema", "schema", e.cfg.Schema, "error", err)
		if rerr := e.db.Rollback(ctx); rerr != nil {
			e.log.Error("rolling back", "error", rerr)
		}
	}
}
