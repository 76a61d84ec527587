package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/fxicsd/internal/config"
	"github.com/tonimelisma/fxicsd/internal/dispatch"
	"github.com/tonimelisma/fxicsd/internal/fxid"
	"github.com/tonimelisma/fxicsd/internal/sqlstore"
	"github.com/tonimelisma/fxicsd/internal/store"
	"github.com/tonimelisma/fxicsd/internal/transport"
)

// rootFMID is the well-known id of the single root folder this reference
// store bootstraps on first run. Every other folder and message lives
// under it.
var rootFMID = fxid.NewFMID(1, 1)

// localReplicaID is the id this store registers itself under. Session
// negotiation (internal/session) hardcodes the same value, so the two
// must agree.
const localReplicaID = fxid.ReplicaID(1)

// shutdownGrace bounds how long an in-flight websocket session gets to
// wind down once the serve command's context is canceled.
const shutdownGrace = 5 * time.Second

func newServeCmd() *cobra.Command {
	var watchSpool bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the fxicsd reference store behind its websocket RPC transport",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), watchSpool)
		},
	}

	cmd.Flags().BoolVar(&watchSpool, "watch-spool", true, "ingest files dropped into the spool directory as new messages")

	return cmd
}

func runServe(ctx context.Context, watchSpool bool) error {
	cfg, logger, err := loadEffectiveConfig()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	if err := os.MkdirAll(cfg.Store.DataDir, 0o755); err != nil {
		return fmt.Errorf("creating data dir: %w", err)
	}

	if err := os.MkdirAll(cfg.Store.SpoolDir, 0o755); err != nil {
		return fmt.Errorf("creating spool dir: %w", err)
	}

	pidCleanup, err := writePIDFile(filepath.Join(cfg.Store.DataDir, "fxicsd.pid"))
	if err != nil {
		return err
	}
	defer pidCleanup()

	dbPath := filepath.Join(cfg.Store.DataDir, "fxicsd.db")

	st, err := sqlstore.Open(ctx, dbPath, logger)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer st.Close()

	guid, generated, err := config.ReplicaGUIDOrGenerate(cfg)
	if err != nil {
		return fmt.Errorf("resolving replica guid: %w", err)
	}

	if err := st.RegisterReplica(ctx, localReplicaID, guid); err != nil {
		return fmt.Errorf("registering local replica: %w", err)
	}

	if generated {
		logger.Info("generated new replica guid", "guid", guid, "replica_id", localReplicaID)
	}

	root, err := bootstrapRootFolder(ctx, st)
	if err != nil {
		return fmt.Errorf("bootstrapping root folder: %w", err)
	}

	if watchSpool {
		watcher := sqlstore.NewWatcher(st, root, localReplicaID)

		go func() {
			if err := watcher.Watch(ctx, cfg.Store.SpoolDir); err != nil {
				logger.Error("spool watcher stopped", "error", err)
			}
		}()
	}

	d := dispatch.New(st, st, st, logger)
	server := transport.NewServer(d, logger)

	logger.Info("listening", "addr", cfg.Server.ListenAddr, "root_handle", root)

	httpServer := &http.Server{
		Addr:    cfg.Server.ListenAddr,
		Handler: server,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving: %w", err)
	}

	return nil
}

// bootstrapRootFolder opens the reference store's single root folder,
// creating it on first run.
func bootstrapRootFolder(ctx context.Context, st *sqlstore.Store) (store.Handle, error) {
	handle, err := st.OpenFolder(ctx, 0, rootFMID)
	if err == nil {
		return handle, nil
	}

	if !errors.Is(err, store.ErrNotAFolder) {
		return 0, err
	}

	return st.CreateFolder(ctx, 0, rootFMID, nil)
}
