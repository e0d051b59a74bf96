package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"membership-workflow/internal/common/config"
	"membership-workflow/internal/common/database"
	"membership-workflow/internal/scheduler"
	"membership-workflow/internal/server"
	"membership-workflow/internal/workers"
	cs "membership-workflow/internal/workers/operator/cleanup-spaces"

	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var addr string
	var migrateFirst bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP ingress and the cleanup schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Address = addr
			}
			log, sync, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if migrateFirst {
				if err := database.MigrateUp(cfg.Database); err != nil {
					return err
				}
				log.Info("migrations applied", nil)
			}

			a, err := newApp(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			handler, err := server.New(server.Config{
				BasePath:     cfg.Server.BasePath,
				JWTSecret:    cfg.Server.JWTSecret,
				Version:      cfg.App.Version,
				Handlers:     a.handlers,
				Applications: a.store,
				Authorizer:   a.authorizer,
				Ready:        a.store,
				Logger:       log,
			})
			if err != nil {
				return err
			}

			var sched *scheduler.Scheduler
			if cfg.Cleanup.Enabled && a.handlers.Cleanup != nil {
				sched, err = scheduler.New(cfg.Cleanup, a.handlers.Cleanup, log,
					scheduler.WithTimeout(workers.Timeout(cfg, cs.TaskType)))
				if err != nil {
					return err
				}
				sched.Start()
			}

			srv := &http.Server{
				Addr:         cfg.Server.Address,
				Handler:      handler,
				ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
				WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
			}
			errCh := make(chan error, 1)
			go func() {
				log.Info("serving", map[string]interface{}{"address": srv.Addr, "basePath": cfg.Server.BasePath})
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutdown signal received", nil)
			case err := <-errCh:
				if err != nil {
					return err
				}
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), config.GetDuration(cfg.Server.ShutdownTimeout))
			defer cancel()
			if sched != nil {
				if err := sched.Stop(shutdownCtx); err != nil {
					log.Warn("cleanup schedule did not stop in time", map[string]interface{}{"error": err.Error()})
				}
			}
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Error("http shutdown failed", map[string]interface{}{"error": err.Error()})
			}
			log.Info("stopped", nil)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.address)")
	cmd.Flags().BoolVar(&migrateFirst, "migrate", false, "apply pending migrations before serving")
	return cmd
}
