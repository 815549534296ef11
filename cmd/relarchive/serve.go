package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	scfg := server.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve archives over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			log := logger.New(&f.Log)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			connectCtx, cancel := context.WithTimeout(ctx, f.Database.ConnectTimeout+5*time.Second)
			db, err := openDB(connectCtx, &f.Database)
			cancel()
			if err != nil {
				return err
			}
			defer db.Close()

			a, err := newArchiver(f, db, log)
			if err != nil {
				return err
			}

			return server.New(scfg, a, db, log).ListenAndServe(ctx)
		},
	}

	cmd.Flags().StringVar(&scfg.Addr, "addr", scfg.Addr, "listen address")
	cmd.Flags().DurationVar(&scfg.RequestTimeout, "request-timeout", scfg.RequestTimeout, "per-request archive timeout")
	return cmd
}
