package main

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/koustreak/relarchive/internal/export"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/schema"
	"github.com/spf13/cobra"
)

func newRunCmd() *cobra.Command {
	var (
		schemaName string
		table      string
		where      string
		params     []string
		out        string
		timeout    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Archive the rows of one table and write the document",
		Example: `  relarchive run --config archive.yaml --schema shop --table orders --where "id = ?" --param 1
  RELARCHIVE_DSN="u:p@tcp(localhost:3306)/shop" relarchive run --schema shop --table orders --out orders.yaml --format yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			log := logger.New(&f.Log)

			format, err := export.ParseFormat(f.Output.Format)
			if err != nil {
				return err
			}

			if timeout <= 0 {
				timeout = f.Database.QueryTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			db, err := openDB(ctx, &f.Database)
			if err != nil {
				log.ErrorWith("connect failed", err, map[string]interface{}{"driver": string(f.Database.Driver)})
				return err
			}
			defer db.Close()

			store, err := openStore(ctx, &f.Output.Config)
			if err != nil {
				return err
			}
			defer store.Close()

			a, err := newArchiver(f, db, log)
			if err != nil {
				return err
			}

			bound := make([]any, len(params))
			for i, p := range params {
				bound[i] = p
			}

			rows, err := a.Archive(ctx, schemaName, table, where, bound...)
			if err != nil {
				return err
			}

			key := out
			if key == "" {
				key = export.Key(schema.TableID{Schema: schemaName, Name: table}, uuid.NewString(), format)
			}

			info, err := export.Write(ctx, store, f.Output.Bucket, key, format, rows)
			if err != nil {
				log.ErrorWith("write archive failed", err, map[string]interface{}{"key": key})
				return err
			}

			log.InfoWith("archive written", map[string]interface{}{
				"bucket": info.Bucket,
				"key":    info.Key,
				"size":   info.Size,
				"rows":   len(rows),
			})
			return nil
		},
	}

	cmd.Flags().StringVar(&schemaName, "schema", "", "schema (database) of the root table")
	cmd.Flags().StringVar(&table, "table", "", "root table")
	cmd.Flags().StringVar(&where, "where", "", "WHERE condition with ? placeholders")
	cmd.Flags().StringArrayVar(&params, "param", nil, "value bound to the next ? placeholder (repeatable)")
	cmd.Flags().StringVar(&out, "out", "", "object key (default <schema>.<table>-<uuid>.<format>)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "abort the run after this long (default database.queryTimeout)")
	_ = cmd.MarkFlagRequired("schema")
	_ = cmd.MarkFlagRequired("table")

	return cmd
}
