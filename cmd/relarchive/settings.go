package main

import (
	"context"
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/koustreak/relarchive/internal/archive"
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/database/mysql"
	"github.com/koustreak/relarchive/internal/database/postgres"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/filestore"
	"github.com/koustreak/relarchive/internal/filestore/local"
	"github.com/koustreak/relarchive/internal/filestore/minio"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/koustreak/relarchive/internal/naming"
	"github.com/koustreak/relarchive/internal/schema"
	"github.com/koustreak/relarchive/internal/whereguard"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "RELARCHIVE"

// addSettingsFlags registers the flags that override the config file.
// Each can also be set as RELARCHIVE_<NAME>, e.g. RELARCHIVE_LOG_LEVEL.
func addSettingsFlags(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.String("config", "", "archive configuration file (YAML)")
	f.String("driver", "", "database driver: mysql or postgres")
	f.String("dsn", "", "database connection string")
	f.String("log-level", "", "log level: debug, info, warn, error")
	f.String("log-format", "", "log format: json or console")
	f.String("output-dir", "", "directory for the local output provider")
	f.String("bucket", "", "output bucket")
	f.String("format", "", "output format: json or yaml")
	f.Int("max-depth", 0, "maximum nesting of embedded documents")
}

// loadSettings resolves the configuration: flags, then RELARCHIVE_* env
// (after .env), then the config file.
func loadSettings(cmd *cobra.Command) (*config.File, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "load .env", err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "bind flags", err)
	}

	f := config.Default()
	if path := v.GetString("config"); path != "" {
		var err error
		if f, err = config.Load(path); err != nil {
			return nil, err
		}
	}

	if v.IsSet("driver") {
		f.Database.Driver = database.Driver(v.GetString("driver"))
	}
	if v.IsSet("dsn") {
		f.Database.DSN = v.GetString("dsn")
	}
	if v.IsSet("log-level") {
		f.Log.Level = v.GetString("log-level")
	}
	if v.IsSet("log-format") {
		f.Log.Format = v.GetString("log-format")
	}
	if v.IsSet("output-dir") {
		f.Output.Provider = filestore.ProviderLocal
		f.Output.Dir = v.GetString("output-dir")
	}
	if v.IsSet("bucket") {
		f.Output.Bucket = v.GetString("bucket")
	}
	if v.IsSet("format") {
		f.Output.Format = v.GetString("format")
	}
	if v.IsSet("max-depth") {
		f.MaxDepth = v.GetInt("max-depth")
	}

	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Database.DSN == "" {
		return nil, errs.New(errs.ErrKindInvalidInput, "no database dsn: set database.dsn, --dsn or RELARCHIVE_DSN")
	}
	return f, nil
}

// openDB connects with the configured driver.
func openDB(ctx context.Context, cfg *database.Config) (database.DB, error) {
	switch cfg.Driver {
	case database.DriverMySQL:
		d, err := mysql.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	case database.DriverPostgres:
		d, err := postgres.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return d, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported driver %q", cfg.Driver)
	}
}

// openStore connects to the configured output provider.
func openStore(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	switch cfg.Provider {
	case filestore.ProviderLocal:
		s, err := local.New(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	case filestore.ProviderMinIO:
		s, err := minio.New(ctx, cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errs.Newf(errs.ErrKindInvalidInput, "unsupported output provider %q", cfg.Provider)
	}
}

// newArchiver wires the archiver for db. Caller WHERE conditions are
// checked with the MySQL grammar, so the guard is only installed there.
func newArchiver(f *config.File, db database.DB, log *logger.Logger) (*archive.Archiver, error) {
	fallback, err := naming.FromSpec(f.DefaultNaming)
	if err != nil {
		return nil, err
	}

	opts := []archive.Option{archive.WithLogger(log.Component("archive"))}
	if db.Dialect() == database.DialectMySQL {
		opts = append(opts, archive.WithGuard(whereguard.New()))
	}

	cfg := archive.Config{Tables: f.Tables, DefaultNaming: fallback, MaxDepth: f.MaxDepth}
	return archive.New(db, schema.NewIntrospector(db), cfg, opts...), nil
}
