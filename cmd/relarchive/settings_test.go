package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koustreak/relarchive/internal/config"
	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/database/mysql"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/filestore"
	"github.com/koustreak/relarchive/internal/logger"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// settingsFor parses args on a bare command carrying the settings flags and
// returns what loadSettings resolves.
func settingsFor(t *testing.T, args ...string) (*config.File, error) {
	t.Helper()
	t.Chdir(t.TempDir())

	var (
		got *config.File
		err error
	)
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			got, err = loadSettings(cmd)
			return nil
		},
	}
	addSettingsFlags(cmd)
	cmd.SetArgs(args)
	require.NoError(t, cmd.Execute())
	return got, err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSettings_ConfigFile(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: postgres
  dsn: postgres://u:p@localhost/shop
defaultNaming:
  stripSuffix: _id
`)

	f, err := settingsFor(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, database.DriverPostgres, f.Database.Driver)
	assert.Equal(t, "postgres://u:p@localhost/shop", f.Database.DSN)
	assert.Equal(t, "_id", f.DefaultNaming.StripSuffix)
}

func TestLoadSettings_EnvAndFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, "database:\n  driver: mysql\n  dsn: file-dsn\nlog:\n  level: info\n")
	t.Setenv("RELARCHIVE_DSN", "env-dsn")
	t.Setenv("RELARCHIVE_LOG_LEVEL", "warn")

	f, err := settingsFor(t, "--config", path, "--log-level", "debug", "--format", "yaml", "--output-dir", "out")
	require.NoError(t, err)
	assert.Equal(t, "env-dsn", f.Database.DSN)
	assert.Equal(t, "debug", f.Log.Level)
	assert.Equal(t, "yaml", f.Output.Format)
	assert.Equal(t, filestore.ProviderLocal, f.Output.Provider)
	assert.Equal(t, "out", f.Output.Dir)
}

func TestLoadSettings_DotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("RELARCHIVE_DSN=dotenv-dsn\n"), 0o600))

	t.Setenv("RELARCHIVE_DSN", "")
	require.NoError(t, os.Unsetenv("RELARCHIVE_DSN"))

	var got *config.File
	cmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			got, err = loadSettings(cmd)
			return err
		},
	}
	addSettingsFlags(cmd)
	cmd.SetArgs(nil)
	t.Chdir(dir)
	require.NoError(t, cmd.Execute())
	assert.Equal(t, "dotenv-dsn", got.Database.DSN)
}

func TestLoadSettings_Errors(t *testing.T) {
	t.Setenv("RELARCHIVE_DSN", "")
	require.NoError(t, os.Unsetenv("RELARCHIVE_DSN"))

	_, err := settingsFor(t)
	assert.True(t, errs.IsInvalidInput(err), "missing dsn")

	_, err = settingsFor(t, "--dsn", "x", "--driver", "oracle")
	assert.True(t, errs.IsInvalidInput(err))

	_, err = settingsFor(t, "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNewArchiver(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	f := config.Default()
	f.DefaultNaming.Expr = "column +"
	_, err = newArchiver(f, mysql.Wrap(db), logger.Nop())
	assert.True(t, errs.IsInvalidInput(err))

	f.DefaultNaming = config.NamingSpec{StripSuffix: "_id"}
	a, err := newArchiver(f, mysql.Wrap(db), logger.Nop())
	require.NoError(t, err)
	assert.NotNil(t, a)

	// The guard rejects a second statement before any query is sent.
	_, err = a.Archive(context.Background(), "shop", "orders", "id = 1; DROP TABLE orders")
	assert.True(t, errs.IsInvalidInput(err))
}

func TestOpenStore(t *testing.T) {
	s, err := openStore(context.Background(), &filestore.Config{Provider: filestore.ProviderLocal, Dir: t.TempDir()})
	require.NoError(t, err)
	assert.NoError(t, s.Ping(context.Background()))

	_, err = openStore(context.Background(), &filestore.Config{Provider: "ftp"})
	assert.True(t, errs.IsInvalidInput(err))
}

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "relarchive version: dev")
}
