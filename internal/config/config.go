// Package config loads the archive configuration file.
//
// The file is YAML. Per-table sections are keyed by the fully-qualified
// "schema.table" name:
//
//	database:
//	  driver: mysql
//	  dsn: "archiver:secret@tcp(localhost:3306)/shop?parseTime=true"
//	output:
//	  provider: local
//	  dir: ./archives
//	  format: json
//	defaultNaming:
//	  stripSuffix: _id
//	tables:
//	  shop.orders:
//	    additionalForeignKeys:
//	      legacy_ref: shop.legacy.id
//	    mappedEntities:
//	      billing_address_id: billing
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/koustreak/relarchive/internal/database"
	"github.com/koustreak/relarchive/internal/errs"
	"github.com/koustreak/relarchive/internal/filestore"
	"github.com/koustreak/relarchive/internal/logger"
	"go.yaml.in/yaml/v3"
)

// DefaultMaxDepth bounds reference chains when the file does not set maxDepth.
const DefaultMaxDepth = 32

// File is the parsed configuration file.
type File struct {
	Database      database.Config `yaml:"database"`
	Output        Output          `yaml:"output"`
	Log           logger.Config   `yaml:"log"`
	DefaultNaming NamingSpec      `yaml:"defaultNaming"`
	MaxDepth      int             `yaml:"maxDepth"`
	Tables        Tables          `yaml:"tables"`
}

// Output selects where and how archive documents are written.
type Output struct {
	filestore.Config `yaml:",inline"`

	// Format is "json" (default) or "yaml".
	Format string `yaml:"format"`
}

// NamingSpec selects the default-naming strategy used when a table has no
// explicit mapping for a foreign-key column. At most one field may be set;
// an empty spec means no default, so every foreign key needs a mapping.
type NamingSpec struct {
	StripSuffix string `yaml:"stripSuffix"`
	Expr        string `yaml:"expr"`
}

// IsZero reports whether no strategy was configured.
func (n NamingSpec) IsZero() bool {
	return n.StripSuffix == "" && n.Expr == ""
}

// TableOptions are the per-table settings.
type TableOptions struct {
	// AdditionalForeignKeys declares virtual foreign keys:
	// column -> "schema.table.column".
	AdditionalForeignKeys map[string]string `yaml:"additionalForeignKeys"`

	// MappedEntities overrides the embedded name: column -> entity name.
	MappedEntities map[string]string `yaml:"mappedEntities"`
}

// Tables maps "schema.table" to its options.
type Tables map[string]TableOptions

// AdditionalForeignKeys returns the virtual foreign keys declared for table.
func (t Tables) AdditionalForeignKeys(table string) map[string]string {
	return t[table].AdditionalForeignKeys
}

// MappedEntities returns the explicit embedding names declared for table.
func (t Tables) MappedEntities(table string) map[string]string {
	return t[table].MappedEntities
}

// Default returns a File with an empty table set and default sections.
func Default() *File {
	return &File{
		Database: *database.DefaultConfig(database.DriverMySQL, ""),
		Output:   Output{Config: *filestore.DefaultConfig(), Format: "json"},
		Log:      *logger.DefaultConfig(),
		MaxDepth: DefaultMaxDepth,
		Tables:   Tables{},
	}
}

// Load reads and validates the configuration file at path.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, fmt.Sprintf("read config %s", path), err)
	}
	return Parse(data)
}

// Parse decodes YAML on top of Default and validates the result.
func Parse(data []byte) (*File, error) {
	f := Default()
	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse config", err)
	}
	if f.Tables == nil {
		f.Tables = Tables{}
	}
	f.Database.ApplyDefaults()
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return f, nil
}

// Validate checks the settings that can be checked without a database.
func (f *File) Validate() error {
	switch f.Database.Driver {
	case database.DriverMySQL, database.DriverPostgres:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "database.driver must be mysql or postgres, got %q", f.Database.Driver)
	}

	switch f.Output.Provider {
	case filestore.ProviderLocal, filestore.ProviderMinIO:
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "output.provider must be local or minio, got %q", f.Output.Provider)
	}

	if f.Output.Provider == filestore.ProviderMinIO && f.Output.Bucket == "" {
		return errs.New(errs.ErrKindInvalidInput, "output.bucket is required for the minio provider")
	}

	switch f.Output.Format {
	case "json", "yaml":
	default:
		return errs.Newf(errs.ErrKindInvalidInput, "output.format must be json or yaml, got %q", f.Output.Format)
	}

	if f.DefaultNaming.StripSuffix != "" && f.DefaultNaming.Expr != "" {
		return errs.New(errs.ErrKindInvalidInput, "defaultNaming: set either stripSuffix or expr, not both")
	}

	if f.MaxDepth < 1 {
		return errs.Newf(errs.ErrKindInvalidInput, "maxDepth must be positive, got %d", f.MaxDepth)
	}

	for table, opts := range f.Tables {
		if _, _, ok := strings.Cut(table, "."); !ok {
			return errs.Newf(errs.ErrKindInvalidInput, "tables: key %q is not schema.table", table)
		}
		for column, target := range opts.AdditionalForeignKeys {
			if _, _, _, err := SplitTarget(target); err != nil {
				return errs.Wrap(errs.ErrKindInvalidInput,
					fmt.Sprintf("tables.%s.additionalForeignKeys.%s", table, column), err)
			}
		}
		for column, entity := range opts.MappedEntities {
			if entity == "" {
				return errs.Newf(errs.ErrKindInvalidInput, "tables.%s.mappedEntities.%s is empty", table, column)
			}
		}
	}
	return nil
}

// SplitTarget parses a "schema.table.column" foreign-key target.
func SplitTarget(target string) (schema, table, column string, err error) {
	parts := strings.Split(target, ".")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", errs.Newf(errs.ErrKindInvalidInput, "foreign key target %q is not schema.table.column", target)
	}
	return parts[0], parts[1], parts[2], nil
}
