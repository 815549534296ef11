package database

import "time"

// Driver identifies the database engine.
type Driver string

const (
	DriverPostgres Driver = "postgres"
	DriverMySQL    Driver = "mysql"
)

// Config holds all settings needed to connect to and pool a database.
type Config struct {
	// Driver is the database engine (e.g. DriverMySQL).
	Driver Driver `yaml:"driver"`

	// DSN is the full data source name / connection string.
	// Example: "user:pass@tcp(localhost:3306)/shop?parseTime=true"
	DSN string `yaml:"dsn"`

	// Pool tuning. An archive run issues its queries sequentially, so a
	// small pool is enough; the HTTP server runs one archive per request.
	MaxConns        int32         `yaml:"maxConns"`
	MinConns        int32         `yaml:"minConns"`
	MaxConnLifetime time.Duration `yaml:"maxConnLifetime"`
	MaxConnIdleTime time.Duration `yaml:"maxConnIdleTime"`

	// Timeouts
	ConnectTimeout time.Duration `yaml:"connectTimeout"` // time limit for establishing a new connection
	QueryTimeout   time.Duration `yaml:"queryTimeout"`   // deadline for one whole archive run (applied by callers)
}

// DefaultConfig returns pool settings for the given driver and DSN.
func DefaultConfig(driver Driver, dsn string) *Config {
	return &Config{
		Driver:          driver,
		DSN:             dsn,
		MaxConns:        4,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
		QueryTimeout:    5 * time.Minute,
	}
}

// ApplyDefaults fills zero-valued pool and timeout settings from DefaultConfig.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig(c.Driver, c.DSN)
	if c.MaxConns == 0 {
		c.MaxConns = d.MaxConns
	}
	if c.MinConns == 0 {
		c.MinConns = d.MinConns
	}
	if c.MaxConnLifetime == 0 {
		c.MaxConnLifetime = d.MaxConnLifetime
	}
	if c.MaxConnIdleTime == 0 {
		c.MaxConnIdleTime = d.MaxConnIdleTime
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.QueryTimeout == 0 {
		c.QueryTimeout = d.QueryTimeout
	}
}
