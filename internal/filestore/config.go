package filestore

// Provider identifies the file storage backend.
type Provider string

const (
	ProviderLocal Provider = "local"
	ProviderMinIO Provider = "minio"
)

// Config holds all settings needed to reach the storage archives are written to.
type Config struct {
	// Provider is the storage backend (ProviderLocal or ProviderMinIO).
	Provider Provider `yaml:"provider"`

	// Dir is the root directory for ProviderLocal. Buckets are subdirectories.
	Dir string `yaml:"dir"`

	// Endpoint is the host:port of the storage server.
	// Example: "localhost:9000" for local MinIO.
	Endpoint string `yaml:"endpoint"`

	// AccessKey is the access key ID (MinIO / S3 style).
	AccessKey string `yaml:"accessKey"`

	// SecretKey is the secret access key.
	SecretKey string `yaml:"secretKey"`

	// UseSSL controls whether TLS is used for the connection.
	UseSSL bool `yaml:"useSSL"`

	// Region is used by region-aware backends (e.g. AWS S3).
	// Leave empty for MinIO.
	Region string `yaml:"region"`

	// Bucket receives the archives. For ProviderLocal it may be empty, in
	// which case documents are written directly under Dir.
	Bucket string `yaml:"bucket"`
}

// DefaultConfig writes archives to the current directory.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderLocal,
		Dir:      ".",
	}
}
