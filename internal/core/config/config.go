package config

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Garmin  GarminConfig  `yaml:"garmin"`
	Backup  BackupConfig  `yaml:"backup"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// GarminConfig holds account credentials. Values support ${ENV} substitution
// so passwords can be kept out of the file.
type GarminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// BackupConfig holds backup run settings.
type BackupConfig struct {
	// Dir is the destination directory for exported activities.
	Dir string `yaml:"dir"`
	// Formats are the export formats to back up. Empty means all.
	Formats []string `yaml:"formats"`
	// MaxRetries bounds retries of failed remote calls.
	MaxRetries int `yaml:"max_retries"`
	// IgnoreErrors keeps a run going past failed activities.
	IgnoreErrors bool `yaml:"ignore_errors"`
	// Workers bounds concurrent activity downloads. 1 = sequential.
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error
}

// MetricsConfig holds the optional Prometheus listener settings.
type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty = disabled
}
