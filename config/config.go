package config

import "github.com/caarlos0/env/v6"

type Config struct {
	Server struct {
		// Port the HTTP server listens on
		Port string `env:"SERVER_PORT" envDefault:"5250"`

		// Allowed CORS origins, comma separated
		CORSOrigins []string `env:"CORS_ORIGINS" envDefault:"*" envSeparator:","`
	}

	Database struct {
		// Path to the sqlite database file
		Path string `env:"DATABASE_PATH" envDefault:"database/tenantflow.db"`
	}

	Notifications struct {
		// Buffered queue size for pending notifications
		QueueSize int `env:"NOTIFY_QUEUE_SIZE" envDefault:"100"`

		// Number of delivery workers
		WorkerCount int `env:"NOTIFY_WORKER_COUNT" envDefault:"2"`

		// Optional webhook POSTed for every notification
		WebhookURL string `env:"NOTIFY_WEBHOOK_URL"`

		// Read notifications older than this many days are swept; 0 disables
		RetentionDays int `env:"NOTIFY_RETENTION_DAYS" envDefault:"30"`
	}

	Geocoding struct {
		// Run a coordinate backfill pass at startup
		Enabled bool `env:"GEOCODING_ENABLED" envDefault:"true"`

		// Directory for the geocode cache file
		CacheDir string `env:"GEOCODING_CACHE_DIR"`

		// Restrict Nominatim lookups to a country code, empty for none
		CountryCode string `env:"GEOCODING_COUNTRY_CODE"`
	}
}

func LoadConfig() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
