package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// EnvPrefix is prepended to every environment variable name
	EnvPrefix = "ARENA_"
	// DefaultEnvFile is loaded when ARENA_ENV_FILE is unset
	DefaultEnvFile = ".env"
)

type Config struct {
	Port        int
	AllowOrigin string
	TLSCertFile string
	TLSKeyFile  string

	LogLevel      string
	LogFile       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int

	// DatabaseURL is sqlite://<path> or postgresql://...; empty disables persistence
	DatabaseURL   string
	MigrationsDir string
	SaveQueueSize int

	// FirebaseProjectID empty means only guests can join
	FirebaseProjectID       string
	FirebaseAPIKey          string
	FirebaseCredentialsFile string

	HeartbeatInterval time.Duration
	MaxMessageSize    int
	RateLimit         float64
	RateBurst         int
	OutboundBuffer    int

	// RecordEvery is the replay recording interval in ticks; zero disables recording
	RecordEvery int
}

func Default() *Config {
	return &Config{
		Port:              8080,
		AllowOrigin:       "*",
		LogLevel:          "info",
		LogMaxSizeMB:      100,
		LogMaxBackups:     3,
		LogMaxAgeDays:     28,
		MigrationsDir:     "./migrations",
		SaveQueueSize:     64,
		HeartbeatInterval: 30 * time.Second,
		MaxMessageSize:    1024,
		RateLimit:         120,
		RateBurst:         60,
		OutboundBuffer:    256,
		RecordEvery:       3,
	}
}

// Load builds the configuration from defaults, an optional .env file, ARENA_
// environment variables and finally args, each overriding the one before.
func Load(args []string) (*Config, error) {
	envFile := os.Getenv(EnvPrefix + "ENV_FILE")
	if envFile == "" {
		envFile = DefaultEnvFile
	}
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load %s: %v", envFile, err)
	}

	cfg := Default()
	env := &envReader{}
	env.int("PORT", &cfg.Port)
	env.string("ALLOW_ORIGIN", &cfg.AllowOrigin)
	env.string("TLS_CERT_FILE", &cfg.TLSCertFile)
	env.string("TLS_KEY_FILE", &cfg.TLSKeyFile)
	env.string("LOG_LEVEL", &cfg.LogLevel)
	env.string("LOG_FILE", &cfg.LogFile)
	env.int("LOG_MAX_SIZE_MB", &cfg.LogMaxSizeMB)
	env.int("LOG_MAX_BACKUPS", &cfg.LogMaxBackups)
	env.int("LOG_MAX_AGE_DAYS", &cfg.LogMaxAgeDays)
	env.string("DATABASE_URL", &cfg.DatabaseURL)
	env.string("MIGRATIONS_DIR", &cfg.MigrationsDir)
	env.int("SAVE_QUEUE_SIZE", &cfg.SaveQueueSize)
	env.string("FIREBASE_PROJECT_ID", &cfg.FirebaseProjectID)
	env.string("FIREBASE_API_KEY", &cfg.FirebaseAPIKey)
	env.string("FIREBASE_CREDENTIALS_FILE", &cfg.FirebaseCredentialsFile)
	env.duration("HEARTBEAT_INTERVAL", &cfg.HeartbeatInterval)
	env.int("MAX_MESSAGE_SIZE", &cfg.MaxMessageSize)
	env.float("RATE_LIMIT", &cfg.RateLimit)
	env.int("RATE_BURST", &cfg.RateBurst)
	env.int("OUTBOUND_BUFFER", &cfg.OutboundBuffer)
	env.int("RECORD_EVERY", &cfg.RecordEvery)
	if env.err != nil {
		return nil, env.err
	}

	flags := flag.NewFlagSet("arena", flag.ContinueOnError)
	flags.IntVar(&cfg.Port, "port", cfg.Port, "port to listen on")
	flags.StringVar(&cfg.AllowOrigin, "allow-origin", cfg.AllowOrigin, "comma-separated list of allowed origins")
	flags.StringVar(&cfg.TLSCertFile, "tls-cert-file", cfg.TLSCertFile, "TLS certificate file")
	flags.StringVar(&cfg.TLSKeyFile, "tls-key-file", cfg.TLSKeyFile, "TLS key file")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	flags.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotating log file, in addition to stdout")
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "sqlite:// or postgresql:// url for match records")
	flags.StringVar(&cfg.MigrationsDir, "migrations-dir", cfg.MigrationsDir, "directory holding sqlite/ migrations")
	flags.DurationVar(&cfg.HeartbeatInterval, "heartbeat-interval", cfg.HeartbeatInterval, "interval between liveness pings")
	flags.IntVar(&cfg.MaxMessageSize, "max-message-size", cfg.MaxMessageSize, "largest inbound frame in bytes")
	flags.Float64Var(&cfg.RateLimit, "rate-limit", cfg.RateLimit, "inbound messages per second per connection, 0 disables")
	flags.IntVar(&cfg.RateBurst, "rate-burst", cfg.RateBurst, "inbound message burst per connection")
	flags.IntVar(&cfg.RecordEvery, "record-every", cfg.RecordEvery, "ticks between recorded replay frames, 0 disables")
	if err := flags.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls cert and key files must be set together")
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat interval must be positive")
	}
	if c.MaxMessageSize <= 0 {
		return fmt.Errorf("max message size must be positive")
	}
	if c.RateLimit < 0 || c.RateBurst < 0 || c.OutboundBuffer < 0 || c.RecordEvery < 0 || c.SaveQueueSize < 0 {
		return fmt.Errorf("limits must not be negative")
	}
	return nil
}

// TLSEnabled reports whether the server should listen with TLS.
func (c *Config) TLSEnabled() bool {
	return c.TLSCertFile != "" && c.TLSKeyFile != ""
}

// AllowedOrigins splits AllowOrigin into its entries.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.AllowOrigin, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// envReader keeps the first parse error so every lookup can be chained.
type envReader struct {
	err error
}

func (r *envReader) lookup(name string) (string, bool) {
	v, ok := os.LookupEnv(EnvPrefix + name)
	return v, ok && v != ""
}

func (r *envReader) fail(name, value string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("invalid %s%s %q: %v", EnvPrefix, name, value, err)
	}
}

func (r *envReader) string(name string, dst *string) {
	if v, ok := r.lookup(name); ok {
		*dst = v
	}
}

func (r *envReader) int(name string, dst *int) {
	if v, ok := r.lookup(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			r.fail(name, v, err)
			return
		}
		*dst = n
	}
}

func (r *envReader) float(name string, dst *float64) {
	if v, ok := r.lookup(name); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			r.fail(name, v, err)
			return
		}
		*dst = f
	}
}

func (r *envReader) duration(name string, dst *time.Duration) {
	if v, ok := r.lookup(name); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			r.fail(name, v, err)
			return
		}
		*dst = d
	}
}
