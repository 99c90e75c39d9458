package app

import (
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
)

type Config struct {
	// Token signing. Two independent secrets: possession of one must not
	// allow forging tokens of the other scheme.
	JWTSecretKey  string        `env:"AUTH_JWT_SECRET_KEY,required"`
	JWTRefreshKey string        `env:"AUTH_JWT_REFRESH_KEY,required"`
	AccessTTL     time.Duration `env:"AUTH_ACCESS_TOKEN_TTL,default=15m"`
	RefreshTTL    time.Duration `env:"AUTH_REFRESH_TOKEN_TTL,default=72h"`

	// Federated login. Leaving the client id empty disables the Google
	// endpoints (they answer 503).
	GoogleClientID     string `env:"AUTH_GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"AUTH_GOOGLE_CLIENT_SECRET"`
	GoogleCallbackURL  string `env:"AUTH_GOOGLE_CALLBACK_URL"`

	DatabaseFile string `env:"AUTH_DATABASE_FILE,default=auth.db"`

	Env       string `env:"ENV,default=dev"`
	LogLevel  string `env:"LOG_LEVEL,default=info"`
	LogFormat string `env:"LOG_FORMAT,default=json"`

	Port                int           `env:"PORT,default=8080"`
	ShutdownGracePeriod time.Duration `env:"SHUTDOWN_GRACE_PERIOD,default=10s"`
}

// LoadConfig reads configuration from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.StrictDecode(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	if cfg.JWTSecretKey == cfg.JWTRefreshKey {
		return Config{}, fmt.Errorf("load config: access and refresh secrets must differ")
	}

	return cfg, nil
}
