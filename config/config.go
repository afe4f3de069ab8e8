// Package config turns the process environment and optional .env files into
// an explicit core.Config. It is the only package that reads the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/afero"
	"github.com/spf13/cast"
	"github.com/spf13/viper"

	"github.com/shrek82/simplemysql/cache"
	"github.com/shrek82/simplemysql/core"
	"github.com/shrek82/simplemysql/logger"
)

// Fs is the filesystem .env files are read from. Tests swap it for an
// afero.NewMemMapFs().
var Fs = afero.NewOsFs()

// DefaultEnvFile is read when Load is called without files. Unlike files
// passed explicitly, it may be missing.
const DefaultEnvFile = ".env"

const (
	KeyURL             = "MYSQL_URL"
	KeyMaxOpenConns    = "MYSQL_MAX_OPEN_CONNS"
	KeyMaxIdleConns    = "MYSQL_MAX_IDLE_CONNS"
	KeyConnMaxLifetime = "MYSQL_CONN_MAX_LIFETIME"
	KeySlowThreshold   = "MYSQL_SLOW_THRESHOLD"
	KeyLogLevel        = "MYSQL_LOG_LEVEL"
	KeyLogFormat       = "MYSQL_LOG_FORMAT"
	// KeyCacheURL is "memory" or a redis:// URL.
	KeyCacheURL            = "MYSQL_CACHE_URL"
	KeyBreakerThreshold    = "MYSQL_BREAKER_THRESHOLD"
	KeyBreakerResetTimeout = "MYSQL_BREAKER_RESET_TIMEOUT"
)

var keys = []string{
	KeyURL,
	KeyMaxOpenConns,
	KeyMaxIdleConns,
	KeyConnMaxLifetime,
	KeySlowThreshold,
	KeyLogLevel,
	KeyLogFormat,
	KeyCacheURL,
	KeyBreakerThreshold,
	KeyBreakerResetTimeout,
}

// ErrMissingURL is returned by Load when no connection string is configured.
var ErrMissingURL = errors.New("config: " + KeyURL + " is not set")

// Settings is the resolved configuration.
type Settings struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	SlowThreshold   time.Duration
	LogLevel        logger.LogLevel
	LogFormat       logger.LogFormat
	CacheURL        string

	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// Load reads files (DefaultEnvFile when none are given) and the environment.
// Real environment variables win over file entries, and earlier files win
// over later ones.
func Load(files ...string) (*Settings, error) {
	explicit := len(files) > 0
	if !explicit {
		files = []string{DefaultEnvFile}
	}

	v := viper.New()
	for _, k := range keys {
		if err := v.BindEnv(k); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", k, err)
		}
	}
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, string(logger.LogFormatText))
	v.SetDefault(KeyBreakerResetTimeout, "30s")

	seen := make(map[string]bool)
	for _, name := range files {
		env, err := readEnvFile(name, explicit)
		if err != nil {
			return nil, err
		}
		for k, val := range env {
			if seen[k] {
				continue
			}
			seen[k] = true
			v.SetDefault(k, val)
		}
	}

	s := &Settings{
		URL:      strings.TrimSpace(v.GetString(KeyURL)),
		CacheURL: strings.TrimSpace(v.GetString(KeyCacheURL)),
	}
	if s.URL == "" {
		return nil, ErrMissingURL
	}

	var err error
	if s.MaxOpenConns, err = intKey(v, KeyMaxOpenConns); err != nil {
		return nil, err
	}
	if s.MaxIdleConns, err = intKey(v, KeyMaxIdleConns); err != nil {
		return nil, err
	}
	if s.ConnMaxLifetime, err = durationKey(v, KeyConnMaxLifetime); err != nil {
		return nil, err
	}
	if s.SlowThreshold, err = durationKey(v, KeySlowThreshold); err != nil {
		return nil, err
	}
	if s.BreakerThreshold, err = intKey(v, KeyBreakerThreshold); err != nil {
		return nil, err
	}
	if s.BreakerResetTimeout, err = durationKey(v, KeyBreakerResetTimeout); err != nil {
		return nil, err
	}
	if s.LogLevel, err = logger.ParseLevel(v.GetString(KeyLogLevel)); err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyLogLevel, err)
	}
	if s.LogFormat, err = logger.ParseFormat(v.GetString(KeyLogFormat)); err != nil {
		return nil, fmt.Errorf("config: %s: %w", KeyLogFormat, err)
	}
	return s, nil
}

func readEnvFile(name string, required bool) (map[string]string, error) {
	f, err := Fs.Open(name)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", name, err)
	}
	defer f.Close()

	env, err := godotenv.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", name, err)
	}
	return env, nil
}

func intKey(v *viper.Viper, key string) (int, error) {
	raw := v.Get(key)
	if raw == nil || raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(cast.ToString(raw)))
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: %s: negative value %d", key, n)
	}
	return n, nil
}

// durationKey accepts Go durations ("30s", "5m") and bare decimal numbers,
// which are taken as milliseconds ("08" is 8ms).
func durationKey(v *viper.Viper, key string) (time.Duration, error) {
	raw := strings.TrimSpace(cast.ToString(v.Get(key)))
	if raw == "" {
		return 0, nil
	}
	if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return time.Duration(ms) * time.Millisecond, nil
	}
	d, err := cast.ToDurationE(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}

// Logger builds a standard logger with the configured level and format.
func (s *Settings) Logger() logger.Logger {
	l := logger.NewStdLogger()
	l.SetLevel(s.LogLevel)
	l.SetFormat(s.LogFormat)
	return l
}

// Cache builds the result cache named by CacheURL, or returns nil when
// caching is not configured. The caller owns the returned cache.
func (s *Settings) Cache() (cache.Cache, error) {
	switch {
	case s.CacheURL == "":
		return nil, nil
	case strings.EqualFold(s.CacheURL, "memory"):
		return cache.NewMemory(time.Minute), nil
	case strings.HasPrefix(s.CacheURL, "redis://"), strings.HasPrefix(s.CacheURL, "rediss://"):
		opt, err := redis.ParseURL(s.CacheURL)
		if err != nil {
			return nil, fmt.Errorf("config: %s: %w", KeyCacheURL, err)
		}
		return cache.NewRedis(opt), nil
	}
	return nil, fmt.Errorf("config: %s: unsupported cache %q", KeyCacheURL, s.CacheURL)
}

// DBConfig returns the facade configuration. A nil l means s.Logger().
func (s *Settings) DBConfig(l logger.Logger) core.Config {
	if l == nil {
		l = s.Logger()
	}
	return core.Config{
		ConnectionString: s.URL,
		Logger:           l,
		MaxOpenConns:     s.MaxOpenConns,
		MaxIdleConns:     s.MaxIdleConns,
		ConnMaxLifetime:  s.ConnMaxLifetime,
		SlowThreshold:    s.SlowThreshold,

		BreakerThreshold:    s.BreakerThreshold,
		BreakerResetTimeout: s.BreakerResetTimeout,
	}
}
