// Package config collects the shortener settings from defaults, an optional
// JSON file, command-line flags and environment variables, in that order of
// increasing precedence. A .env file in the working directory is loaded
// into the environment first.
package config

import (
	"encoding/json"
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

// Options holds the configuration values for the application.
type Options struct {
	// Port defines the server's listening address (ip:port).
	Port string

	// ResultHostname is the base URL used for result links.
	ResultHostname string

	// DatabaseDSN selects the Postgres store. Empty means in-memory.
	DatabaseDSN string

	// DriftLogPath is the JSON-lines journal of unreconciled counter drift.
	DriftLogPath string

	EnablePprof bool
	EnableHTTPS bool

	// LogLevel is a zap level name.
	LogLevel string

	// EndpointLength is the number of characters in a generated alias.
	EndpointLength int

	// AllocationAttempts bounds re-sampling when a generated alias collides.
	AllocationAttempts int

	DNSTimeout  time.Duration
	DNSCacheTTL time.Duration

	// SkipDNSCheck accepts every destination host without a lookup.
	SkipDNSCheck bool

	// RateLimit is a ulule/limiter formatted rate for URL creation, e.g. "100-M".
	RateLimit string

	// ReservedWords extend the built-in reserved aliases.
	ReservedWords []string

	ReconcileInterval time.Duration

	// Config is the path of the JSON file that was read, if any.
	Config string
}

// fileOptions is the JSON file layout. Durations are Go duration strings.
type fileOptions struct {
	ServerAddress      *string  `json:"server_address"`
	BaseURL            *string  `json:"base_url"`
	DatabaseDSN        *string  `json:"database_dsn"`
	DriftLogPath       *string  `json:"drift_log_path"`
	EnablePprof        *bool    `json:"enable_pprof"`
	EnableHTTPS        *bool    `json:"enable_https"`
	LogLevel           *string  `json:"log_level"`
	EndpointLength     *int     `json:"endpoint_length"`
	AllocationAttempts *int     `json:"allocation_attempts"`
	DNSTimeout         *string  `json:"dns_timeout"`
	DNSCacheTTL        *string  `json:"dns_cache_ttl"`
	SkipDNSCheck       *bool    `json:"skip_dns_check"`
	RateLimit          *string  `json:"rate_limit"`
	ReservedWords      []string `json:"reserved_words"`
	ReconcileInterval  *string  `json:"reconcile_interval"`
}

// Default returns the built-in settings.
func Default() *Options {
	return &Options{
		Port:               "localhost:8080",
		ResultHostname:     "http://localhost:8080",
		LogLevel:           "info",
		EndpointLength:     8,
		AllocationAttempts: 10,
		DNSTimeout:         2 * time.Second,
		DNSCacheTTL:        5 * time.Minute,
		RateLimit:          "100-M",
		ReconcileInterval:  10 * time.Second,
	}
}

// Parse reads the process arguments and environment.
func Parse() (*Options, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return ParseArgs(os.Args[1:])
}

// ParseArgs builds Options from args and the current environment.
func ParseArgs(args []string) (*Options, error) {
	opts := Default()

	fset := flag.NewFlagSet("shortener", flag.ContinueOnError)
	var (
		configPath = fset.String("c", "", "path to JSON config file")
		port       = fset.String("a", opts.Port, "run on ip:port server")
		baseURL    = fset.String("b", opts.ResultHostname, "result base url")
		dsn        = fset.String("d", "", "db address")
		driftLog   = fset.String("f", "", "path to counter drift journal")
		pprof      = fset.Bool("p", false, "enable pprof")
		https      = fset.Bool("s", false, "enable https")
		level      = fset.String("l", opts.LogLevel, "log level")
		length     = fset.Int("n", opts.EndpointLength, "generated alias length")
	)
	if err := fset.Parse(args); err != nil {
		return nil, err
	}

	path := *configPath
	if v, ok := os.LookupEnv("CONFIG"); ok && v != "" {
		path = v
	}
	if path != "" {
		if err := opts.loadFile(path); err != nil {
			return nil, err
		}
		opts.Config = path
	}

	fset.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			opts.Port = *port
		case "b":
			opts.ResultHostname = *baseURL
		case "d":
			opts.DatabaseDSN = *dsn
		case "f":
			opts.DriftLogPath = *driftLog
		case "p":
			opts.EnablePprof = *pprof
		case "s":
			opts.EnableHTTPS = *https
		case "l":
			opts.LogLevel = *level
		case "n":
			opts.EndpointLength = *length
		}
	})

	if err := opts.applyEnv(); err != nil {
		return nil, err
	}

	if opts.EndpointLength <= 0 {
		return nil, fmt.Errorf("endpoint length must be positive, got %d", opts.EndpointLength)
	}
	if opts.AllocationAttempts <= 0 {
		return nil, fmt.Errorf("allocation attempts must be positive, got %d", opts.AllocationAttempts)
	}

	return opts, nil
}

func (o *Options) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var f fileOptions
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&o.Port, f.ServerAddress)
	setString(&o.ResultHostname, f.BaseURL)
	setString(&o.DatabaseDSN, f.DatabaseDSN)
	setString(&o.DriftLogPath, f.DriftLogPath)
	setString(&o.LogLevel, f.LogLevel)
	setString(&o.RateLimit, f.RateLimit)
	setBool(&o.EnablePprof, f.EnablePprof)
	setBool(&o.EnableHTTPS, f.EnableHTTPS)
	setBool(&o.SkipDNSCheck, f.SkipDNSCheck)
	if f.EndpointLength != nil {
		o.EndpointLength = *f.EndpointLength
	}
	if f.AllocationAttempts != nil {
		o.AllocationAttempts = *f.AllocationAttempts
	}
	if f.ReservedWords != nil {
		o.ReservedWords = f.ReservedWords
	}

	for _, d := range []struct {
		dst *time.Duration
		src *string
	}{
		{&o.DNSTimeout, f.DNSTimeout},
		{&o.DNSCacheTTL, f.DNSCacheTTL},
		{&o.ReconcileInterval, f.ReconcileInterval},
	} {
		if d.src == nil {
			continue
		}
		v, err := time.ParseDuration(*d.src)
		if err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		*d.dst = v
	}

	return nil
}

func (o *Options) applyEnv() error {
	envString(&o.Port, "SERVER_ADDRESS")
	envString(&o.ResultHostname, "BASE_URL")
	envString(&o.DatabaseDSN, "DATABASE_DSN")
	envString(&o.DriftLogPath, "DRIFT_LOG_PATH")
	envString(&o.LogLevel, "LOG_LEVEL")
	envString(&o.RateLimit, "RATE_LIMIT")

	if v := os.Getenv("RESERVED_WORDS"); v != "" {
		o.ReservedWords = nil
		for _, w := range strings.Split(v, ",") {
			if w = strings.TrimSpace(w); w != "" {
				o.ReservedWords = append(o.ReservedWords, w)
			}
		}
	}

	var errs []error
	errs = append(errs,
		envBool(&o.EnablePprof, "ENABLE_PPROF"),
		envBool(&o.EnableHTTPS, "ENABLE_HTTPS"),
		envBool(&o.SkipDNSCheck, "SKIP_DNS_CHECK"),
		envInt(&o.EndpointLength, "ENDPOINT_LENGTH"),
		envInt(&o.AllocationAttempts, "ALLOCATION_ATTEMPTS"),
		envDuration(&o.DNSTimeout, "DNS_TIMEOUT"),
		envDuration(&o.DNSCacheTTL, "DNS_CACHE_TTL"),
		envDuration(&o.ReconcileInterval, "RECONCILE_INTERVAL"),
	)
	return errors.Join(errs...)
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func setBool(dst *bool, src *bool) {
	if src != nil {
		*dst = *src
	}
}

func envString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = d
	return nil
}
