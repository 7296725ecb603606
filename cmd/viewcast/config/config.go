// Package config provides configuration parsing for the viewcast board service.
//
// It handles command-line flags and environment variables, with flags taking
// precedence over environment variables. A .env file in the working directory
// is loaded into the environment first when present.
//
// The monetization policy can additionally be read from a YAML file
// (-policy-file / POLICY_FILE):
//
//	cpm:
//	  youtube: 2.0
//	  tiktok: 0.5
//	threshold: 5.0
//	clamp_negative: true
//
// Values in the file override environment variables and defaults. Policy
// flags given explicitly on the command line override the file.
//
// Supported configuration sources (in order of precedence):
//  1. Command-line flags
//  2. Policy file (policy fields only)
//  3. Environment variables
//  4. Default values
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/HatiCode/viewcast/pkg/board"
	"github.com/HatiCode/viewcast/pkg/engine"
	"github.com/HatiCode/viewcast/pkg/tls"
)

// Config holds all board service configuration.
type Config struct {
	Listen          string
	GRPCListen      string
	LogFormat       string
	LogLevel        string
	ShutdownTimeout time.Duration
	TLS             tls.Config

	DatasetSource string
	Dataset       string
	DatasetConfig map[string]string

	Policy           engine.Policy
	PolicyFile       string
	StrictCategories bool

	BatchSize int
	Seed      uint64
	Locale    string
}

// ParseFlags loads .env, then parses os.Args and the environment into a
// Config. It exits the process on invalid configuration.
func ParseFlags() *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error: load .env: %v\n", err)
		os.Exit(1)
	}

	cfg, err := Parse(os.Args[1:], os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// Parse parses args with environment fallbacks, applies the policy file and
// validates the result. Usage output goes to out.
func Parse(args []string, out io.Writer) (*Config, error) {
	cfg := &Config{Policy: engine.DefaultPolicy()}

	fs := flag.NewFlagSet("viewcast", flag.ContinueOnError)
	fs.SetOutput(out)

	fs.StringVar(&cfg.Listen, "listen", getEnv("LISTEN", ":8080"), "HTTP listen address")
	fs.StringVar(&cfg.GRPCListen, "grpc-listen", getEnv("GRPC_LISTEN", ":9090"), "gRPC listen address (empty disables gRPC)")
	fs.StringVar(&cfg.LogFormat, "log-format", getEnv("LOG_FORMAT", "text"), "Log format: text or json")
	fs.StringVar(&cfg.LogLevel, "log-level", getEnv("LOG_LEVEL", "info"), "Log level: debug, info, warn, error")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second), "Graceful shutdown timeout")

	fs.BoolVar(&cfg.TLS.Enabled, "tls-enabled", getEnvBool("TLS_ENABLED", false), "Enable TLS for HTTP and gRPC servers")
	fs.StringVar(&cfg.TLS.CertFile, "tls-cert-file", getEnv("TLS_CERT_FILE", ""), "TLS certificate file")
	fs.StringVar(&cfg.TLS.KeyFile, "tls-key-file", getEnv("TLS_KEY_FILE", ""), "TLS private key file")
	fs.StringVar(&cfg.TLS.CAFile, "tls-ca-file", getEnv("TLS_CA_FILE", ""), "TLS CA certificate file for client verification")

	fs.StringVar(&cfg.DatasetSource, "dataset-source", getEnv("DATASET_SOURCE", "csv"), "Dataset source: csv, http, or redis")
	fs.StringVar(&cfg.Dataset, "dataset", getEnv("DATASET", "data/videos.csv"), "Path of the CSV dataset (csv source)")

	fs.StringVar(&cfg.PolicyFile, "policy-file", getEnv("POLICY_FILE", ""), "YAML file overriding the monetization policy")
	fs.Float64Var(&cfg.Policy.CPMYouTube, "cpm-youtube", getEnvFloat("CPM_YOUTUBE", engine.DefaultCPMYouTube), "YouTube revenue per 1000 views")
	fs.Float64Var(&cfg.Policy.CPMTikTok, "cpm-tiktok", getEnvFloat("CPM_TIKTOK", engine.DefaultCPMTikTok), "TikTok revenue per 1000 views")
	fs.Float64Var(&cfg.Policy.Threshold, "threshold", getEnvFloat("THRESHOLD", engine.DefaultThreshold), "Minimum revenue to recommend recording")
	fs.BoolVar(&cfg.Policy.ClampNegative, "clamp-negative", getEnvBool("CLAMP_NEGATIVE", true), "Clamp negative view estimates to zero")
	fs.BoolVar(&cfg.StrictCategories, "strict-categories", getEnvBool("STRICT_CATEGORIES", false), "Reject unknown type and platform names instead of mapping them to the default")

	fs.IntVar(&cfg.BatchSize, "batch-size", getEnvInt("BATCH_SIZE", board.DefaultBatchSize), "Candidates per board batch")
	fs.Uint64Var(&cfg.Seed, "seed", getEnvUint64("SEED", 0), "Candidate generator seed (0 seeds from time)")
	fs.StringVar(&cfg.Locale, "locale", getEnv("LOCALE", "en"), "Board page language: en or es")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.DatasetConfig = parseDatasetConfig(os.Environ())
	if _, ok := cfg.DatasetConfig["path"]; !ok && cfg.Dataset != "" {
		cfg.DatasetConfig["path"] = cfg.Dataset
	}

	if cfg.PolicyFile != "" {
		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

		fromFile, err := LoadPolicyFile(cfg.PolicyFile, cfg.Policy)
		if err != nil {
			return nil, err
		}
		if !explicit["cpm-youtube"] {
			cfg.Policy.CPMYouTube = fromFile.CPMYouTube
		}
		if !explicit["cpm-tiktok"] {
			cfg.Policy.CPMTikTok = fromFile.CPMTikTok
		}
		if !explicit["threshold"] {
			cfg.Policy.Threshold = fromFile.Threshold
		}
		if !explicit["clamp-negative"] {
			cfg.Policy.ClampNegative = fromFile.ClampNegative
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.Listen == "" {
		return errors.New("listen address cannot be empty")
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("invalid log format %q (must be text or json)", c.LogFormat)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("shutdown timeout must be > 0, got %v", c.ShutdownTimeout)
	}
	switch c.DatasetSource {
	case "csv", "http", "redis":
	default:
		return fmt.Errorf("invalid dataset source %q (must be csv, http, or redis)", c.DatasetSource)
	}
	if c.BatchSize < 1 || c.BatchSize > board.MaxBatchSize {
		return fmt.Errorf("batch size must be between 1 and %d, got %d", board.MaxBatchSize, c.BatchSize)
	}
	if _, ok := board.Locales[c.Locale]; !ok {
		return fmt.Errorf("invalid locale %q (supported: %s)", c.Locale, strings.Join(board.LocaleNames(), ", "))
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if err := c.TLS.Validate(); err != nil {
		return err
	}
	return nil
}

type policyFile struct {
	CPM struct {
		YouTube *float64 `yaml:"youtube"`
		TikTok  *float64 `yaml:"tiktok"`
	} `yaml:"cpm"`
	Threshold     *float64 `yaml:"threshold"`
	ClampNegative *bool    `yaml:"clamp_negative"`
}

// LoadPolicyFile reads a YAML policy file. Fields absent from the file keep
// their value from base. Unknown fields are rejected.
func LoadPolicyFile(path string, base engine.Policy) (engine.Policy, error) {
	f, err := os.Open(path)
	if err != nil {
		return base, fmt.Errorf("open policy file: %w", err)
	}
	defer func() { _ = f.Close() }()

	var pf policyFile
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&pf); err != nil && !errors.Is(err, io.EOF) {
		return base, fmt.Errorf("parse policy file %s: %w", path, err)
	}

	p := base
	if pf.CPM.YouTube != nil {
		p.CPMYouTube = *pf.CPM.YouTube
	}
	if pf.CPM.TikTok != nil {
		p.CPMTikTok = *pf.CPM.TikTok
	}
	if pf.Threshold != nil {
		p.Threshold = *pf.Threshold
	}
	if pf.ClampNegative != nil {
		p.ClampNegative = *pf.ClampNegative
	}
	return p, nil
}

// parseDatasetConfig collects DATASET_* environment variables into the option
// map understood by dataset.New. Names are converted to lower camel case
// (DATASET_VIEWS_PATH → viewsPath). DATASET_SOURCE selects the source and is
// not an option.
func parseDatasetConfig(environ []string) map[string]string {
	const prefix = "DATASET_"
	config := make(map[string]string)

	for _, env := range environ {
		name, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(name, prefix) || name == "DATASET_SOURCE" {
			continue
		}
		key := toLowerCamelCase(strings.TrimPrefix(name, prefix))
		if key != "" {
			config[key] = value
		}
	}

	return config
}

func toLowerCamelCase(s string) string {
	var b strings.Builder
	for i, part := range strings.Split(strings.ToLower(s), "_") {
		if part == "" {
			continue
		}
		if i > 0 && b.Len() > 0 {
			part = strings.ToUpper(part[:1]) + part[1:]
		}
		b.WriteString(part)
	}
	return b.String()
}
