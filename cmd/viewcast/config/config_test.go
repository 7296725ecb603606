package config

import (
	"io"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/HatiCode/viewcast/pkg/engine"
)

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write policy: %v", err)
	}
	return path
}

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse(nil, io.Discard)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Listen != ":8080" {
		t.Errorf("Listen = %q, want :8080", cfg.Listen)
	}
	if cfg.GRPCListen != ":9090" {
		t.Errorf("GRPCListen = %q, want :9090", cfg.GRPCListen)
	}
	if cfg.DatasetSource != "csv" {
		t.Errorf("DatasetSource = %q, want csv", cfg.DatasetSource)
	}
	if cfg.DatasetConfig["path"] != "data/videos.csv" {
		t.Errorf("DatasetConfig[path] = %q", cfg.DatasetConfig["path"])
	}
	if cfg.Policy != engine.DefaultPolicy() {
		t.Errorf("Policy = %+v, want defaults", cfg.Policy)
	}
	if cfg.BatchSize != 20 {
		t.Errorf("BatchSize = %d, want 20", cfg.BatchSize)
	}
	if cfg.ShutdownTimeout != 10*time.Second {
		t.Errorf("ShutdownTimeout = %v", cfg.ShutdownTimeout)
	}
	if cfg.StrictCategories {
		t.Error("StrictCategories should default to false")
	}
}

func TestParse_EnvAndFlags(t *testing.T) {
	t.Setenv("LISTEN", ":7000")
	t.Setenv("BATCH_SIZE", "12")
	t.Setenv("SEED", "99")
	t.Setenv("STRICT_CATEGORIES", "true")
	t.Setenv("LOCALE", "es")

	cfg, err := Parse([]string{"-listen", ":7001", "-threshold", "7.5"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.Listen != ":7001" {
		t.Errorf("Listen = %q, flag should win over env", cfg.Listen)
	}
	if cfg.BatchSize != 12 {
		t.Errorf("BatchSize = %d, want 12", cfg.BatchSize)
	}
	if cfg.Seed != 99 {
		t.Errorf("Seed = %d, want 99", cfg.Seed)
	}
	if !cfg.StrictCategories {
		t.Error("StrictCategories = false, want true")
	}
	if cfg.Locale != "es" {
		t.Errorf("Locale = %q, want es", cfg.Locale)
	}
	if cfg.Policy.Threshold != 7.5 {
		t.Errorf("Threshold = %v, want 7.5", cfg.Policy.Threshold)
	}
}

func TestParse_DatasetOptions(t *testing.T) {
	t.Setenv("DATASET_SOURCE", "http")
	t.Setenv("DATASET_URL", "http://example.test/videos")
	t.Setenv("DATASET_VIEWS_PATH", "items.#.plays")

	cfg, err := Parse(nil, io.Discard)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if cfg.DatasetSource != "http" {
		t.Errorf("DatasetSource = %q", cfg.DatasetSource)
	}
	if cfg.DatasetConfig["url"] != "http://example.test/videos" {
		t.Errorf("url = %q", cfg.DatasetConfig["url"])
	}
	if cfg.DatasetConfig["viewsPath"] != "items.#.plays" {
		t.Errorf("viewsPath = %q", cfg.DatasetConfig["viewsPath"])
	}
	if _, ok := cfg.DatasetConfig["source"]; ok {
		t.Error("DATASET_SOURCE must not appear as an option")
	}
}

func TestParse_PolicyFile(t *testing.T) {
	path := writePolicy(t, "cpm:\n  youtube: 3.0\nthreshold: 10\nclamp_negative: false\n")

	cfg, err := Parse([]string{"-policy-file", path, "-threshold", "8"}, io.Discard)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	want := engine.Policy{
		CPMYouTube:    3.0,
		CPMTikTok:     engine.DefaultCPMTikTok,
		Threshold:     8, // explicit flag wins over the file
		ClampNegative: false,
	}
	if cfg.Policy != want {
		t.Errorf("Policy = %+v, want %+v", cfg.Policy, want)
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad log format", []string{"-log-format", "xml"}},
		{"bad dataset source", []string{"-dataset-source", "ftp"}},
		{"batch too large", []string{"-batch-size", "101"}},
		{"batch zero", []string{"-batch-size", "0"}},
		{"negative cpm", []string{"-cpm-tiktok", "-1"}},
		{"unknown locale", []string{"-locale", "fr"}},
		{"tls without files", []string{"-tls-enabled"}},
		{"missing policy file", []string{"-policy-file", "/nonexistent/policy.yaml"}},
		{"unknown flag", []string{"-nope"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse(tt.args, io.Discard); err == nil {
				t.Errorf("Parse(%v) expected error", tt.args)
			}
		})
	}
}

func TestLoadPolicyFile(t *testing.T) {
	base := engine.DefaultPolicy()

	t.Run("empty file keeps base", func(t *testing.T) {
		got, err := LoadPolicyFile(writePolicy(t, ""), base)
		if err != nil {
			t.Fatalf("LoadPolicyFile() error = %v", err)
		}
		if got != base {
			t.Errorf("got %+v, want %+v", got, base)
		}
	})

	t.Run("partial override", func(t *testing.T) {
		got, err := LoadPolicyFile(writePolicy(t, "cpm:\n  tiktok: 0.75\n"), base)
		if err != nil {
			t.Fatalf("LoadPolicyFile() error = %v", err)
		}
		if got.CPMTikTok != 0.75 || got.CPMYouTube != base.CPMYouTube {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		if _, err := LoadPolicyFile(writePolicy(t, "cpms: 1\n"), base); err == nil {
			t.Error("expected error for unknown field")
		}
	})
}

func TestParseDatasetConfig(t *testing.T) {
	environ := []string{
		"DATASET=ignored.csv",
		"DATASET_SOURCE=redis",
		"DATASET_ADDR=redis:6379",
		"DATASET_KEY=videos",
		"DATASET_HEADERS={\"X-Token\":\"a=b\"}",
		"HOME=/root",
	}

	got := parseDatasetConfig(environ)
	want := map[string]string{
		"addr":    "redis:6379",
		"key":     "videos",
		"headers": `{"X-Token":"a=b"}`,
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("parseDatasetConfig() = %v, want %v", got, want)
	}
}

func TestToLowerCamelCase(t *testing.T) {
	tests := map[string]string{
		"URL":           "url",
		"VIEWS_PATH":    "viewsPath",
		"DURATION_PATH": "durationPath",
		"A__B":          "aB",
		"":              "",
	}
	for in, want := range tests {
		if got := toLowerCamelCase(in); got != want {
			t.Errorf("toLowerCamelCase(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "not-a-number")
	if got := getEnvInt("TEST_INT", 5); got != 5 {
		t.Errorf("getEnvInt invalid = %d, want default 5", got)
	}

	t.Setenv("TEST_BOOL", "1")
	if !getEnvBool("TEST_BOOL", false) {
		t.Error("getEnvBool(\"1\") = false")
	}

	t.Setenv("TEST_DURATION", "250ms")
	if got := getEnvDuration("TEST_DURATION", time.Second); got != 250*time.Millisecond {
		t.Errorf("getEnvDuration = %v", got)
	}

	if got := getEnvFloat("TEST_UNSET_FLOAT", 2.5); got != 2.5 {
		t.Errorf("getEnvFloat unset = %v", got)
	}
}
