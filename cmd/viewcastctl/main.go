// Command viewcastctl is the command-line client of the viewcast board.
//
// Subcommands:
//
//	viewcastctl predict -addr=localhost:9090 -duration=600 -type=long -platform=YouTube -day=friday
//	    Scores one video through the gRPC service and prints views, revenue
//	    and the decision.
//
//	viewcastctl seed -file=data/videos.csv -redis-addr=localhost:6379 -key=viewcast:dataset
//	    Replaces the Redis dataset list with the records of a CSV file so
//	    board instances started with DATASET_SOURCE=redis can fit on it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"github.com/HatiCode/viewcast/pkg/dataset"
	"github.com/HatiCode/viewcast/pkg/features"
	"github.com/HatiCode/viewcast/pkg/rpc"
	"github.com/HatiCode/viewcast/pkg/tls"
)

// version is set via ldflags at build time
var version = "dev"

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		logger.Error("command failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		usage(stdout)
		return flag.ErrHelp
	}

	switch args[0] {
	case "predict":
		return runPredict(ctx, args[1:], stdout)
	case "seed":
		return runSeed(ctx, args[1:], stdout)
	case "version":
		_, err := fmt.Fprintln(stdout, version)
		return err
	case "help", "-h", "--help":
		usage(stdout)
		return nil
	default:
		usage(stdout)
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: viewcastctl <predict|seed|version> [flags]")
}

func runPredict(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	fs.SetOutput(stdout)

	addr := fs.String("addr", getEnv("VIEWCAST_ADDR", "localhost:9090"), "gRPC address of the board service")
	timeout := fs.Duration("timeout", 5*time.Second, "Request timeout")
	var video features.Video
	fs.Float64Var(&video.DurationSeconds, "duration", 0, "Video duration in seconds")
	fs.StringVar(&video.Type, "type", "short", "Video type: short or long")
	fs.StringVar(&video.Platform, "platform", "YouTube", "Platform: TikTok or YouTube")
	fs.StringVar(&video.Day, "day", "", "Publication weekday")

	var tlsCfg tls.Config
	fs.BoolVar(&tlsCfg.Enabled, "tls", false, "Use TLS")
	fs.StringVar(&tlsCfg.CertFile, "tls-cert-file", "", "Client certificate for mutual TLS")
	fs.StringVar(&tlsCfg.KeyFile, "tls-key-file", "", "Client private key for mutual TLS")
	fs.StringVar(&tlsCfg.CAFile, "tls-ca-file", "", "CA certificate verifying the server")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if video.DurationSeconds <= 0 {
		return errors.New("-duration must be > 0")
	}
	if video.Day == "" {
		return errors.New("-day is required")
	}

	host, _, err := net.SplitHostPort(*addr)
	if err != nil {
		return fmt.Errorf("invalid -addr: %w", err)
	}
	clientTLS, err := tls.ClientConfig(tlsCfg, host)
	if err != nil {
		return err
	}

	client, err := rpc.Dial(*addr, clientTLS)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	p, err := client.Predict(ctx, video)
	if err != nil {
		return fmt.Errorf("predict: %w", err)
	}

	_, err = fmt.Fprintf(stdout, "views:    %d\nrevenue:  %s\ndecision: %s\n",
		p.Views, p.Revenue.StringFixed(2), p.Decision)
	return err
}

func runSeed(ctx context.Context, args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	fs.SetOutput(stdout)

	file := fs.String("file", "data/videos.csv", "CSV dataset to upload")
	addr := fs.String("redis-addr", getEnv("REDIS_ADDR", "localhost:6379"), "Redis server address")
	password := fs.String("redis-password", getEnv("REDIS_PASSWORD", ""), "Redis password")
	db := fs.Int("redis-db", 0, "Redis database number")
	key := fs.String("key", dataset.DefaultRedisKey, "Redis list key")

	if err := fs.Parse(args); err != nil {
		return err
	}

	records, err := (&dataset.CSVSource{Path: *file}).Load(ctx)
	if err != nil {
		return err
	}

	store, err := dataset.NewRedisSource(*addr, *password, *db, *key)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.Replace(ctx, records); err != nil {
		return err
	}

	_, err = fmt.Fprintf(stdout, "seeded %d records into %s\n", len(records), store.Key())
	return err
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
