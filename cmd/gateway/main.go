package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kong"

	"github.com/a-h/pkggate/accesslog"
	"github.com/a-h/pkggate/cmd/globals"
	"github.com/a-h/pkggate/downloadcounter"
	"github.com/a-h/pkggate/loggedstorage"
	"github.com/a-h/pkggate/metrics"
	"github.com/a-h/pkggate/npm/pkglock"
	"github.com/a-h/pkggate/npm/registry"
	"github.com/a-h/pkggate/routes"
	"github.com/a-h/pkggate/storage"
	"github.com/a-h/pkggate/store"
)

type CLI struct {
	globals.Globals
	Version VersionCmd `cmd:"" help:"Show version information"`
	Serve   ServeCmd   `cmd:"" help:"Start the gateway server"`
	Warm    WarmCmd    `cmd:"" help:"Pre-fetch every package in a package-lock.json into the tarball cache"`
}

var Version = "dev"

type VersionCmd struct{}

func (cmd *VersionCmd) Run(globals *globals.Globals) error {
	fmt.Printf("%s", Version)
	return nil
}

type S3Flags struct {
	Bucket          string `help:"S3 bucket name (required when tarball-cache-type=s3)" env:"GATEWAY_S3_BUCKET"`
	Region          string `help:"S3 region" default:"us-east-1" env:"GATEWAY_S3_REGION"`
	Endpoint        string `help:"S3 endpoint URL (for MinIO/custom endpoints)" env:"GATEWAY_S3_ENDPOINT"`
	AccessKeyID     string `help:"S3 access key ID (uses IAM role if not set)" env:"GATEWAY_S3_ACCESS_KEY_ID"`
	SecretAccessKey string `help:"S3 secret access key (uses IAM role if not set)" env:"GATEWAY_S3_SECRET_ACCESS_KEY"`
	ForcePathStyle  bool   `help:"Use path-style S3 URLs (required for MinIO)" env:"GATEWAY_S3_FORCE_PATH_STYLE"`
}

type ServeCmd struct {
	ListenAddr        string  `help:"Address to listen on" default:":8080" env:"GATEWAY_LISTEN_ADDR"`
	MetricsListenAddr string  `help:"Address for the Prometheus metrics endpoint" default:":9090" env:"GATEWAY_METRICS_LISTEN_ADDR"`
	RegistryURL       string  `help:"Upstream npm-compatible registry URL" default:"https://registry.npmjs.org" env:"GATEWAY_REGISTRY_URL"`
	Origin            string  `help:"Gateway origin used when rewriting bare specifiers" default:"" env:"GATEWAY_ORIGIN"`
	StorePath         string  `help:"Path to local data (cache database, filesystem tarball cache)" default:"" env:"GATEWAY_STORE_PATH"`
	CacheBackend      string  `help:"Backend for the shared L2 registry cache (none, sqlite, rqlite, postgres)" default:"none" enum:"none,sqlite,rqlite,postgres" env:"GATEWAY_CACHE_BACKEND"`
	CacheURL          string  `help:"Connection URL for the shared cache backend" default:"" env:"GATEWAY_CACHE_URL"`
	TarballCacheType  string  `help:"Persistent tarball cache backend (none, fs, s3)" default:"none" enum:"none,fs,s3" env:"GATEWAY_TARBALL_CACHE_TYPE"`
	S3                S3Flags `embed:"" prefix:"s3-"`
}

func (cmd *ServeCmd) Run(globals *globals.Globals) error {
	opts := &slog.HandlerOptions{}
	if globals.Verbose {
		opts.Level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, opts))

	if cmd.StorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cmd.StorePath = filepath.Join(home, "pkggate-store")
	}
	if err := os.MkdirAll(cmd.StorePath, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}

	go func() {
		if err := metrics.ListenAndServe(cmd.MetricsListenAddr); err != nil {
			log.Error("metrics server exited", slog.String("addr", cmd.MetricsListenAddr), slog.String("error", err.Error()))
		}
	}()

	ctx := context.Background()

	client := registry.New(cmd.RegistryURL).WithMetrics(m)

	var kvStoreCloser func() error
	var requests chan<- downloadcounter.DownloadEvent
	var accessLog *accesslog.AccessLog
	if cmd.CacheBackend != "none" {
		kvStore, closer, err := store.New(ctx, cmd.CacheBackend, cmd.CacheURL)
		if err != nil {
			return fmt.Errorf("failed to connect to cache backend: %w", err)
		}
		kvStoreCloser = closer
		client = client.WithSharedCache(kvStore)
		accessLog = accesslog.New(kvStore)

		requestsChan, shutdown := downloadcounter.NewBufferedCounter(ctx, log, kvStore, m, 2048)
		requests = requestsChan
		defer shutdown()
	}

	tarballCache, tarballCacheShutdown, err := cmd.createTarballCache(ctx, log, m, accessLog)
	if err != nil {
		return err
	}
	defer tarballCacheShutdown(5 * time.Second)
	if tarballCache != nil {
		client = client.WithTarballCache(tarballCache)
	}

	origin := cmd.Origin
	if origin == "" {
		origin = "http://" + cmd.ListenAddr
	}

	s := http.Server{
		Addr:    cmd.ListenAddr,
		Handler: routes.New(log, client, origin, m, requests),
	}
	log.Info("starting server", slog.String("addr", cmd.ListenAddr), slog.String("registryURL", cmd.RegistryURL), slog.String("origin", origin))
	err = s.ListenAndServe()
	if kvStoreCloser != nil {
		_ = kvStoreCloser()
	}
	log.Info("server shutdown complete")
	return err
}

// createTarballCache builds the optional persistent tarball cache tier. When
// accessLog is non-nil (a shared cache backend is configured), reads and
// writes against the tier are also recorded through it via loggedstorage.
func (cmd *ServeCmd) createTarballCache(ctx context.Context, log *slog.Logger, m metrics.Metrics, accessLog *accesslog.AccessLog) (s storage.Storage, shutdown func(timeout time.Duration) error, err error) {
	var base storage.Storage
	switch cmd.TarballCacheType {
	case "none":
		return nil, func(time.Duration) error { return nil }, nil
	case "s3":
		if cmd.S3.Bucket == "" {
			return nil, nil, fmt.Errorf("--s3-bucket must also be set when --tarball-cache-type=s3")
		}
		base, err = storage.NewS3(ctx, storage.S3Config{
			Bucket:          cmd.S3.Bucket,
			Prefix:          "tarballs/",
			Region:          cmd.S3.Region,
			Endpoint:        cmd.S3.Endpoint,
			AccessKeyID:     cmd.S3.AccessKeyID,
			SecretAccessKey: cmd.S3.SecretAccessKey,
			ForcePathStyle:  cmd.S3.ForcePathStyle,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create s3 tarball cache: %w", err)
		}
	case "fs":
		base = storage.NewFileSystem(filepath.Join(cmd.StorePath, "tarballs"))
	default:
		return nil, nil, fmt.Errorf("unknown tarball cache type %q", cmd.TarballCacheType)
	}

	if accessLog == nil {
		return base, func(time.Duration) error { return nil }, nil
	}

	logged, loggedShutdown := loggedstorage.New(ctx, log, base, accessLog, m)
	return logged, loggedShutdown, nil
}

type WarmCmd struct {
	PackageLock  string `arg:"" help:"Path to a package-lock.json"`
	RegistryURL  string `help:"Upstream npm-compatible registry URL" default:"https://registry.npmjs.org" env:"GATEWAY_REGISTRY_URL"`
	StorePath    string `help:"Path to the filesystem tarball cache to warm" default:"" env:"GATEWAY_STORE_PATH"`
	CacheBackend string `help:"Backend for the shared L2 registry cache to warm (none, sqlite, rqlite, postgres)" default:"none" enum:"none,sqlite,rqlite,postgres" env:"GATEWAY_CACHE_BACKEND"`
	CacheURL     string `help:"Connection URL for the shared cache backend" default:"" env:"GATEWAY_CACHE_URL"`
}

func (cmd *WarmCmd) Run(globals *globals.Globals) error {
	opts := &slog.HandlerOptions{}
	if globals.Verbose {
		opts.Level = slog.LevelDebug
	}
	log := slog.New(slog.NewJSONHandler(os.Stderr, opts))

	if cmd.StorePath == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("failed to get user home directory: %w", err)
		}
		cmd.StorePath = filepath.Join(home, "pkggate-store")
	}

	f, err := os.Open(cmd.PackageLock)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", cmd.PackageLock, err)
	}
	defer f.Close()

	ctx := context.Background()
	specs, err := pkglock.Parse(ctx, f)
	if err != nil {
		return fmt.Errorf("failed to parse %q: %w", cmd.PackageLock, err)
	}

	client := registry.New(cmd.RegistryURL).WithTarballCache(storage.NewFileSystem(filepath.Join(cmd.StorePath, "tarballs")))
	if cmd.CacheBackend != "none" {
		kvStore, closer, err := store.New(ctx, cmd.CacheBackend, cmd.CacheURL)
		if err != nil {
			return fmt.Errorf("failed to connect to cache backend: %w", err)
		}
		defer closer()
		client = client.WithSharedCache(kvStore)
	}

	for _, spec := range specs {
		name, version, ok := splitSpec(spec)
		if !ok {
			log.Warn("skipping malformed lockfile entry", slog.String("spec", spec))
			continue
		}
		if _, err := client.GetVersionsAndTags(ctx, name); err != nil {
			log.Error("failed to warm versions", slog.String("spec", spec), slog.String("error", err.Error()))
			continue
		}
		if _, err := client.GetPackageConfig(ctx, name, version); err != nil {
			log.Error("failed to warm config", slog.String("spec", spec), slog.String("error", err.Error()))
			continue
		}
		if _, err := client.GetPackage(ctx, name, version); err != nil {
			log.Error("failed to warm tarball", slog.String("spec", spec), slog.String("error", err.Error()))
			continue
		}
		log.Info("warmed package", slog.String("spec", spec))
	}

	return nil
}

func splitSpec(spec string) (name, version string, ok bool) {
	idx := lastIndexByte(spec, '@')
	if idx <= 0 {
		return "", "", false
	}
	return spec[:idx], spec[idx+1:], true
}

func lastIndexByte(s string, b byte) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == b {
			return i
		}
	}
	return -1
}

func main() {
	cli := CLI{
		Globals: globals.Globals{},
	}

	ctx := kong.Parse(&cli,
		kong.Name("pkggate"),
		kong.Description("Serve individual files from npm-compatible registry packages"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)
	err := ctx.Run(&cli.Globals)
	ctx.FatalIfErrorf(err)
}
