// Package main provides the entry point for the Anglian Water client.
// It logs in with either the B2C or the legacy device-credential variant,
// fetches smart meter usage, and can serve the cached state over a local
// HTTP bridge.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/pantherale0/go-anglianwater/internal/auth"
	"github.com/pantherale0/go-anglianwater/internal/bridge"
	"github.com/pantherale0/go-anglianwater/internal/config"
	"github.com/pantherale0/go-anglianwater/internal/logging"
	"github.com/pantherale0/go-anglianwater/internal/store"
	"github.com/pantherale0/go-anglianwater/internal/util"
	"github.com/pantherale0/go-anglianwater/internal/watcher"
	"github.com/pantherale0/go-anglianwater/internal/water"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// loginAttempts bounds interactive credential re-prompts. Protocol and
// service errors abort immediately; only rejected credentials re-prompt.
const loginAttempts = 3

func init() {
	logging.SetupBaseLogger()
}

func main() {
	fmt.Printf("go-anglianwater Version: %s, Commit: %s, BuiltAt: %s\n", Version, Commit, BuildDate)

	var loginMode bool
	var serveMode bool
	var configPath string

	flag.BoolVar(&loginMode, "login", false, "Run the login flow and print the credentials to retain")
	flag.BoolVar(&serveMode, "serve", false, "Serve the local status bridge with periodic updates")
	flag.StringVar(&configPath, "config", "config.yaml", "Configuration file path")
	flag.Parse()

	wd, err := os.Getwd()
	if err != nil {
		log.Errorf("failed to get working directory: %v", err)
		return
	}
	if errLoad := godotenv.Load(filepath.Join(wd, ".env")); errLoad != nil {
		if !errors.Is(errLoad, os.ErrNotExist) {
			log.WithError(errLoad).Warn("failed to load .env file")
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Errorf("failed to load config: %v", err)
		return
	}
	util.SetLogLevel(cfg.Debug)
	logging.ConfigureLogOutput(cfg.LogDir, cfg.LoggingToFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	authenticator, err := loginWithRetries(ctx, cfg)
	if err != nil {
		log.Errorf("login failed: %v", err)
		os.Exit(1)
	}
	saveSnapshot(cfg, authenticator)

	switch {
	case loginMode:
		printSnapshot(authenticator)
	case serveMode:
		if err = serve(ctx, cfg, configPath, authenticator); err != nil {
			log.Errorf("bridge failed: %v", err)
			os.Exit(1)
		}
	default:
		if err = reportUsage(ctx, cfg, authenticator); err != nil {
			log.Errorf("usage fetch failed: %v", err)
			os.Exit(1)
		}
	}
}

// buildAuthenticator constructs the configured variant, seeding it from a
// stored snapshot when one is available.
func buildAuthenticator(cfg *config.Config) (auth.Authenticator, error) {
	snap := loadSnapshot(cfg)

	switch cfg.AuthMethod {
	case config.AuthMethodLegacy:
		deviceID := cfg.DeviceID
		if deviceID == "" && snap != nil {
			deviceID = snap.DeviceID
		}
		return auth.NewDeviceCredentialAuth(cfg.Username, cfg.Password, deviceID, nil), nil
	case config.AuthMethodB2C:
		refreshToken := cfg.RefreshToken
		if refreshToken == "" && snap != nil {
			refreshToken = snap.RefreshToken
		}
		a := auth.NewOAuthPKCEAuth(cfg.Username, cfg.Password, cfg.AccountID, refreshToken, nil)
		if cfg.ProxyURL != "" {
			a.SetProxy(cfg.ProxyURL)
		}
		return a, nil
	default:
		return nil, fmt.Errorf("unknown auth method %q", cfg.AuthMethod)
	}
}

// loginWithRetries runs the variant's login, re-prompting for the
// password on rejected credentials and aborting on anything else.
func loginWithRetries(ctx context.Context, cfg *config.Config) (auth.Authenticator, error) {
	reader := bufio.NewReader(os.Stdin)
	for attempt := 1; ; attempt++ {
		authenticator, err := buildAuthenticator(cfg)
		if err != nil {
			return nil, err
		}
		err = authenticator.Login(ctx)
		if err == nil {
			return authenticator, nil
		}
		if !auth.IsInvalidCredentials(err) || attempt >= loginAttempts {
			return nil, err
		}
		log.Warnf("credentials rejected (attempt %d of %d)", attempt, loginAttempts)
		fmt.Printf("Password for %s: ", cfg.Username)
		line, errRead := reader.ReadString('\n')
		if errRead != nil {
			return nil, err
		}
		cfg.Password = strings.TrimSpace(line)
	}
}

func serve(ctx context.Context, cfg *config.Config, configPath string, authenticator auth.Authenticator) error {
	service, err := newService(cfg, authenticator)
	if err != nil {
		return err
	}
	if err = service.Update(ctx); err != nil {
		log.Warnf("initial usage update failed: %v", err)
	}

	interval := time.Duration(cfg.UpdateIntervalSeconds) * time.Second
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if errUpdate := service.Update(ctx); errUpdate != nil {
					log.Errorf("usage update failed: %v", errUpdate)
				}
			}
		}
	}()

	w, err := watcher.NewWatcher(configPath, func(next *config.Config) {
		util.SetLogLevel(next.Debug)
		log.Info("configuration reloaded")
	})
	if err != nil {
		log.Warnf("config watcher unavailable: %v", err)
	} else {
		if err = w.Start(ctx); err != nil {
			log.Warnf("config watcher failed to start: %v", err)
		}
		defer func() { _ = w.Stop() }()
	}

	port := cfg.BridgePort
	if port == 0 {
		port = 8480
	}
	server := bridge.NewServer(service, port)
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	return server.Start()
}

func reportUsage(ctx context.Context, cfg *config.Config, authenticator auth.Authenticator) error {
	service, err := newService(cfg, authenticator)
	if err != nil {
		return err
	}
	if err = service.Update(ctx); err != nil {
		return err
	}
	now := time.Now()
	for serial, meter := range service.Meters() {
		latest, ok := meter.LatestReading()
		if !ok {
			fmt.Printf("meter %s: no readings\n", serial)
			continue
		}
		fmt.Printf("meter %s: read %.3f m3 on %s, yesterday %.0f L (cost %.2f GBP)\n",
			serial, latest.Read, latest.Date.Format("2006-01-02"),
			meter.YesterdayConsumption(now), meter.YesterdayCost(now))
	}
	return nil
}

func newService(cfg *config.Config, authenticator auth.Authenticator) (*water.Service, error) {
	return water.NewService(authenticator, water.DefaultTariffTable(),
		cfg.Area, cfg.Tariff, cfg.CustomRate, cfg.CustomService)
}

func printSnapshot(authenticator auth.Authenticator) {
	snap := authenticator.Snapshot()
	fmt.Println("Login succeeded. Retain these values for future sessions:")
	if snap.DeviceID != "" {
		fmt.Printf("  device-id: %s\n", snap.DeviceID)
	}
	if snap.RefreshToken != "" {
		fmt.Printf("  refresh-token: %s\n", snap.RefreshToken)
	}
}

func loadSnapshot(cfg *config.Config) *auth.Snapshot {
	if cfg.SnapshotPath == "" || cfg.SnapshotPassphrase == "" {
		return nil
	}
	snap, err := store.NewSnapshotStore(cfg.SnapshotPath, cfg.SnapshotPassphrase).Load()
	if err != nil {
		if !errors.Is(err, store.ErrNoSnapshot) {
			log.Warnf("failed to load session snapshot: %v", err)
		}
		return nil
	}
	if snap.Username != cfg.Username {
		log.Warnf("stored snapshot belongs to %s, ignoring", snap.Username)
		return nil
	}
	return &snap
}

func saveSnapshot(cfg *config.Config, authenticator auth.Authenticator) {
	if cfg.SnapshotPath == "" || cfg.SnapshotPassphrase == "" {
		return
	}
	if err := store.NewSnapshotStore(cfg.SnapshotPath, cfg.SnapshotPassphrase).Save(authenticator.Snapshot()); err != nil {
		log.Warnf("failed to save session snapshot: %v", err)
	}
}
