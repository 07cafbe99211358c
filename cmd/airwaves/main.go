package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/airwaves-cli/airwaves/internal/cache"
	"github.com/airwaves-cli/airwaves/internal/catalog"
	"github.com/airwaves-cli/airwaves/internal/config"
	"github.com/airwaves-cli/airwaves/internal/directory"
	"github.com/airwaves-cli/airwaves/internal/engine"
	"github.com/airwaves-cli/airwaves/internal/metadata"
	"github.com/airwaves-cli/airwaves/internal/player"
	"github.com/airwaves-cli/airwaves/internal/progress"
	"github.com/airwaves-cli/airwaves/internal/saved"
	"github.com/airwaves-cli/airwaves/internal/search"
	"github.com/airwaves-cli/airwaves/internal/surface"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	startupTimeout         = 15 * time.Second
	stationRefreshInterval = 30 * time.Second
)

var (
	versionFlag  = flag.Bool("version", false, "Show version information")
	debugFlag    = flag.Bool("debug", false, "Enable debug logging")
	headlessFlag = flag.Bool("headless", false, "Run without the terminal UI (log surface only)")
	stationFlag  = flag.String("station", "", "Start playing the given station id")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s v%s - %s\n\n", config.AppName, config.AppVersion, config.AppDescription)
		fmt.Fprintf(os.Stderr, "Usage: %s [options]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()

		configPath, err := config.GetConfigPath()
		if err == nil {
			if _, statErr := os.Stat(configPath); statErr == nil {
				fmt.Fprintf(os.Stderr, "\nConfig file: %s\n", configPath)
			} else {
				fmt.Fprintf(os.Stderr, "\nConfig file will be created on first use.\n")
			}
		}
	}
}

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Printf("%s v%s\n", config.AppName, config.AppVersion)
		fmt.Println(config.AppDescription)
		os.Exit(0)
	}

	setupLogging()

	cfg, err := config.Load()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to load config, using defaults")
	}
	prefs := config.NewPrefs(cfg)

	fileCache, err := cache.NewCache()
	if err != nil {
		log.Warn().Err(err).Msg("Disk cache unavailable, episode audio will not be cached")
		fileCache = nil
	} else {
		go func() {
			if err := fileCache.CleanExpired(); err != nil {
				log.Debug().Err(err).Msg("Cache cleanup failed")
			}
		}()
	}

	metaClient := metadata.NewClient(cfg.MetadataURL)
	catClient := catalog.NewClient(cfg.CatalogURL)

	dir := directory.New(metaClient, prefs)
	ctx, cancel := context.WithTimeout(context.Background(), startupTimeout)
	if _, err := dir.Refresh(ctx); err != nil {
		cancel()
		fmt.Fprintf(os.Stderr, "Failed to fetch station list: %v\n", err)
		os.Exit(1)
	}
	cancel()
	cfg.CleanupFavorites(dir.ValidIDs())
	dir.StartPeriodicRefresh(stationRefreshInterval, nil)
	defer dir.StopPeriodicRefresh()

	progressPath, err := config.GetProgressPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate progress file: %v\n", err)
		os.Exit(1)
	}
	progressStore, err := progress.NewFileStore(progressPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open progress file: %v\n", err)
		os.Exit(1)
	}

	savedPath, err := config.GetSavedPath()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to locate saved episodes file: %v\n", err)
		os.Exit(1)
	}
	savedStore, err := saved.NewStore(savedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open saved episodes file: %v\n", err)
		os.Exit(1)
	}

	index := search.NewIndex()
	index.Add(savedStore.All()...)

	streamPlayer := player.NewPlayer(fileCache)
	streamPlayer.SetVolume(cfg.Volume)

	opts := engine.Options{
		Player:    streamPlayer,
		Metadata:  metaClient,
		Catalog:   catClient,
		Progress:  progressStore,
		Directory: dir,
		Saved:     savedStore,
		Search:    index,
		Prefs:     prefs,
	}
	if *headlessFlag {
		opts.Surface = surface.NewLogSurface()
	}

	eng := engine.New(opts)
	defer eng.Close()

	if *stationFlag != "" {
		if err := eng.PlayStation(*stationFlag); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to play station %q: %v\n", *stationFlag, err)
			os.Exit(1)
		}
	}

	if *headlessFlag {
		runHeadless(eng)
		return
	}

	tui := surface.NewTUI(eng, streamPlayer, dir, catClient, index)
	sub := eng.Subscribe(tui.Update)
	defer sub.Unsubscribe()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info().Msg("Received shutdown signal, cleaning up...")
		tui.Shutdown()
	}()

	if err := tui.Run(); err != nil {
		log.Error().Err(err).Msg("Error running UI")
		os.Exit(1)
	}
	log.Info().Msg("Airwaves stopped")
}

// runHeadless blocks until interrupted. The engine is driven externally in
// this mode (remote controller, -station flag) and renders to the log.
func runHeadless(eng *engine.Engine) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	log.Info().Msg("Received shutdown signal, cleaning up...")
}

func setupLogging() {
	if *debugFlag {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)

		cacheDir, err := cache.GetCacheDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not get cache dir: %v\n", err)
			cacheDir = os.TempDir()
		}
		if err := os.MkdirAll(cacheDir, 0755); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log dir: %v\n", err)
		}
		logPath := filepath.Join(cacheDir, "debug.log")
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create log file: %v\n", err)
			logFile = os.Stderr
		}
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: logFile, TimeFormat: "15:04:05"})
		fmt.Printf("Debug log: %s\n", logPath)
		log.Info().Msgf("Starting %s v%s (debug mode)", config.AppName, config.AppVersion)
		return
	}

	if *headlessFlag {
		// Headless mode logs straight to stderr.
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"})
		return
	}

	// Avoid TUI corruption by only logging errors to /dev/null
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logFile, err := os.OpenFile(os.DevNull, os.O_WRONLY, 0644)
	if err == nil {
		log.Logger = log.Output(logFile)
	}
}
