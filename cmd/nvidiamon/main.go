package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/nvidiamon/internal/alert"
	"codeberg.org/mutker/nvidiamon/internal/config"
	"codeberg.org/mutker/nvidiamon/internal/errors"
	"codeberg.org/mutker/nvidiamon/internal/exporter"
	"codeberg.org/mutker/nvidiamon/internal/gpu"
	"codeberg.org/mutker/nvidiamon/internal/history"
	"codeberg.org/mutker/nvidiamon/internal/logger"
	"codeberg.org/mutker/nvidiamon/internal/monitor"
	"codeberg.org/mutker/nvidiamon/internal/pid"
	"codeberg.org/mutker/nvidiamon/internal/proc"
	"codeberg.org/mutker/nvidiamon/internal/recorder"
)

const (
	shutdownTimeout = 5 * time.Second
	recordTimeout   = 2 * time.Second
)

// player starts empty and is armed by applySound whenever a settings set
// with sound enabled takes effect, so the daemon never has to restart to
// switch sound on.
var (
	cfg    *config.Config
	player = &alert.WavPlayer{}
)

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	// By the time run returns its deferred cleanup has executed, so
	// exiting through Fatal here loses nothing.
	if err := run(ctx); err != nil {
		var coded errors.Error
		if errors.As(err, &coded) {
			logger.FatalWithCode(coded).Msg("nvidiamon failed")
		}
		logger.Fatal().Err(err).Msg("nvidiamon failed")
	}
}

func run(ctx context.Context) error {
	if err := pid.Write(); err != nil {
		return err
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("Failed to remove PID file")
		}
	}()

	caps := proc.NewSystemCapabilities()

	manager, err := gpu.New(caps)
	if err != nil {
		return err
	}
	defer func() {
		if err := manager.Shutdown(); err != nil {
			logger.Error().Err(err).Msg("NVML shutdown failed")
		}
	}()

	for i := 0; i < manager.DeviceCount(); i++ {
		logger.Info().Int("device", i).Str("name", manager.DeviceName(i)).Msg("Detected GPU")
	}

	if cfg.Sound && !applySound(cfg.SoundFile) {
		cfg.Sound = false
	}

	store := history.New(manager.DeviceCount())
	alerts := alert.NewEngine(manager.DeviceCount(), alert.NewDesktopNotifier(), player)

	collector, err := recorder.NewService(recorderConfig(), logger.New())
	if err != nil {
		return err
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Error().Err(err).Msg("Recorder close failed")
		}
	}()

	mon, err := monitor.New(manager, store, alerts,
		time.Duration(cfg.Interval)*time.Second, cfg.Settings())
	if err != nil {
		return err
	}

	mon.Subscribe(logTick)
	mon.Subscribe(func(t monitor.Tick) {
		recordCtx, cancelRecord := context.WithTimeout(context.Background(), recordTimeout)
		defer cancelRecord()

		if err := collector.Record(recordCtx, t.Time, t.Samples); err != nil {
			logger.Warn().Err(err).Msg("Sample recording failed")
		}
	})

	var server *exporter.Server
	if cfg.Listen != "" {
		server, err = exporter.NewServer(cfg.Listen, mon, store, caps)
		if err != nil {
			return err
		}
		mon.Subscribe(server.Observe)

		go func() {
			if err := server.ListenAndServe(); err != nil {
				logger.Error().Err(err).Msg("Exporter failed")
			}
		}()
	}

	watchSettings(mon)

	if err := mon.Run(ctx); err != nil {
		return err
	}

	if server != nil {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancelShutdown()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("Exporter shutdown failed")
		}
	}

	logger.Info().Msg("Exiting...")

	return nil
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

// applySound makes sure the player carries a clip whenever sound is
// requested: the first enable loads one, a changed path swaps clips, and
// a failed swap keeps the previous clip. A missing or unreadable asset
// never fails startup; the return value reports whether sound can stay
// enabled.
func applySound(configured string) bool {
	resolved := alert.ResolveSoundFile(configured)
	if resolved == "" {
		if player.Loaded() {
			logger.Warn().Str("configured", configured).Msg("Alert sound not found, keeping previous")
			return true
		}
		logger.Warn().Msg("No alert sound found, sound disabled")

		return false
	}

	if resolved == player.Path() {
		return true
	}

	if err := player.Reload(resolved); err != nil {
		if player.Loaded() {
			logger.Warn().Err(err).Str("path", resolved).Msg("Failed to load alert sound, keeping previous")
			return true
		}
		logger.Warn().Err(err).Str("path", resolved).Msg("Failed to load alert sound, sound disabled")

		return false
	}

	logger.Debug().Str("path", resolved).Msg("Alert sound loaded")

	return true
}

// watchSettings applies configuration file changes at the next tick
// boundary. Invalid updates keep the previous settings. Enabling sound in
// the file loads a clip on the spot, so sound works without a restart.
func watchSettings(mon *monitor.Engine) {
	watching := cfg.Watch(func(next config.Config) {
		s := next.Settings()
		if s.Sound && !applySound(next.SoundFile) {
			s.Sound = false
		}

		if err := mon.UpdateSettings(s); err != nil {
			logger.Warn().Err(err).Msg("Ignoring configuration update")
		}
	})

	if watching {
		logger.Debug().Msg("Watching configuration file for changes")
	}
}

func recorderConfig() recorder.Config {
	rc := recorder.DefaultConfig()
	rc.Enabled = cfg.Record
	if cfg.Database != "" {
		rc.DBPath = cfg.Database
	}

	return rc
}

func logTick(t monitor.Tick) {
	for i, s := range t.Samples {
		if cfg.Debug {
			event := logger.Debug().
				Uint64("seq", t.Seq).
				Int("device", s.Device).
				Str("name", s.Name).
				Float64("utilization", s.Utilization).
				Float64("memory_used", s.MemoryUsed).
				Float64("memory_total", s.MemoryTotal).
				Float64("memory_utilization", s.MemoryUtilization).
				Float64("memory_activity", s.MemoryActivity).
				Float64("temperature", s.Temperature).
				Float64("power_draw", s.PowerDraw).
				Float64("power_limit", s.PowerLimit).
				Float64("fan_speed", s.FanSpeed).
				Float64("clock_mhz", s.ClockSpeed).
				Int("processes", len(s.Processes))
			if top := t.Rankings[i][0]; !proc.IsPlaceholder(top) {
				event = event.Str("top_process", proc.DisplayName(top.Name)).
					Float64("top_process_memory", top.MemoryUsed)
			}
			event.Msg("")
		} else if cfg.Verbose {
			logger.Info().
				Int("device", s.Device).
				Float64("utilization", s.Utilization).
				Float64("memory_used", s.MemoryUsed).
				Float64("memory_utilization", s.MemoryUtilization).
				Float64("temperature", s.Temperature).
				Float64("power_draw", s.PowerDraw).
				Float64("fan_speed", s.FanSpeed).
				Int("processes", len(s.Processes)).
				Msg("")
		}
	}
}
