package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/ucs-fleet/livemap/internal/api"
	"github.com/ucs-fleet/livemap/internal/config"
	"github.com/ucs-fleet/livemap/internal/engine"
	"github.com/ucs-fleet/livemap/internal/influx"
	"github.com/ucs-fleet/livemap/internal/ingest"
	"github.com/ucs-fleet/livemap/internal/logging"
	"github.com/ucs-fleet/livemap/internal/monitor"
	intOtel "github.com/ucs-fleet/livemap/internal/otel"
	"github.com/ucs-fleet/livemap/internal/render"
	"github.com/ucs-fleet/livemap/internal/stream"
	"github.com/ucs-fleet/livemap/pkg/streaming"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.0.1"
	BuildDate string = "unknown"

	AppName string = "livemap"
)

var (
	SessionStartTime = time.Now()

	SlogManager  *logging.SlogManager
	OTelProvider *intOtel.Provider

	LogFilePath string
	LogFile     *os.File
)

func loadConfig(configDir string) error {
	return config.Load(configDir)
}

// setupLogFile resolves the session log path and rotates any stale
// file from a previous run with the same timestamp.
func setupLogFile() error {
	logsDir := viper.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		if err := os.MkdirAll(logsDir, 0755); err != nil {
			return fmt.Errorf("failed to create logs dir: %w", err)
		}
	}

	LogFilePath = logging.LogFilePath(logsDir, AppName, SessionStartTime)
	if _, err := os.Stat(LogFilePath); err == nil {
		os.Rename(LogFilePath, LogFilePath+".old")
	}

	var err error
	LogFile, err = os.OpenFile(LogFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		return fmt.Errorf("failed to create/open log file: %w", err)
	}
	return nil
}

func setupOTel() *sdklog.LoggerProvider {
	otelCfg := config.GetOTelConfig()
	if !otelCfg.Enabled {
		return nil
	}
	var err error
	OTelProvider, err = intOtel.New(intOtel.Config{
		Enabled:      otelCfg.Enabled,
		ServiceName:  otelCfg.ServiceName,
		BatchTimeout: otelCfg.BatchTimeout,
		LogWriter:    LogFile,
		Endpoint:     otelCfg.Endpoint,
		Insecure:     otelCfg.Insecure,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize OTel provider: %v\n", err)
		return nil
	}
	return OTelProvider.LoggerProvider()
}

func main() {
	configDir := flag.String("config", ".", "directory containing livemap.cfg.json")
	flag.Parse()

	// Bootstrap logging to stdout until the config names a file.
	SlogManager = logging.NewSlogManager()
	SlogManager.Setup(nil, "info", nil)
	logger := SlogManager.Logger()

	if err := loadConfig(*configDir); err != nil {
		logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		logger.Info("Loaded config", "dir", *configDir)
	}

	if err := setupLogFile(); err != nil {
		logger.Error("Log file setup failed", "error", err)
		os.Exit(1)
	}

	otelLogProvider := setupOTel()
	SlogManager.SetContextProvider(func() []slog.Attr {
		return []slog.Attr{
			slog.String("session", SessionStartTime.Format("20060102_150405")),
		}
	})
	SlogManager.Setup(LogFile, viper.GetString("logLevel"), otelLogProvider)
	logger = SlogManager.Logger()
	logger.Info("Live map starting",
		"version", Version,
		"buildDate", BuildDate,
		"logFile", LogFilePath)

	// The zerolog side carries the high-rate telemetry audit trail,
	// shipped to Graylog when enabled.
	var gelfWriter io.Writer
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGelfWriter(viper.GetString("graylog.address"), AppName)
		if err != nil {
			logger.Warn("Graylog writer unavailable", "error", err)
		} else {
			gelfWriter = w
		}
	}
	auditBase := logging.SetupZerolog(LogFile, gelfWriter, viper.GetString("logLevel"))
	auditLog := logging.NewSampledLogger(auditBase)

	// Metrics sink. A failed connect falls back to the gzip backup
	// file, so the manager stays usable either way.
	var influxManager *influx.Manager
	if config.GetInfluxConfig().Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"), "influx_backup.lp.gz")
		influxManager = influx.NewManager(auditBase, backupPath)
		if err := influxManager.Connect(); err != nil {
			logger.Warn("InfluxDB unavailable, using backup writer", "error", err)
		}
	}

	apiCfg := config.GetAPIConfig()
	apiClient := api.New(apiCfg.BaseURL, apiCfg.Timeout)

	renderCfg := config.GetRenderConfig()
	broadcaster := render.New(render.Config{
		URL:    renderCfg.URL,
		Secret: renderCfg.Secret,
	}, logger)

	engineCfg := config.GetEngineConfig()
	eng, err := engine.New(
		engine.Tuning{
			PopupTimeout:     engineCfg.PopupTimeout,
			PopupInterval:    engineCfg.PopupInterval,
			TrailMinDistance: engineCfg.TrailMinDistance,
			TrailMaxAge:      engineCfg.TrailMaxAge,
			TrailMaxPoints:   engineCfg.TrailMaxPoints,
			HeadingMinMove:   engineCfg.HeadingMinMove,
			HeatmapThrottle:  engineCfg.HeatmapThrottle,
		},
		engine.Polling{
			UAV:        apiCfg.UAVPoll,
			Task:       apiCfg.TaskPoll,
			Team:       apiCfg.TeamPoll,
			Weather:    apiCfg.WeatherPoll,
			Event:      apiCfg.EventPoll,
			EventLimit: apiCfg.EventLimit,
		},
		apiClient, broadcaster, metricsSink(influxManager), logger, auditBase,
	)
	if err != nil {
		logger.Error("Engine setup failed", "error", err)
		os.Exit(1)
	}
	broadcaster.SetOnReconnect(eng.Rerender)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := broadcaster.Init(); err != nil {
		logger.Error("Display connection failed", "error", err)
		os.Exit(1)
	}

	// Handshake with the front end before any markers flow, so an
	// unattached display surfaces here instead of as silent drops.
	if err := broadcaster.StatusAndWait(streaming.StatusPayload{Time: time.Now()}); err != nil {
		logger.Warn("Display handshake not acknowledged", "error", err)
	}

	// Authenticate against the platform, retrying until the backend
	// comes up. Polling starts once a token is held.
	go func() {
		for {
			err := apiClient.Login(ctx, apiCfg.Username, apiCfg.Password)
			if err == nil {
				logger.Info("Authenticated against platform API", "baseUrl", apiCfg.BaseURL)
				eng.Start()
				return
			}
			logger.Warn("Platform login failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
		}
	}()

	streamCfg := config.GetStreamConfig()
	streamClient := stream.New(stream.Config{
		URL:              streamCfg.URL,
		Topic:            streamCfg.Topic,
		ReconnectMin:     streamCfg.ReconnectMin,
		ReconnectMax:     streamCfg.ReconnectMax,
		HandshakeTimeout: streamCfg.HandshakeTimeout,
	}, func(batch *ingest.TelemetryBatch) {
		auditLog.Debug().
			Int64("seq", batch.MsgSeqNumber).
			Int("uavs", len(batch.UAVs)).
			Msg("push batch received")
		eng.HandlePushBatch(batch)
	}, eng.SetStreamConnected, logger)

	// Initial dial retries in the background so a late gateway does
	// not block startup; once connected, reconnects are automatic.
	go func() {
		for {
			err := streamClient.Connect()
			if err == nil {
				return
			}
			logger.Warn("Push stream connect failed, retrying", "error", err)
			select {
			case <-ctx.Done():
				return
			case <-time.After(streamCfg.ReconnectMin):
			}
		}
	}()

	monitorSvc := monitor.NewService(monitor.Dependencies{
		LogManager:      SlogManager,
		Registry:        eng.Registry(),
		Influx:          influxManager,
		StreamConnected: eng.StreamConnected,
		PendingOps:      eng.PendingOps,
		StatusDir:       viper.GetString("logsDir"),
		Interval:        time.Second,
	})
	if err := monitorSvc.Start(); err != nil {
		logger.Warn("Monitor start failed", "error", err)
	}

	logger.Info("Live map running")
	<-ctx.Done()
	logger.Info("Shutting down")

	streamClient.Close()
	monitorSvc.Stop()

	// Health history since the last drain, logged once so the final
	// session log ends with the state the fleet was left in.
	if snaps := monitorSvc.Drain(); len(snaps) > 0 {
		last := snaps[len(snaps)-1]
		logger.Info("Final health snapshot",
			"collected", len(snaps),
			"vehicles", last.Stats.Total,
			"flying", last.Stats.Flying,
			"lowBattery", last.Stats.LowBattery,
			"abnormal", last.Stats.Abnormal,
			"streamConnected", last.StreamConnected,
			"pendingOps", last.PendingOps)
	}

	eng.Stop()
	broadcaster.Close()

	if influxManager != nil {
		for _, w := range influxManager.Writers {
			w.Flush()
		}
		if influxManager.Client != nil {
			influxManager.Client.Close()
		}
		if influxManager.BackupWriter != nil {
			influxManager.BackupWriter.Close()
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	SlogManager.Flush(shutdownCtx)
	if OTelProvider != nil {
		OTelProvider.Shutdown(shutdownCtx)
	}
	LogFile.Close()
}

// metricsSink avoids handing the engine a typed nil when Influx is
// disabled.
func metricsSink(m *influx.Manager) engine.MetricsSink {
	if m == nil {
		return nil
	}
	return m
}
