package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/droidstage/droidstage/internal/adb"
	"github.com/droidstage/droidstage/internal/api"
	"github.com/droidstage/droidstage/internal/automation"
	"github.com/droidstage/droidstage/internal/device"
	"github.com/droidstage/droidstage/internal/infrastructure/config"
	"github.com/droidstage/droidstage/internal/infrastructure/influxdb"
	"github.com/droidstage/droidstage/internal/infrastructure/logging"
	"github.com/droidstage/droidstage/internal/infrastructure/mqtt"
	"github.com/droidstage/droidstage/internal/vision"
)

var (
	runDryRun   bool
	runDevices  []string
	runDebugDir string
	runTimeout  time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the automation loop against connected devices",
	Long: `Run discovers connected devices, starts one polling worker per
eligible device, and drives each through the configured stages until
its flow finishes, its deadline expires, or the process receives an
interrupt.

The command exits once every worker has reported a terminal state and
prints a per-device summary.`,
	RunE: runAutomation,
}

func init() {
	rootCmd.AddCommand(runCmd)
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"log actions without sending them to devices")
	runCmd.Flags().StringSliceVar(&runDevices, "devices", nil,
		"restrict the run to these serials (default: all eligible devices)")
	runCmd.Flags().StringVar(&runDebugDir, "debug-artifacts", "",
		"write annotated detection screenshots to this directory")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0,
		"per-device run budget, e.g. 5m (overrides worker.device_timeout_s)")
}

func runAutomation(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("dry-run") {
		cfg.Worker.DryRun = runDryRun
	}
	if cmd.Flags().Changed("devices") {
		cfg.Worker.Devices = runDevices
	}
	if cmd.Flags().Changed("debug-artifacts") {
		cfg.Detection.DebugDir = runDebugDir
	}
	if cmd.Flags().Changed("timeout") {
		if runTimeout < time.Second {
			return fmt.Errorf("--timeout must be at least 1s, got %v", runTimeout)
		}
		cfg.Worker.DeviceTimeoutS = int(runTimeout / time.Second)
	}

	runID := "run-" + uuid.NewString()[:8]

	log := logging.New(cfg.Logging, build.Version)
	log.Info("starting droidstage",
		"run_id", runID,
		"version", build.Version,
		"commit", build.Commit,
		"stages", len(cfg.Stages),
		"max_workers", cfg.Worker.MaxWorkers,
		"dry_run", cfg.Worker.DryRun,
	)

	controller, err := adb.New(cfg.ADB, log)
	if err != nil {
		return fmt.Errorf("initialising adb: %w", err)
	}

	templates, err := vision.NewStore(cfg.Detection.TemplateDir, log)
	if err != nil {
		return fmt.Errorf("loading templates: %w", err)
	}
	defer func() {
		if closeErr := templates.Close(); closeErr != nil {
			log.Error("error closing template store", "error", closeErr)
		}
	}()

	registry := device.NewRegistry()
	registry.SetLogger(log)

	matcher := vision.NCCMatcher{}
	detector := automation.NewStageDetector(cfg, templates, matcher, log)

	obs, err := startObservability(ctx, cfg, registry, log)
	if err != nil {
		return err
	}
	defer obs.close(log)

	// Verify all started surfaces are healthy before launching workers
	if err := healthCheck(ctx, obs, log); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	sink := runStamp{runID: runID, next: automation.MultiSink(obs.sinks...)}
	executor := automation.NewActionExecutor(cfg, controller, templates, matcher, sink, log)
	scheduler := automation.NewScheduler(cfg, controller, detector, executor, registry, sink, log)

	start := time.Now()
	results, err := scheduler.RunAll(ctx)
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	log.Info("run complete",
		"run_id", runID,
		"devices", len(results),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeRunReport(cmd.OutOrStdout(), results)
	return nil
}

// writeRunReport prints the per-device summary table.
func writeRunReport(w io.Writer, results []automation.WorkerResult) {
	fmt.Fprintf(w, "\n%-24s %-10s %11s %11s %10s  %s\n",
		"DEVICE", "STATE", "ITERATIONS", "DETECTIONS", "DURATION", "ERROR")
	for _, res := range results {
		errText := "-"
		if res.Err != nil {
			errText = res.Err.Error()
		}
		fmt.Fprintf(w, "%-24s %-10s %11d %11d %10s  %s\n",
			res.Serial, res.State, res.Iterations, res.Detections,
			res.Duration.Round(time.Millisecond), errText)
	}
}

// observability bundles the optional event surfaces for one run. Any
// field may be nil when the corresponding surface is disabled.
type observability struct {
	sinks        []automation.EventSink
	server       *api.Server
	mqttSink     *mqttSink
	mqttClient   *mqtt.Client
	influxClient *influxdb.Client
}

// startObservability brings up the enabled observability surfaces and
// collects an event sink for each. A telemetry sink that fails to
// connect is logged and skipped so the run proceeds without it; only an
// API server failure aborts startup.
func startObservability(ctx context.Context, cfg *config.Config, registry *device.Registry, log *logging.Logger) (*observability, error) {
	obs := &observability{}

	if cfg.API.Enabled {
		server, err := api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log,
			Registry: registry,
			Version:  build.Version,
		})
		if err != nil {
			return nil, fmt.Errorf("initialising api server: %w", err)
		}
		if err := server.Start(ctx); err != nil {
			return nil, fmt.Errorf("starting api server: %w", err)
		}
		obs.server = server
		obs.sinks = append(obs.sinks, &hubSink{hub: server.Hub()})
		log.Info("api server listening",
			"addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("api server disabled")
	}

	if cfg.MQTT.Enabled {
		client, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			log.Warn("MQTT unavailable, running without it", "error", err)
		} else {
			client.SetOnConnect(func() {
				log.Info("MQTT reconnected")
			})
			client.SetOnDisconnect(func(err error) {
				log.Warn("MQTT disconnected", "error", err)
			})
			obs.mqttClient = client
			obs.mqttSink = newMQTTSink(client, log)
			obs.sinks = append(obs.sinks, obs.mqttSink)
			log.Info("MQTT connected",
				"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
				"client_id", cfg.MQTT.Broker.ClientID,
			)
		}
	} else {
		log.Info("MQTT disabled")
	}

	if cfg.InfluxDB.Enabled {
		client, err := influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			log.Warn("InfluxDB unavailable, running without it", "error", err)
		} else {
			client.SetOnError(func(err error) {
				log.Error("InfluxDB write error", "error", err)
			})
			obs.influxClient = client
			obs.sinks = append(obs.sinks, &influxSink{client: client})
			log.Info("InfluxDB connected",
				"url", cfg.InfluxDB.URL,
				"org", cfg.InfluxDB.Org,
				"bucket", cfg.InfluxDB.Bucket,
			)
		}
	} else {
		log.Info("InfluxDB disabled")
	}

	return obs, nil
}

// close shuts the surfaces down in reverse start order.
func (o *observability) close(log *logging.Logger) {
	if o.influxClient != nil {
		log.Info("closing InfluxDB connection")
		if err := o.influxClient.Close(); err != nil {
			log.Error("error closing InfluxDB", "error", err)
		}
		o.influxClient = nil
	}
	if o.mqttSink != nil {
		o.mqttSink.Close()
		o.mqttSink = nil
	}
	if o.mqttClient != nil {
		log.Info("disconnecting from MQTT")
		if err := o.mqttClient.Close(); err != nil {
			log.Error("error closing MQTT", "error", err)
		}
		o.mqttClient = nil
	}
	if o.server != nil {
		log.Info("stopping api server")
		if err := o.server.Close(); err != nil {
			log.Error("error stopping api server", "error", err)
		}
		o.server = nil
	}
}

// healthCheck verifies the started observability surfaces respond. An
// unhealthy API server aborts the run; unhealthy telemetry sinks only
// warn, since they reconnect in the background and must not gate the
// automation itself.
func healthCheck(ctx context.Context, obs *observability, log *logging.Logger) error {
	if obs.server != nil {
		if err := obs.server.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}
	if obs.mqttClient != nil {
		if err := obs.mqttClient.HealthCheck(ctx); err != nil {
			log.Warn("MQTT health check failed", "error", err)
		}
	}
	if obs.influxClient != nil {
		if err := obs.influxClient.HealthCheck(ctx); err != nil {
			log.Warn("InfluxDB health check failed", "error", err)
		}
	}
	return nil
}
