// IDRO: Intelligent Disaster Response Orchestrator
//
// Responder console for claiming rescue missions and reviewing the
// resource demand of relief camps.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/idro/idro/internal/apiclient"
	"github.com/idro/idro/internal/config"
	"github.com/idro/idro/internal/geocode"
	"github.com/idro/idro/internal/poller"
	"github.com/idro/idro/internal/services/demand"
	"github.com/idro/idro/internal/services/impact"
	"github.com/idro/idro/internal/services/missions"
	"github.com/idro/idro/internal/services/triage"
	"github.com/idro/idro/internal/tui"
)

// Build information (set via ldflags)
var (
	Version   = "dev"
	BuildTime = "unknown"
)

type options struct {
	configPath string
	debug      bool
	assignID   string
	impactID   string
	submitPath string
}

func main() {
	var opts options
	flag.StringVar(&opts.configPath, "config", "", "Path to configuration file")
	flag.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	flag.StringVar(&opts.assignID, "assign", "", "Accept the mission with this id and exit")
	flag.StringVar(&opts.impactID, "impact", "", "Print the impact summary of this mission as JSON and exit")
	flag.StringVar(&opts.submitPath, "submit", "", "Submit a field report from a JSON file and exit")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("IDRO version %s (built %s)\n", Version, BuildTime)
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigChan
		slog.Info("received shutdown signal", "signal", sig)
		cancel()

		// Force exit after timeout
		time.AfterFunc(10*time.Second, func() {
			slog.Error("forced shutdown after timeout")
			os.Exit(1)
		})
	}()

	if err := run(ctx, opts); err != nil {
		fmt.Fprintln(os.Stderr, "idro:", err)
		slog.Error("application error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options) error {
	cfg, cfgPath, err := config.Load(opts.configPath, true)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	interactive := opts.assignID == "" && opts.impactID == "" && opts.submitPath == ""
	logger, closeLog, err := setupLogging(cfg, opts.debug, interactive)
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	logger.Info("IDRO console starting",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cfgPath,
		"api", cfg.API.BaseURL,
		"team", cfg.Responder.TeamName,
	)

	client := apiclient.New(cfg.API.BaseURL, cfg.API.Timeout.Duration, logger)

	var ml demand.Predictor
	if cfg.ML.Enabled {
		ml = demand.NewMLClient(cfg.ML.URL, cfg.ML.Timeout.Duration)
	}
	estimator := demand.NewEstimator(cfg.Estimator, ml, logger)
	impacts := impact.NewService(client, estimator, logger)

	switch {
	case opts.submitPath != "":
		return submitReport(ctx, client, opts.submitPath, logger)
	case opts.impactID != "":
		return printImpact(ctx, client, impacts, opts.impactID)
	case opts.assignID != "":
		assigner := missions.NewAssigner(client, nil, logger)
		return assignMission(ctx, client, assigner, opts.assignID, cfg.Responder.TeamName)
	}

	p := poller.New(client, poller.Options{
		AlertsInterval: cfg.Sync.AlertsInterval.Duration,
		CampsInterval:  cfg.Sync.CampsInterval.Duration,
		Timeout:        cfg.API.Timeout.Duration,
		Logger:         logger,
	})
	p.Start(ctx)
	defer p.Stop()

	deps := tui.Deps{
		Snapshots: p,
		Assigner:  missions.NewAssigner(client, p, logger),
		Resolver:  client,
		Impact:    impacts,
		Stats:     client,
		Responder: cfg.Responder.TeamName,
		Timeout:   cfg.API.Timeout.Duration,
		Logger:    logger,
	}
	if cfg.Geocode.Enabled {
		maps, err := geocode.NewMapsClient(cfg.Geocode.APIKey)
		if err != nil {
			logger.Warn("reverse geocoding disabled", "error", err)
		} else {
			deps.Locations = geocode.NewResolver(maps, cfg.Geocode.Timeout.Duration, logger)
		}
	}

	tui.Version = Version
	logger.Info("starting TUI", "team", cfg.Responder.TeamName)

	if err := tui.Run(ctx, deps); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	logger.Info("IDRO console shutdown complete")
	return nil
}

// setupLogging builds the process logger. The console owns the terminal, so
// without a log file interactive runs discard their logs.
func setupLogging(cfg *config.Config, debug, interactive bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	} else {
		switch cfg.Logging.Level {
		case config.LogLevelDebug:
			level = slog.LevelDebug
		case config.LogLevelWarn:
			level = slog.LevelWarn
		case config.LogLevelError:
			level = slog.LevelError
		}
	}
	handlerOpts := &slog.HandlerOptions{Level: level}

	logPath, err := config.EnsureLogDir(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	if logPath != "" {
		logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0640)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}
		return slog.New(slog.NewJSONHandler(logFile, handlerOpts)), func() { logFile.Close() }, nil
	}

	var out io.Writer = os.Stderr
	if interactive {
		out = io.Discard
	}
	return slog.New(slog.NewTextHandler(out, handlerOpts)), func() {}, nil
}

// stdinConfirmer asks the operator on the terminal.
func stdinConfirmer(in io.Reader, out io.Writer) missions.ConfirmFunc {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, prompt string) (bool, error) {
		fmt.Fprintf(out, "%s\n\nDeploy anyway? [y/N] ", prompt)
		line, err := reader.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return false, fmt.Errorf("reading answer: %w", err)
		}
		answer := strings.ToLower(strings.TrimSpace(line))
		return answer == "y" || answer == "yes", nil
	}
}

func assignMission(ctx context.Context, client *apiclient.Client, assigner *missions.Assigner, id, team string) error {
	d, err := client.GetAlert(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching mission %s: %w", id, err)
	}

	updated, err := assigner.Accept(ctx, *d, team, stdinConfirmer(os.Stdin, os.Stdout))
	switch {
	case errors.Is(err, missions.ErrDeclined):
		fmt.Println("Deployment cancelled.")
		return nil
	case err != nil:
		fmt.Println(tui.MissionUnavailable)
		return err
	}

	fmt.Printf("Mission accepted: %s %s (%s)\n", updated.Type, updated.Location, updated.ResponderName)
	return nil
}

func printImpact(ctx context.Context, client *apiclient.Client, impacts *impact.Service, id string) error {
	d, err := client.GetAlert(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching mission %s: %w", id, err)
	}
	camps, err := client.CampsByAlert(ctx, id)
	if err != nil {
		return fmt.Errorf("fetching camps for %s: %w", id, err)
	}

	summary, err := impacts.Build(ctx, *d, camps)
	if err != nil {
		return fmt.Errorf("building impact summary: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(summary)
}

func submitReport(ctx context.Context, client *apiclient.Client, path string, logger *slog.Logger) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading report: %w", err)
	}

	var draft triage.ReportDraft
	if err := json.Unmarshal(data, &draft); err != nil {
		return fmt.Errorf("parsing report %s: %w", path, err)
	}

	res, err := triage.NewSubmitter(client, logger).Submit(ctx, draft)
	if err != nil {
		var se *triage.SubmitError
		if errors.As(err, &se) && se.AlertID != "" {
			fmt.Printf("Alert %s stored; retry with \"alertId\": %q to attach the remaining camps.\n", se.AlertID, se.AlertID)
		}
		return err
	}

	fmt.Printf("Report filed: %s at %s with %d camp(s)\n", res.Alert.ID, res.Alert.Location, len(res.Camps))
	return nil
}
