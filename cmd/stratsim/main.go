// Command stratsim runs the encounter planning engine: it loads authored
// timelines, projects them onto a scene presenter, and accepts planning
// commands over stdin.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/stratsim/engine/internal/config"
	"github.com/stratsim/engine/internal/dispatcher"
	"github.com/stratsim/engine/internal/handlers"
	"github.com/stratsim/engine/internal/influx"
	"github.com/stratsim/engine/internal/logging"
	"github.com/stratsim/engine/internal/monitor"
	intOtel "github.com/stratsim/engine/internal/otel"
	"github.com/stratsim/engine/internal/parser"
	"github.com/stratsim/engine/internal/scene"
	scenews "github.com/stratsim/engine/internal/scene/websocket"
	"github.com/stratsim/engine/internal/session"
	"github.com/stratsim/engine/internal/storage"
)

var (
	Version   = "0.1.0"
	BuildDate = "unknown"
)

// app holds everything the subcommands need after bootstrap.
type app struct {
	logManager *logging.Manager
	otel       *intOtel.Provider
	backend    storage.Backend
	sess       *session.Session
	dispatch   *dispatcher.Dispatcher
	monitor    *monitor.Service
	influx     *influx.Manager
	parser     *parser.Parser
	recorder   *scene.Recorder // set when no websocket presenter is configured
	wsClient   *scenews.Presenter
	logFile    *os.File
}

func main() {
	args := os.Args[1:]
	configDir := "."
	if len(args) >= 2 && args[0] == "-config" {
		configDir = args[1]
		args = args[2:]
	}

	if err := config.Load(configDir); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	a, err := bootstrap()
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup: %v\n", err)
		os.Exit(1)
	}
	defer a.shutdown()

	if len(args) == 0 {
		args = []string{"serve"}
	}

	switch strings.ToLower(args[0]) {
	case "serve":
		err = a.serve()
	case "validate":
		err = a.validate(args[1:])
	case "export":
		err = a.export(args[1:])
	case "play":
		err = a.play(args[1:])
	case "version":
		fmt.Printf("stratsim %s (built %s)\n", Version, BuildDate)
	default:
		err = fmt.Errorf("unknown subcommand %q (serve, validate, export, play, version)", args[0])
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}
}

func bootstrap() (*app, error) {
	a := &app{}

	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	logFile, err := os.OpenFile(
		filepath.Join(logsDir, "stratsim.log"),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	a.logFile = logFile

	a.otel, err = intOtel.New(intOtel.Config{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  "stratsim",
		BatchTimeout: 5 * time.Second,
		LogWriter:    logFile,
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	})
	if err != nil {
		return nil, fmt.Errorf("otel: %w", err)
	}

	a.logManager = logging.NewManager()
	a.logManager.Setup(logFile, viper.GetString("logLevel"), a.otel.LoggerProvider())
	logger := a.logManager.Logger()
	logger.Info("starting stratsim", "version", Version, "buildDate", BuildDate)

	zlog := logging.NewZerolog(logFile, viper.GetString("logLevel"))

	a.backend, err = storage.NewBackend(config.Storage(), zlog)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if err := a.backend.Init(); err != nil {
		return nil, fmt.Errorf("storage init: %w", err)
	}

	var presenter scene.Presenter
	if viper.GetBool("presenter.websocket.enabled") {
		ws := scenews.New(scenews.Config{
			URL:    viper.GetString("presenter.websocket.url"),
			Secret: viper.GetString("presenter.websocket.secret"),
		}, logger)
		if err := ws.Connect(); err != nil {
			return nil, fmt.Errorf("websocket presenter: %w", err)
		}
		a.wsClient = ws
		presenter = ws
	} else {
		a.recorder = scene.NewRecorder()
		presenter = a.recorder
	}

	pb := config.Playback()
	a.sess = session.New(presenter, session.Config{
		VariationSeed: pb.VariationSeed,
		ReplayBudget:  pb.ReplayBudget,
		ReplayStep:    pb.ReplayStep,
		TickRate:      pb.TickRate,
	}, logger)

	a.parser = parser.New(logger)

	if viper.GetBool("influx.enabled") {
		a.influx = influx.NewManager(zlog, filepath.Join(logsDir, "metrics_backup.gz"))
		if err := a.influx.Connect(); err != nil {
			logger.Warn("influx unavailable", "error", err)
		}
	}

	a.monitor = monitor.NewService(monitor.Dependencies{
		Logger:  logger,
		Session: a.sess,
		Influx:  a.influx,
	})

	a.dispatch, err = dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("dispatcher: %w", err)
	}
	handlers.NewService(handlers.Dependencies{
		Logger:  logger,
		Session: a.sess,
		Backend: a.backend,
		Parser:  a.parser,
		Monitor: a.monitor,
	}).RegisterHandlers(a.dispatch)

	return a, nil
}

func (a *app) shutdown() {
	logger := a.logManager.Logger()
	a.monitor.Stop()
	a.sess.Close()
	if a.wsClient != nil {
		if err := a.wsClient.EndSession(); err != nil {
			logger.Debug("session end not delivered", "error", err)
		}
		_ = a.wsClient.Close()
	}
	if err := a.backend.Close(); err != nil {
		logger.Warn("storage close", "error", err)
	}
	if a.influx != nil {
		a.influx.Close()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = a.logManager.Flush(ctx)
	_ = a.otel.Shutdown(ctx)
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}

// serve runs the tick loop and reads commands from stdin, one per line:
// the command name followed by space-separated arguments.
func (a *app) serve() error {
	logger := a.logManager.Logger()
	a.monitor.Start(10 * time.Second)

	stop := make(chan struct{})
	go func() {
		ticker := time.NewTicker(config.Playback().TickRate)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if a.sess.Loaded() {
					if _, err := a.dispatch.Dispatch(dispatcher.Event{
						Command:   handlers.CmdTick,
						Timestamp: time.Now(),
					}); err != nil {
						logger.Warn("tick failed", "error", err)
					}
				}
			}
		}
	}()
	defer close(stop)

	logger.Info("ready, reading commands from stdin")
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if strings.EqualFold(fields[0], "quit") || strings.EqualFold(fields[0], "exit") {
			break
		}
		result, err := a.dispatch.Dispatch(dispatcher.Event{
			Command:   fields[0],
			Args:      fields[1:],
			Timestamp: time.Now(),
		})
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		fmt.Printf("%v\n", result)
	}
	return scanner.Err()
}
