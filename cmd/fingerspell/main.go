// Command fingerspell runs the fingerspelling recognizer: the camera sampler,
// the browser UI server and the optional event publishers and tray menu.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/classifier"
	"github.com/ayusman/fingerspell/internal/config"
	"github.com/ayusman/fingerspell/internal/detector"
	"github.com/ayusman/fingerspell/internal/letter"
	"github.com/ayusman/fingerspell/internal/observe"
	"github.com/ayusman/fingerspell/internal/plugin"
	"github.com/ayusman/fingerspell/internal/publish"
	"github.com/ayusman/fingerspell/internal/server"
	"github.com/ayusman/fingerspell/internal/store"
	"github.com/ayusman/fingerspell/internal/tray"
)

var version = "dev"

func main() {
	configPath := flag.String("config", os.Getenv("FINGERSPELL_CONFIG"), "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "fingerspell: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	level, err := config.ParseLogLevel(cfg.Telemetry.LogLevel)
	if err != nil {
		return err
	}
	log := observe.NewLogger(os.Stderr, cfg.Telemetry.LogFormat, level)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, metricsHandler, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    cfg.Telemetry.ServiceName,
		ServiceVersion: version,
		Metrics:        cfg.Telemetry.MetricsEnabled,
		OTLPEndpoint:   cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure:   cfg.Telemetry.OTLPInsecure,
	})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTelemetry(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", slog.Any("error", err))
		}
	}()
	metrics := observe.DefaultMetrics()

	dataDir, err := ensureDataDir()
	if err != nil {
		return err
	}

	dbPath := cfg.Store.Path
	if dbPath == "" {
		dbPath = filepath.Join(dataDir, "fingerspell.db")
	}
	st, err := store.New(dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	log.Info("store opened", slog.String("path", dbPath))

	thresholds, err := cfg.Stabilizer.ThresholdSet()
	if err != nil {
		return err
	}

	matcher := classifier.NewMatcher()
	cls, err := newClassifier(cfg.Classifier, matcher)
	if err != nil {
		return err
	}
	camera := newCamera(cfg)

	fanout := publish.NewFanout(log, metrics)
	defer fanout.Close()
	var controls []controlSource

	if cfg.Bus.Enabled {
		servers := cfg.Bus.Servers
		if cfg.Bus.Embedded {
			embedded, err := publish.StartEmbedded(cfg.Bus.EmbeddedPort, log)
			if err != nil {
				return fmt.Errorf("start embedded nats: %w", err)
			}
			defer embedded.Shutdown()
			servers = []string{embedded.ClientURL()}
		}
		nc, err := publish.NewNATS(publish.NATSConfig{
			Servers:        servers,
			SubjectPrefix:  cfg.Bus.SubjectPrefix,
			Username:       cfg.Bus.Username,
			Password:       cfg.Bus.Password,
			Token:          cfg.Bus.Token,
			ConnectTimeout: time.Duration(cfg.Bus.ConnectTimeout) * time.Millisecond,
		}, log)
		if err != nil {
			log.Error("nats unavailable, events will not be published there", slog.Any("error", err))
		} else {
			fanout.Add(nc)
			controls = append(controls, nc)
		}
	}

	if cfg.MQTT.Enabled {
		mc, err := publish.NewMQTT(publish.MQTTConfig{
			Broker:      cfg.MQTT.Broker,
			ClientID:    cfg.MQTT.ClientID,
			TopicPrefix: cfg.MQTT.TopicPrefix,
			QoS:         byte(cfg.MQTT.QoS),
			Username:    cfg.MQTT.Username,
			Password:    cfg.MQTT.Password,
		}, log)
		if err != nil {
			log.Error("mqtt unavailable, events will not be published there", slog.Any("error", err))
		} else {
			fanout.Add(mc)
			controls = append(controls, mc)
		}
	}

	pluginDir := cfg.Plugins.Directory
	if pluginDir == "" {
		pluginDir = findDir("plugins", filepath.Join(dataDir, "plugins"))
	}
	plugins := plugin.NewManager(pluginDir, log)
	if err := plugins.Discover(); err != nil {
		log.Warn("plugin discovery failed", slog.String("dir", pluginDir), slog.Any("error", err))
	}
	dispatcher := plugin.NewDispatcher(st.Bindings(), plugins,
		plugin.NewExecutor(time.Duration(cfg.Plugins.TimeoutMS)*time.Millisecond), log)
	defer dispatcher.Wait()

	appCfg := app.Config{
		Camera:       camera,
		Classifier:   cls,
		Thresholds:   thresholds,
		SpaceLiteral: cfg.Stabilizer.SpaceLiteral,
		Period:       cfg.Sampler.Period(),
		FPSWindow:    cfg.Sampler.FPSWindow,
		Store:        st,
		Matcher:      matcher,
		Dispatcher:   dispatcher,
		Metrics:      metrics,
		Logger:       log,
	}
	if fanout.Len() > 0 {
		appCfg.Publisher = fanout
	}
	recognizer := app.New(appCfg)
	defer recognizer.Close(context.WithoutCancel(ctx))

	if err := recognizer.LoadTemplates(ctx); err != nil {
		log.Warn("failed to load letter templates", slog.Any("error", err))
	}

	if cfg.Sampler.AutoStart {
		if err := recognizer.Start(ctx); err != nil {
			if !errors.Is(err, capture.ErrCameraUnavailable) {
				return err
			}
			log.Error("camera unavailable, start the sampler from the UI once it is connected", slog.Any("error", err))
		}
	}

	staticDir := cfg.HTTP.StaticDir
	if staticDir == "" {
		staticDir = findDir("web", filepath.Join(dataDir, "web"))
	}
	srv := server.New(server.Config{
		StaticDir:      staticDir,
		Store:          st,
		App:            recognizer,
		Reloader:       recognizer,
		Plugins:        plugins,
		Metrics:        metrics,
		MetricsHandler: metricsHandler,
		Logger:         log,
	})

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	addr := net.JoinHostPort(cfg.HTTP.Bind, strconv.Itoa(cfg.HTTP.Port))
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.ListenAndServe(gctx, addr)
	})
	for _, c := range controls {
		g.Go(func() error {
			if err := c.SubscribeControl(gctx, recognizer.Control); err != nil {
				log.Error("control subscription failed", slog.String("publisher", c.Name()), slog.Any("error", err))
			}
			return nil
		})
	}

	if cfg.Tray.Enabled {
		t := newTray(recognizer, "http://"+addr, cancel, log)
		go func() {
			<-gctx.Done()
			t.Quit()
		}()
		t.Run()
	}

	err = g.Wait()
	log.Info("shutting down")
	return err
}

// controlSource is a publisher that also accepts remote commands.
type controlSource interface {
	Name() string
	SubscribeControl(ctx context.Context, handler publish.ControlHandler) error
}

func newClassifier(cfg config.ClassifierConfig, matcher *classifier.Matcher) (classifier.Classifier, error) {
	pre := classifier.NewPreprocessor(cfg.InputSize, cfg.Mirror)

	switch cfg.Mode {
	case config.ClassifierRemote:
		return classifier.NewRemote(classifier.RemoteConfig{
			Endpoint: cfg.Endpoint,
			Timeout:  cfg.Timeout(),
		}, pre)
	case config.ClassifierTemplate:
		det, err := detector.NewMediaPipeDetector(detector.Config{
			ScriptPath:    cfg.MediaPipeScript,
			PythonPath:    cfg.PythonPath,
			MaxHands:      1,
			MinConfidence: cfg.MinConfidence,
		})
		if err != nil {
			return nil, fmt.Errorf("template classifier: %w", err)
		}
		return classifier.NewTemplate(det, matcher, pre), nil
	case config.ClassifierMock:
		indices := make([]int, 0, len(cfg.Script))
		for _, s := range cfg.Script {
			l, err := letter.Parse(s)
			if err != nil {
				return nil, fmt.Errorf("mock classifier script: %w", err)
			}
			indices = append(indices, letter.Index(l))
		}
		if len(indices) == 0 {
			indices = []int{letter.Index(letter.Nothing)}
		}
		return classifier.NewScriptedIndices(indices, true), nil
	}
	return nil, fmt.Errorf("unknown classifier mode %q", cfg.Mode)
}

// newCamera opens the configured device, or a synthetic frame source when
// the classifier is mocked.
func newCamera(cfg config.Config) capture.Camera {
	if cfg.Classifier.Mode == config.ClassifierMock {
		return capture.NewMockCamera(nil, true)
	}
	return capture.NewCamera(capture.Config{
		DeviceID: cfg.Camera.DeviceID,
		Size:     cfg.Camera.Size,
		FPS:      cfg.Camera.FPS,
	})
}

func newTray(a *app.App, uiURL string, quit func(), log *slog.Logger) *tray.Tray {
	t := tray.New()
	ctx := context.Background()
	decide := func(name string) func() {
		return func() {
			if err := a.Control(ctx, name); err != nil {
				log.Debug("tray command ignored", slog.String("command", name), slog.Any("error", err))
			}
		}
	}
	t.OnToggle(a.SetEnabled)
	t.OnConfirm(decide(app.CommandConfirm))
	t.OnReject(decide(app.CommandReject))
	t.OnReset(decide(app.CommandResetWord))
	t.OnOpenUI(func() {
		if err := openBrowser(uiURL); err != nil {
			log.Warn("failed to open browser", slog.Any("error", err))
		}
	})
	t.OnQuit(quit)
	a.AddListener(t.Update)
	return t
}

func openBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}

// ensureDataDir returns ~/.fingerspell, creating it if needed.
func ensureDataDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	dir := filepath.Join(home, ".fingerspell")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}

// findDir returns the first existing directory among name relative to the
// working directory, its parents and fallback.
func findDir(name, fallback string) string {
	for _, p := range []string{name, filepath.Join("..", name), filepath.Join("..", "..", name), fallback} {
		if info, err := os.Stat(p); err == nil && info.IsDir() {
			if abs, err := filepath.Abs(p); err == nil {
				return abs
			}
			return p
		}
	}
	return ""
}
