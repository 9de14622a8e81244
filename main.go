package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"taskrunner/pkg/channels"
	_ "taskrunner/pkg/channels/autoload"
	"taskrunner/pkg/config"
	"taskrunner/pkg/gateway"
	"taskrunner/pkg/handler"
	"taskrunner/pkg/llm"
	_ "taskrunner/pkg/llm/autoload"
	"taskrunner/pkg/monitor"
	"taskrunner/pkg/sandbox"
	"taskrunner/pkg/task"
	"taskrunner/pkg/tools"
	osworker "taskrunner/pkg/tools/os"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	configPath := pflag.StringP("config", "c", "config.json", "application config file")
	systemPath := pflag.StringP("system", "s", "system.json", "system config file (optional)")
	root := pflag.StringP("root", "r", "", "sandbox root, overrides sandbox_root")
	port := pflag.IntP("port", "p", 0, "web channel port, overrides channels.web.port")
	pflag.Parse()

	if err := run(*configPath, *systemPath, *root, *port); err != nil {
		slog.Error("Fatal", "error", err)
		os.Exit(1)
	}
}

func run(configPath, systemPath, root string, port int) error {
	sysCfg := config.LoadSystemConfig(systemPath)
	monitor.SetupSlog(sysCfg.LogLevel)

	cfg, err := loadAppConfig(configPath, root)
	if err != nil {
		return err
	}

	sb, err := sandbox.New(cfg.SandboxRoot)
	if err != nil {
		return fmt.Errorf("sandbox: %w", err)
	}
	monitor.PrintBanner(os.Stdout, sb.Root())

	// --- 1. Inference ---
	model, err := llm.NewFromConfig(cfg.LLM, sysCfg)
	if err != nil {
		if errors.Is(err, llm.ErrNotConfigured) {
			slog.Warn("No inference provider configured; image and embedding tasks will fail")
		} else {
			slog.Warn("Failed to init inference client; image and embedding tasks will fail", "error", err)
		}
		model = nil
	}

	// --- 2. Handlers ---
	registry, err := handler.NewRegistry(handler.Deps{
		Sandbox:    sb,
		Runner:     osworker.NewOSWorker(sb.Root()),
		Downloader: tools.NewHTTPDownloader(time.Duration(sysCfg.DownloadTimeoutMs) * time.Millisecond),
		Model:      model,
		Datagen:    cfg.Datagen,
		Formatter:  cfg.Formatter,
	})
	if err != nil {
		return fmt.Errorf("registry: %w", err)
	}
	slog.Info("Task handlers registered", "count", registry.Len())

	// --- 3. Channels ---
	chCfgs, err := channelConfigs(cfg.Channels, port)
	if err != nil {
		return err
	}
	loaded := channels.LoadFromConfig(chCfgs, sysCfg)
	if len(loaded) == 0 {
		return errors.New("no channel could be started")
	}

	// --- 4. Gateway ---
	gw, err := gateway.NewGatewayBuilder().
		WithSystemConfig(sysCfg).
		WithMonitor(monitor.NewCLIMonitor()).
		WithEngine(task.NewDispatcher(registry)).
		WithReader(task.NewReader(sb)).
		WithChannel(loaded...).
		Build()
	if err != nil {
		return fmt.Errorf("failed to build gateway: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// system.json is reloaded live: log level and task deadline.
	reload := config.WatchConfig(ctx, config.DefaultDebounce, systemPath)
	go func() {
		for range reload {
			next := config.LoadSystemConfig(systemPath)
			monitor.SetLevel(next.LogLevel)
			gw.WithSystemConfig(next)
			slog.Info("System config reloaded", "log_level", next.LogLevel, "task_timeout_ms", next.TaskTimeoutMs)
		}
	}()

	<-ctx.Done()
	slog.Info("Received shutdown signal. Stopping services...")
	gw.StopAll()
	slog.Info("Bye!")
	return nil
}

// loadAppConfig reads config.json and applies --root before validating.
// With --root the file becomes optional.
func loadAppConfig(path, root string) (*config.Config, error) {
	var cfg *config.Config
	if _, err := os.Stat(path); root != "" && errors.Is(err, os.ErrNotExist) {
		cfg = config.DefaultConfig()
	} else {
		cfg, err = config.ReadAppConfig(path)
		if err != nil {
			return nil, err
		}
	}
	if root != "" {
		cfg.SandboxRoot = root
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// channelConfigs applies --port and enables the web channel when nothing
// else is configured.
func channelConfigs(in map[string]jsoniter.RawMessage, port int) (map[string]jsoniter.RawMessage, error) {
	out := make(map[string]jsoniter.RawMessage, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	if len(out) == 0 {
		out["web"] = jsoniter.RawMessage(`{}`)
	}
	if port == 0 {
		return out, nil
	}

	web := map[string]any{}
	if raw, ok := out["web"]; ok && len(raw) > 0 {
		if err := json.Unmarshal(raw, &web); err != nil {
			return nil, fmt.Errorf("failed to parse web channel config: %w", err)
		}
	}
	web["port"] = port
	raw, err := json.Marshal(web)
	if err != nil {
		return nil, err
	}
	out["web"] = raw
	return out, nil
}
