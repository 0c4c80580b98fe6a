package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/bft-labs/mirage/internal/cliconfig"
	"github.com/bft-labs/mirage/pkg/log"
	"github.com/bft-labs/mirage/pkg/metrics"
	"github.com/bft-labs/mirage/pkg/mirage"
)

const helpDescription = `
Run a dual-transport service endpoint: synchronous RPC plus asynchronous
pub/sub or push/pull messaging under one lifecycle.

Highlights:
  - One daemon serves gRPC calls and streams async messages side by side.
  - Configure via file, environment (MIRAGE_*), or flags.
  - Edits to the config file restart the endpoint in place.
`

var exampleUsage = strings.TrimSpace(`
  miraged --role server --mode pub --sync-addr 127.0.0.1:50051 --async-addr tcp://127.0.0.1:5555
  miraged --role client --mode sub --subscribe metrics. --config $HOME/.mirage/config.toml
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

// buildEndpointConfig converts the CLI configuration into the library
// configuration, resolving the string-typed fields.
func buildEndpointConfig(cfg cliconfig.Config, logger log.Logger) (mirage.Config, error) {
	var out mirage.Config
	if cfg.Role == "client" {
		out = mirage.DefaultClientConfig()
	} else {
		out = mirage.DefaultServerConfig()
	}

	mode, err := mirage.ParseSocketMode(cfg.Mode)
	if err != nil {
		return out, err
	}
	out.Mode = mode

	if cfg.QueuePolicy == "drop" {
		out.QueuePolicy = mirage.DropOnFull
	} else {
		out.QueuePolicy = mirage.BlockOnFull
	}

	out.SyncAddr = cfg.SyncAddr
	out.AsyncAddr = cfg.AsyncAddr
	out.Subscriptions = cfg.Subscriptions
	if cfg.Linger > 0 {
		out.Linger = cfg.Linger
	}
	if cfg.RecvTimeout > 0 {
		out.RecvTimeout = cfg.RecvTimeout
	}
	out.ConnectTimeout = cfg.ConnectTimeout
	out.PollInterval = cfg.PollInterval
	out.QueueHWM = cfg.QueueHWM
	out.MaxRecvMsgSize = cfg.MaxRecvMsgSize
	out.MaxSendMsgSize = cfg.MaxSendMsgSize

	if mode.CanRecv() {
		out.Handler = func(msg mirage.Message) {
			logger.Info("async message received",
				log.String("topic", msg.Topic),
				log.Int("bytes", len(msg.Payload)),
			)
		}
	}
	if out.Role == mirage.RoleServer {
		out.Services = []mirage.ServiceDescriptor{
			mirage.ServiceFunc(func(r grpc.ServiceRegistrar) {
				grpc_health_v1.RegisterHealthServer(r, health.NewServer())
			}),
		}
	}
	return out, nil
}

// endpointRunner owns the live endpoint so the config watcher can swap it
// for a fresh one built from the reloaded configuration.
type endpointRunner struct {
	mu sync.Mutex
	ep *mirage.Endpoint
}

func (r *endpointRunner) current() *mirage.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ep
}

func (r *endpointRunner) swap(ep *mirage.Endpoint) *mirage.Endpoint {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.ep
	r.ep = ep
	return old
}

// restartEndpoint swaps the freshly built endpoint in, stops the old one and
// starts the replacement. A replacement that cannot start leaves the daemon
// without a live endpoint, so the caller must treat the error as fatal.
func restartEndpoint(ctx context.Context, runner *endpointRunner, replacement *mirage.Endpoint, logger log.Logger) error {
	old := runner.swap(replacement)
	if err := old.Stop(); err != nil {
		logger.Error("stop during restart failed", log.Err(err))
	}
	return replacement.Start(ctx)
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string
	var watch bool

	root := &cobra.Command{
		Use:     "miraged",
		Short:   "Dual-transport service endpoint daemon",
		Long:    strings.TrimSpace(helpDescription),
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			loadConfig := func() (cliconfig.Config, error) {
				c := cfg
				if cfgFile != "" && cliconfig.FileExists(cfgFile) {
					fc, err := cliconfig.LoadFileConfig(cfgFile)
					if err != nil {
						return c, fmt.Errorf("load config: %w", err)
					}
					if err := cliconfig.ApplyFileConfig(&c, fc, changed); err != nil {
						return c, err
					}
				}
				// Env overrides file config but is overridden by flags.
				if err := cliconfig.ApplyEnvConfig(&c, changed); err != nil {
					return c, err
				}
				if err := c.Validate(); err != nil {
					return c, err
				}
				return c, nil
			}

			runCfg, err := loadConfig()
			if err != nil {
				return err
			}

			var zl zerolog.Logger
			if runCfg.LogJSON {
				zl = zerolog.New(os.Stderr).With().Timestamp().Logger()
			} else {
				zl = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
			}
			logger := log.NewZerologAdapterWithLogger(zl)

			zl.Info().Interface("config", runCfg).Msg("configuration")

			collector := metrics.NewCollector()

			newEndpoint := func(c cliconfig.Config) (*mirage.Endpoint, error) {
				libCfg, err := buildEndpointConfig(c, logger)
				if err != nil {
					return nil, err
				}
				return mirage.New(libCfg,
					mirage.WithLogger(logger),
					mirage.WithEventHandler(collector),
				)
			}

			ep, err := newEndpoint(runCfg)
			if err != nil {
				return fmt.Errorf("create endpoint: %w", err)
			}
			runner := &endpointRunner{ep: ep}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			if err := ep.Start(ctx); err != nil {
				return fmt.Errorf("start endpoint: %w", err)
			}

			// Optional Prometheus scrape listener.
			var metricsSrv *http.Server
			if runCfg.MetricsAddr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", collector.Handler())
				metricsSrv = &http.Server{Addr: runCfg.MetricsAddr, Handler: mux}
				go func() {
					if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
						logger.Error("metrics listener failed", log.Err(err))
					}
				}()
				logger.Info("metrics listener started", log.String("addr", runCfg.MetricsAddr))
			}

			// A fatal transport fault or a restart that cannot start must
			// stop the process instead of leaving it idling with a dead
			// endpoint.
			doneCh := make(chan struct{})
			var doneOnce sync.Once
			fatal := func() { doneOnce.Do(func() { close(doneCh) }) }

			// Restart the endpoint when the config file changes.
			var watcher *cliconfig.Watcher
			if watch && cfgFile != "" && cliconfig.FileExists(cfgFile) {
				watcher = cliconfig.NewWatcher(cfgFile, 0, func() {
					newCfg, err := loadConfig()
					if err != nil {
						logger.Error("config reload failed", log.Err(err))
						return
					}
					replacement, err := newEndpoint(newCfg)
					if err != nil {
						logger.Error("config reload rejected", log.Err(err))
						return
					}
					if err := restartEndpoint(ctx, runner, replacement, logger); err != nil {
						logger.Error("restart failed", log.Err(err))
						fatal()
						return
					}
					logger.Info("endpoint restarted after config change")
				}, logger)
				if err := watcher.Start(ctx); err != nil {
					logger.Warn("config watcher unavailable", log.Err(err))
					watcher = nil
				}
			}

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

			go func() {
				ticker := time.NewTicker(100 * time.Millisecond)
				defer ticker.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
						if runner.current().State() == mirage.StateErrored {
							fatal()
							return
						}
					}
				}
			}()

			var runErr error
			select {
			case <-sigCh:
				logger.Info("received signal, stopping")
			case <-doneCh:
				logger.Error("endpoint no longer running")
				runErr = fmt.Errorf("endpoint no longer running")
			}
			cancel()

			if watcher != nil {
				watcher.Stop()
			}
			if metricsSrv != nil {
				shutCtx, shutCancel := context.WithTimeout(context.Background(), 5*time.Second)
				_ = metricsSrv.Shutdown(shutCtx)
				shutCancel()
			}
			if err := runner.current().Stop(); err != nil {
				return fmt.Errorf("stop endpoint: %w", err)
			}
			return runErr
		},
	}

	// Flags
	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.mirage/config.toml)")
	root.Flags().StringVar(&cfg.Role, "role", cfg.Role, "endpoint role: server or client")
	root.Flags().StringVar(&cfg.Mode, "mode", cfg.Mode, "async socket mode: pub, sub, push, pull, req, rep")
	root.Flags().StringVar(&cfg.SyncAddr, "sync-addr", cfg.SyncAddr, "sync RPC address (host:port)")
	root.Flags().StringVar(&cfg.AsyncAddr, "async-addr", cfg.AsyncAddr, "async address (tcp://host:port or ipc:///path)")
	root.Flags().StringSliceVar(&cfg.Subscriptions, "subscribe", cfg.Subscriptions, "topic prefixes to subscribe to (sub mode)")

	root.Flags().DurationVar(&cfg.Linger, "linger", cfg.Linger, "async socket linger on close")
	root.Flags().DurationVar(&cfg.RecvTimeout, "recv-timeout", cfg.RecvTimeout, "bound on each async receive attempt")
	root.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "client sync connect timeout")
	root.Flags().DurationVar(&cfg.PollInterval, "poll", cfg.PollInterval, "async worker poll interval")

	root.Flags().IntVar(&cfg.QueueHWM, "queue-hwm", cfg.QueueHWM, "outbound queue high-water-mark")
	root.Flags().StringVar(&cfg.QueuePolicy, "queue-policy", cfg.QueuePolicy, "queue overflow policy: block or drop")
	root.Flags().IntVar(&cfg.MaxRecvMsgSize, "max-recv-msg-size", cfg.MaxRecvMsgSize, "max sync receive message size in bytes")
	root.Flags().IntVar(&cfg.MaxSendMsgSize, "max-send-msg-size", cfg.MaxSendMsgSize, "max sync send message size in bytes")

	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "Prometheus listen address (disabled when empty)")
	root.Flags().BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log JSON instead of console output")
	root.Flags().BoolVar(&watch, "watch", true, "restart the endpoint when the config file changes")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "miraged:", err)
		os.Exit(1)
	}
}
