package cmd

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mini0405/shardproxy/internal/config"
	"github.com/mini0405/shardproxy/internal/poolcore"
	"github.com/mini0405/shardproxy/internal/redisconn"
	"github.com/mini0405/shardproxy/internal/registry"
	"github.com/mini0405/shardproxy/internal/resolve"
	"github.com/mini0405/shardproxy/internal/server"
	"github.com/mini0405/shardproxy/internal/telemetry"
)

var (
	watchFlag     bool
	debugAddrFlag string
	dumpConfig    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Load the pool config and run the routing core",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&watchFlag, "watch", false, "reload automatically when the config file changes")
	serveCmd.Flags().StringVar(&debugAddrFlag, "debug-addr", ":6380", "address for the /debug and /metrics diagnostics server")
	serveCmd.Flags().BoolVar(&dumpConfig, "dump-config", false, "print the parsed pool config and exit, without serving")
	rootCmd.AddCommand(serveCmd)
}

func runServe(c *cobra.Command, args []string) error {
	if cfgFile == "" {
		return fmt.Errorf("serve: --config is required")
	}

	if dumpConfig {
		records, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		out, err := config.Dump(records)
		if err != nil {
			return err
		}
		fmt.Print(out)
		return nil
	}

	log, err := telemetry.NewLogger(false)
	if err != nil {
		return err
	}
	defer log.Sync()

	bus := telemetry.NewEventBus(log, 200)

	cache := resolve.New()
	pools, err := loadPools(cfgFile, cache)
	if err != nil {
		return err
	}
	preconnectAll(pools, log)
	wireEvents(pools, bus)

	reg := registry.New(pools)

	collector := telemetry.NewCollector(reg)
	prometheus.MustRegister(collector)

	mux := http.NewServeMux()
	telemetry.Mount(mux, reg, bus)
	debugSrv := &http.Server{Addr: debugAddrFlag, Handler: mux}
	go func() {
		log.Info("diagnostics server listening", zap.String("addr", debugAddrFlag))
		if err := debugSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("diagnostics server stopped", zap.Error(err))
		}
	}()

	if err := writePidFile(); err != nil {
		log.Warn("could not write pid file", zap.Error(err))
	}

	var watcher *registry.Watcher
	if watchFlag {
		watcher, err = reg.WatchConfig(cfgFile, func(path string) ([]*poolcore.Pool, error) {
			next, err := loadPools(path, cache)
			if err != nil {
				return nil, err
			}
			preconnectAll(next, log)
			wireEvents(next, bus)
			return next, nil
		}, func(err error) {
			log.Error("config watch reload failed", zap.Error(err))
			bus.Publish(telemetry.EventError, "", err.Error())
		})
		if err != nil {
			return err
		}
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case sig := <-stop:
			if sig == syscall.SIGHUP {
				next, err := loadPools(cfgFile, cache)
				if err != nil {
					log.Error("SIGHUP reload failed", zap.Error(err))
					continue
				}
				preconnectAll(next, log)
				wireEvents(next, bus)
				if err := reg.KickReplacement(next); err != nil {
					log.Error("kick_replacement failed", zap.Error(err))
					continue
				}
				bus.Publish(telemetry.EventReload, "", "reload triggered by SIGHUP")
				continue
			}

			log.Info("shutting down")
			if watcher != nil {
				_ = watcher.Close()
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = debugSrv.Shutdown(ctx)
			cancel()
			return reg.Deinit()

		case <-ticker.C:
			now := time.Now().UnixMicro()
			for _, p := range reg.Pools() {
				p.MaybeRebuild(now)
			}
			reg.FinishReplacement()
		}
	}
}

func loadPools(path string, cache *resolve.Cache) ([]*poolcore.Pool, error) {
	records, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	return config.BuildPools(records, cache.Resolve)
}

// preconnectAll runs each pool's preconnect pass, if its record
// requested one, picking the Redis AUTH/SELECT handshake dialer over a
// plain TCP dialer per pool's redis flag.
func preconnectAll(pools []*poolcore.Pool, log *zap.Logger) {
	for _, p := range pools {
		p.RunPreconnect(func(srv *server.Server) server.DialFunc {
			return dialerFor(p, srv)
		}, func(serverName string, err error) {
			log.Warn("preconnect failed", zap.String("pool", p.Name), zap.String("server", serverName), zap.Error(err))
		})
	}
}

// wireEvents hooks a pool's ejection and recovery transitions up to the
// event bus, so /debug/events surfaces the core's health-state changes
// instead of only reload and error notifications.
func wireEvents(pools []*poolcore.Pool, bus *telemetry.EventBus) {
	for _, p := range pools {
		name := p.Name
		p.OnEjection = func(srv *server.Server) {
			bus.Publish(telemetry.EventEjection, name, fmt.Sprintf("server %s ejected", srv.Name))
		}
		p.OnRecovery = func(srv *server.Server) {
			bus.Publish(telemetry.EventRecovery, name, fmt.Sprintf("server %s recovered", srv.Name))
		}
	}
}

// dialerFor picks the dial hook a pool's servers connect through: the
// redigo AUTH/SELECT handshake when the pool's redis flag is set, a
// plain TCP dial otherwise.
func dialerFor(p *poolcore.Pool, srv *server.Server) server.DialFunc {
	if p.Redis {
		return redisconn.Dialer("tcp", srv.Addr.String(), p.RedisAuth, p.RedisDB)
	}
	return tcpDialer("tcp", srv.Addr.String())
}

func tcpDialer(network, address string) server.DialFunc {
	return func() (server.ConnIO, error) {
		return net.Dial(network, address)
	}
}

func writePidFile() error {
	path := viper.GetString("pidfile")
	if path == "" {
		return nil
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}
