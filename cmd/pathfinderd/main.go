// Command pathfinderd runs one or more pathfinder domains: a rendezvous
// server that lets services publish their presence and clients subscribe
// to filtered notifications of it (spec.md, SPEC_FULL.md).
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	pathfinder "github.com/gonzalop/pathfinder"
	"github.com/gonzalop/pathfinder/internal/config"
	"github.com/gonzalop/pathfinder/internal/discovery"
	"github.com/gonzalop/pathfinder/internal/logging"
	"github.com/gonzalop/pathfinder/internal/metrics"
	"github.com/gonzalop/pathfinder/internal/proto"
	"github.com/gonzalop/pathfinder/transport"
)

var version = "dev"

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "pathfinderd",
		Short: "Pathfinder service-discovery rendezvous server",
	}
	root.AddCommand(newServeCommand(), newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pathfinderd version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintln(cmd.OutOrStdout(), version)
			return nil
		},
	}
}

func newServeCommand() *cobra.Command {
	v := viper.New()
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run pathfinderd in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	config.Bind(cmd.Flags(), v)
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	logger := logging.New(logging.Config{
		Output:    os.Stdout,
		Level:     logging.ParseLevel(cfg.LogLevel),
		Prefix:    "pathfinderd",
		UseColors: !cfg.LogNoColor,
	})

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGoCollector(), prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	var servers []*pathfinder.Server
	var announcers []*discovery.Announcer
	var wg sync.WaitGroup

	for _, spec := range cfg.Domains {
		spec := spec
		domainLogger := logger.WithPrefix(spec.Name)

		var limits pathfinder.ResourceLimits
		for i, rl := range spec.ResourceLimits {
			limits[i] = pathfinder.Limits{PerUser: rl.PerUser, Total: rl.Total}
		}

		domain := pathfinder.NewDomain(spec.Name,
			pathfinder.WithResourceLimits(limits),
			pathfinder.WithLogger(domainLogger),
		)
		go domain.Run(ctx)
		go pollStats(ctx, domain, m, spec.Name)

		srv := pathfinder.NewServer(domain,
			pathfinder.WithServerLogger(domainLogger),
			pathfinder.WithInterceptors(metricsInterceptor(m, spec.Name)),
		)
		servers = append(servers, srv)

		if spec.TCPAddr != "" {
			ln, err := transport.ListenTCP(spec.TCPAddr)
			if err != nil {
				return fmt.Errorf("listen tcp %s: %w", spec.TCPAddr, err)
			}
			domainLogger.Info("listening", "transport", "tcp", "addr", ln.Addr())

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := srv.Serve(ctx, ln); err != nil {
					domainLogger.Error("tcp listener stopped", "err", err)
				}
			}()

			if spec.Advertise {
				port := tcpPort(ln.Addr())
				ann, err := discovery.NewAnnouncer(discovery.AnnounceOptions{Port: port, DomainName: spec.Name})
				if err != nil {
					domainLogger.Warn("mDNS advertisement failed", "err", err)
				} else {
					announcers = append(announcers, ann)
				}
			}
		}

		if spec.WSAddr != "" {
			ln, err := transport.NewWSListener(spec.WSAddr, spec.WSPath)
			if err != nil {
				return fmt.Errorf("listen ws %s: %w", spec.WSAddr, err)
			}
			domainLogger.Info("listening", "transport", "ws", "addr", ln.Addr(), "path", spec.WSPath)

			wg.Add(1)
			go func() {
				defer wg.Done()
				if err := srv.Serve(ctx, ln); err != nil {
					domainLogger.Error("ws listener stopped", "err", err)
				}
			}()
		}
	}

	var metricsSrv *http.Server
	if cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		metricsSrv = &http.Server{Addr: cfg.MetricsAddr, Handler: mux}
		go func() {
			logger.Info("serving metrics", "addr", cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "err", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")

	for _, ann := range announcers {
		ann.Stop()
	}
	for _, srv := range servers {
		srv.Shutdown()
	}
	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		metricsSrv.Shutdown(shutdownCtx)
	}
	wg.Wait()
	return nil
}

func tcpPort(addr net.Addr) int {
	if a, ok := addr.(*net.TCPAddr); ok {
		return a.Port
	}
	return 0
}

func pollStats(ctx context.Context, domain *pathfinder.Domain, m *metrics.Metrics, name string) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats, err := domain.Stats(ctx)
			if err != nil {
				return
			}
			m.ObserveStats(name, stats)
		}
	}
}

// metricsInterceptor counts every transaction pathfinderd completes
// without touching Domain or Session command logic (SPEC_FULL.md §4,
// "Interceptors").
func metricsInterceptor(m *metrics.Metrics, domainName string) pathfinder.Interceptor {
	return func(next pathfinder.Dispatch) pathfinder.Dispatch {
		return func(ctx context.Context, sess *pathfinder.Session, frame *proto.Frame) error {
			cmd, ok := commandFor(frame.Kind)
			err := next(ctx, sess, frame)
			if ok {
				m.ObserveCommand(domainName, cmd, nil)
			}
			return err
		}
	}
}

func commandFor(kind proto.Kind) (pathfinder.Command, bool) {
	switch kind {
	case proto.KindHello:
		return pathfinder.CmdHello, true
	case proto.KindPublish:
		return pathfinder.CmdPublish, true
	case proto.KindUnpublish:
		return pathfinder.CmdUnpublish, true
	case proto.KindSubscribe:
		return pathfinder.CmdSubscribe, true
	case proto.KindUnsubscribe:
		return pathfinder.CmdUnsubscribe, true
	case proto.KindServices:
		return pathfinder.CmdServices, true
	case proto.KindSubscriptions:
		return pathfinder.CmdSubscriptions, true
	case proto.KindClients:
		return pathfinder.CmdClients, true
	case proto.KindPing:
		return pathfinder.CmdPing, true
	default:
		return 0, false
	}
}
