//go:build linux

// Command lsoed is the LSOE daemon: it speaks the Link State Over Ethernet
// protocol on a set of interfaces, discovering directly-connected peers and
// exchanging each side's configured IP/MPLS encapsulations with them.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/arrcus-clone/lsoe/internal/config"
	"github.com/arrcus-clone/lsoe/internal/engine"
	"github.com/arrcus-clone/lsoe/internal/ifdb"
	"github.com/arrcus-clone/lsoe/internal/northbound"
	"github.com/arrcus-clone/lsoe/internal/session"
	"github.com/arrcus-clone/lsoe/internal/transport"
)

var (
	configPath    = flag.String("c", os.Getenv("LSOE_CONFIG"), "path to lsoed YAML config file (env LSOE_CONFIG)")
	debugLevel    debugFlag
	metricsEnable = flag.Bool("metrics-enable", false, "enable prometheus metrics")
	metricsAddr   = flag.String("metrics-addr", "", "address to listen on for prometheus metrics (overrides config)")

	// set by LDFLAGS
	version = "dev"
	commit  = "none"
)

// debugFlag is a repeatable -d flag: one occurrence raises the log level to
// Debug, two or more also enable raw-PDU hex dumping, following the
// original implementation's "-d/-dd" verbosity levels.
type debugFlag int

func (d *debugFlag) String() string { return fmt.Sprintf("%d", int(*d)) }
func (d *debugFlag) Set(string) error {
	*d++
	return nil
}
func (d *debugFlag) IsBoolFlag() bool { return true }

func main() {
	flag.StringVar(configPath, "config", *configPath, "same as -c")
	flag.Var(&debugLevel, "d", "increase verbosity (repeatable; -d logs debug, -dd also hex-dumps raw PDUs)")
	flag.Var(&debugLevel, "debug", "same as -d")
	flag.BoolFunc("dd", "same as -d -d", func(string) error {
		debugLevel += 2
		return nil
	})
	flag.Parse()

	opts := &slog.HandlerOptions{}
	if debugLevel >= 1 {
		opts.Level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, opts))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	localID, err := cfg.LocalIDBytes()
	if err != nil {
		slog.Error("invalid local-id", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	buildInfo := promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
		Name: "lsoe_build_info",
		Help: "Build information of lsoed.",
	}, []string{"version", "commit"})
	buildInfo.WithLabelValues(version, commit).Set(1)
	metrics := engine.NewMetrics(reg)

	if *metricsEnable {
		addr := cfg.MetricsAddr
		if *metricsAddr != "" {
			addr = *metricsAddr
		}
		go serveMetrics(addr, reg)
	}

	sock, err := transport.NewRawSocket(cfg.Interfaces)
	if err != nil {
		slog.Error("failed to open raw socket", "error", err)
		os.Exit(1)
	}
	defer sock.Close()

	clock := clockwork.NewRealClock()

	tr := transport.New(sock, clock, transport.Config{
		ReassemblyTimeout:  cfg.ReassemblyTimeout,
		MACAddressCacheTTL: cfg.MACAddressCacheTimeout,
		DumpRawPDUs:        debugLevel >= 2,
	}, logger)

	watcher := ifdb.NewWatcher(logger)
	nb := northbound.NewLogger(logger)

	eng := engine.New(engine.Config{
		Session: session.Config{
			LocalID:                      localID,
			RetransmitInitialInterval:    cfg.RetransmitInitialInterval,
			RetransmitExponentialBackoff: cfg.RetransmitExponentialBackoff,
			RetransmitMaxDrop:            cfg.RetransmitMaxDrop,
			KeepaliveSendInterval:        cfg.KeepaliveSendInterval,
			KeepaliveReceiveTimeout:      cfg.KeepaliveReceiveTimeout,
		},
		HelloInterval: cfg.HelloInterval,
	}, tr, watcher, nb, clock, logger, metrics, nil)

	errCh := make(chan error, 3)
	go func() { errCh <- tr.Run(ctx) }()
	go func() { errCh <- watcher.Run(ctx) }()
	go func() { errCh <- eng.Run(ctx) }()

	slog.Info("lsoed started", "local_id", cfg.LocalID, "interfaces", strings.Join(cfg.Interfaces, ","))

	select {
	case <-ctx.Done():
		slog.Info("shutting down")
	case err := <-errCh:
		if err != nil {
			slog.Error("fatal error", "error", err)
			os.Exit(1)
		}
	}
}

func serveMetrics(addr string, reg *prometheus.Registry) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		slog.Error("failed to start prometheus metrics listener", "error", err)
		os.Exit(1)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	slog.Info("prometheus metrics server started", "address", listener.Addr().String())
	if err := http.Serve(listener, mux); err != nil {
		log.Printf("prometheus metrics server stopped: %v", err)
	}
}
