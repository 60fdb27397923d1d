package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"golang.org/x/crypto/ssh"
	"golang.org/x/sync/errgroup"

	"github.com/moshix/searchserver/app"
	"github.com/moshix/searchserver/config"
	"github.com/moshix/searchserver/format"
	"github.com/moshix/searchserver/logging"
	"github.com/moshix/searchserver/metrics"
	"github.com/moshix/searchserver/search"
	"github.com/moshix/searchserver/server"
	"github.com/moshix/searchserver/stats"
)

var version = "1.9.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// run starts every listener and blocks until ctx is cancelled, the dashboard
// is closed, or a listener fails.
func run(ctx context.Context, cfg config.Config, dashboard bool) error {
	log, err := logging.New(cfg.Logging, dashboard)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	activity := logging.NewActivity(cfg.Logging, log)
	defer activity.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m, err := metrics.New(reg)
	if err != nil {
		return err
	}

	pool := search.NewPool(cfg.Search.Workers, cfg.Search.QueueSize, log.Named(logging.CompSearch))
	defer pool.Close()
	if err := m.WatchQueue(pool.QueueDepth); err != nil {
		return err
	}

	if n, err := search.NewFileWalker(cfg.Search.SkipDirs).CountFiles(ctx, cfg.Search.Root); err != nil {
		log.Warn("search root is not readable", zap.String("root", cfg.Search.Root), zap.Error(err))
	} else {
		log.Info("corpus ready", zap.String("root", cfg.Search.Root), zap.Int("files", n),
			zap.String("types", config.GetFileTypeDescription()))
	}

	st := stats.New()
	f := format.New(true, cfg.Session.PageSize, version)
	searchLog := log.Named(logging.CompSearch)
	registry := search.NewRegistry(search.PDFMatcher{
		Fallback: cfg.Search.PDFFallback,
		PageCap:  cfg.Search.PDFPageCap,
		Log:      searchLog,
	})
	engine := search.NewSearchEngine(search.Options{
		Root:       cfg.Search.Root,
		MaxResults: cfg.Search.MaxResults,
		SkipDirs:   cfg.Search.SkipDirs,
		Registry:   registry,
		Observer:   m,
		Logger:     searchLog,
	}, pool)

	sessions := &server.SessionFactory{
		Dispatcher: server.NewDispatcher(server.DispatcherOptions{
			Searcher:   engine,
			VideosFile: cfg.Search.VideosFile,
			Stats:      st,
			Recorder:   m,
			Formatter:  f,
			Logger:     log.Named(logging.CompSession),
		}),
		Stats:     st,
		Recorder:  m,
		Formatter: f,
		Activity:  activity,
		Logger:    log.Named(logging.CompSession),
		Config: server.SessionConfig{
			Delay:      cfg.Delay(),
			DelayLines: cfg.Session.DelayLines,
			ReadBuffer: cfg.Session.ReadBuffer,
			Welcome:    cfg.Server.Welcome,
		},
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	listeners := []string{"telnet " + cfg.Addr()}
	tcp := server.New("telnet", sessions, cfg.ShutdownGrace(), log.Named(logging.CompServer))
	g.Go(func() error { return tcp.ListenAndServe(gctx, cfg.Addr()) })

	if addr := cfg.SSHAddr(); addr != "" {
		signer, err := server.LoadHostKey(cfg.SSH.HostKey)
		if err != nil {
			cancel()
			_ = g.Wait()
			return err
		}
		sshLog := log.Named(logging.CompSSH)
		if cfg.SSH.HostKey == "" {
			sshLog.Warn("no ssh.host_key configured, using an ephemeral key")
		}
		sshLog.Info("ssh host key", zap.String("fingerprint", ssh.FingerprintSHA256(signer.PublicKey())))

		sshSrv := server.New("ssh", server.NewSSHHandler(sessions, signer, sshLog), cfg.ShutdownGrace(), sshLog)
		g.Go(func() error { return sshSrv.ListenAndServe(gctx, addr) })
		listeners = append(listeners, "ssh "+addr)
	}

	if cfg.Metrics.Addr != "" {
		g.Go(func() error {
			return metrics.Serve(gctx, cfg.Metrics.Addr, metrics.NewRouter(reg), log.Named(logging.CompMetrics))
		})
		listeners = append(listeners, "metrics "+cfg.Metrics.Addr)
	}

	if dashboard {
		src := app.Source{
			Stats:      st,
			QueueDepth: pool.QueueDepth,
			Workers:    cfg.Search.Workers,
			Root:       cfg.Search.Root,
			Listeners:  listeners,
			Version:    version,
		}
		g.Go(func() error { return app.Run(gctx, src, cancel) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server stopped: %w", err)
	}
	log.Info("server stopped")
	return nil
}
