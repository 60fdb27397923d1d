package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/moshix/searchserver/app"
	"github.com/moshix/searchserver/config"
)

// flagValues holds command line overrides. Only flags the user actually set
// replace values from the config file.
type flagValues struct {
	configPath  string
	host        string
	port        int
	delayMS     int
	delayLines  int
	filesDir    string
	videosFile  string
	maxResults  int
	workers     int
	sshPort     int
	sshHostKey  string
	metricsAddr string
	logLevel    string
	logFormat   string
	dashboard   bool
}

func rootCmd() *cobra.Command {
	cmd, _ := newRootCmd()
	return cmd
}

func newRootCmd() (*cobra.Command, *flagValues) {
	fv := &flagValues{}
	cmd := &cobra.Command{
		Use:           "searchserver",
		Short:         "Line-oriented TCP and SSH document search server",
		Long:          app.Usage(version),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, fv)
			if err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			dashboard := fv.dashboard
			if dashboard && !term.IsTerminal(int(os.Stdout.Fd())) {
				fmt.Fprintln(os.Stderr, app.Warn("stdout is not a terminal, dashboard disabled"))
				dashboard = false
			}
			if err := run(cmd.Context(), cfg, dashboard); err != nil {
				fmt.Fprintln(os.Stderr, "Error:", err)
				return err
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVarP(&fv.configPath, "config", "c", "", "path to YAML config file")

	f := cmd.Flags()
	f.StringVar(&fv.host, "host", "", "listen host (default 0.0.0.0)")
	f.IntVarP(&fv.port, "port", "p", 0, "telnet listen port (default 8023)")
	f.IntVar(&fv.delayMS, "delay", 0, "per-line delay in ms for short responses")
	f.IntVar(&fv.delayLines, "delay-lines", 0, "responses with fewer lines than this are paced")
	f.StringVar(&fv.filesDir, "files-dir", "", "directory to search (default FILES/)")
	f.StringVar(&fv.videosFile, "videos-file", "", "video catalog file (default videos.txt)")
	f.IntVar(&fv.maxResults, "max-results", 0, "stop a search after this many matches (default 30)")
	f.IntVar(&fv.workers, "workers", 0, "search worker pool size (default 8)")
	f.IntVar(&fv.sshPort, "ssh-port", 0, "SSH listen port, 0 disables")
	f.StringVar(&fv.sshHostKey, "ssh-host-key", "", "PEM host key for SSH (ephemeral if empty)")
	f.StringVar(&fv.metricsAddr, "metrics-addr", "", "prometheus endpoint address, e.g. :9090")
	f.StringVar(&fv.logLevel, "log-level", "", "debug, info, warn or error")
	f.StringVar(&fv.logFormat, "log-format", "", "console or json")
	f.BoolVar(&fv.dashboard, "dashboard", false, "show the live terminal dashboard")

	cmd.AddCommand(versionCmd())
	cmd.AddCommand(configCmd(fv))
	return cmd, fv
}

// loadConfig reads the config file and applies the flags that were set.
func loadConfig(cmd *cobra.Command, fv *flagValues) (config.Config, error) {
	cfg, err := config.Load(fv.configPath)
	if err != nil {
		return config.Config{}, err
	}

	flags := cmd.Flags()
	if flags.Changed("host") {
		cfg.Server.Host = fv.host
	}
	if flags.Changed("port") {
		cfg.Server.Port = fv.port
	}
	if flags.Changed("delay") {
		cfg.Session.DelayMS = fv.delayMS
	}
	if flags.Changed("delay-lines") {
		cfg.Session.DelayLines = fv.delayLines
	}
	if flags.Changed("files-dir") {
		cfg.Search.Root = fv.filesDir
	}
	if flags.Changed("videos-file") {
		cfg.Search.VideosFile = fv.videosFile
	}
	if flags.Changed("max-results") {
		cfg.Search.MaxResults = fv.maxResults
	}
	if flags.Changed("workers") {
		cfg.Search.Workers = fv.workers
	}
	if flags.Changed("ssh-port") {
		cfg.SSH.Port = fv.sshPort
	}
	if flags.Changed("ssh-host-key") {
		cfg.SSH.HostKey = fv.sshHostKey
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = fv.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = fv.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = fv.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid flags: %w", err)
	}
	return cfg, nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), app.Version(version))
		},
	}
}

func configCmd(fv *flagValues) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(fv.configPath)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			defer enc.Close()
			return enc.Encode(cfg)
		},
	})
	return cmd
}
