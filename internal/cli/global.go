package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"k8s.io/utils/clock"

	"people-search/internal/backend"
	"people-search/internal/config"
	"people-search/internal/logger"
	"people-search/internal/probe"
	"people-search/internal/progress"
	"people-search/internal/session"
	"people-search/internal/submitter"
)

type GlobalOptions struct {
	ConfigFile string
	BaseURL    string
	LogFile    string
	LogLevel   string

	cfg *config.Config
	log *zap.Logger
}

func DefaultGlobalOptions() *GlobalOptions {
	return &GlobalOptions{}
}

func (o *GlobalOptions) Bind(fs *pflag.FlagSet) {
	fs.StringVarP(&o.ConfigFile, "config", "c", o.ConfigFile, "Path to a YAML config file")
	fs.StringVarP(&o.BaseURL, "base-url", "u", o.BaseURL, "Base URL of the search backend (default "+backend.DefaultBaseURL+")")
	fs.StringVar(&o.LogFile, "log-file", o.LogFile, "Log file path (default people-search.log)")
	fs.StringVar(&o.LogLevel, "log-level", o.LogLevel, "Log level: debug, info, warn or error")
}

// Complete loads the config file and environment, applies flags given on the
// command line on top and starts logging.
func (o *GlobalOptions) Complete(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(o.ConfigFile)
	if err != nil {
		return err
	}
	flags := cmd.Flags()
	if flags.Changed("base-url") {
		cfg.BaseURL = o.BaseURL
	}
	if flags.Changed("log-file") {
		cfg.LogFile = o.LogFile
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = o.LogLevel
	}
	o.cfg = cfg

	if err := o.cfg.Validate(); err != nil {
		return err
	}
	l, err := logger.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		return err
	}
	o.log = l
	return nil
}

func (o *GlobalOptions) Validate(args []string) error {
	return nil
}

func (o *GlobalOptions) Config() *config.Config {
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	return o.cfg
}

func (o *GlobalOptions) Sync() {
	if o.log != nil {
		_ = o.log.Sync()
	}
}

func (o *GlobalOptions) Client() *backend.Client {
	return backend.NewClient(o.Config().BaseURL)
}

func (o *GlobalOptions) NewProber(client probe.HealthClient) *probe.Prober {
	return probe.NewProber(client, probe.WithTimeout(o.Config().Health.Timeout))
}

func (o *GlobalOptions) NewSession(client submitter.Uploader) *session.Session {
	cfg := o.Config()
	sub := submitter.New(client,
		submitter.WithMaxAttempts(cfg.Upload.MaxAttempts),
		submitter.WithAttemptTimeout(cfg.Upload.Timeout),
		submitter.WithBackoffStep(cfg.Upload.BackoffStep),
	)
	est := progress.New(clock.RealClock{},
		progress.WithStep(cfg.Progress.Step),
		progress.WithInterval(cfg.Progress.Interval),
		progress.WithCeiling(cfg.Progress.Ceiling),
	)
	return session.New(sub, est)
}
