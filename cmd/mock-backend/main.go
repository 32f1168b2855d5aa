package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"people-search/internal/logger"
	"people-search/internal/mockbackend"
)

type options struct {
	addr      string
	failFirst int
	delay     time.Duration
	logFile   string
	logLevel  string
}

func newCmd() *cobra.Command {
	o := &options{
		addr:     ":5000",
		logLevel: "info",
	}
	cmd := &cobra.Command{
		Use:          "mock-backend",
		Short:        "Serve a local stand-in for the people search API under /api",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.Init(o.logFile, o.logLevel)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			s := mockbackend.New(
				mockbackend.WithLogger(log),
				mockbackend.WithFailFirst(o.failFirst),
				mockbackend.WithDelay(o.delay),
			)
			return s.Run(cmd.Context(), o.addr)
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&o.addr, "addr", o.addr, "Listen address")
	fs.IntVar(&o.failFirst, "fail-first", o.failFirst, "Answer the first N uploads with 503")
	fs.DurationVar(&o.delay, "delay", o.delay, "Hold every upload this long before answering")
	fs.StringVar(&o.logFile, "log-file", o.logFile, "Log file path (empty for stderr)")
	fs.StringVar(&o.logLevel, "log-level", o.logLevel, "Log level: debug, info, warn or error")
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
