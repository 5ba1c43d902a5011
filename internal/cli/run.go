package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"ember/app"
	"ember/hal"
	"ember/internal/config"
	"ember/internal/logging"
)

func newRunCmd() *cobra.Command {
	var (
		configPath string
		acctPath   string
		sliceMs    uint64
		headless   hal.HeadlessConfig
		width      int
		height     int
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Boot the kernel and run the configured apps until they all exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = config.Load(configPath); err != nil {
					return err
				}
			}
			flags := cmd.Flags()
			if flags.Changed("acct") {
				cfg.AcctPath = acctPath
			}
			if flags.Changed("slice") {
				cfg.TimeSliceMs = sliceMs
			}
			if flags.Changed("log-level") {
				cfg.LogLevel = flagLogLevel
			}
			if flags.Changed("log-format") {
				cfg.LogFormat = flagLogFormat
			}
			if flagDebug {
				cfg.LogLevel = "debug"
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			host := hal.HostConfig{Width: width, Height: height, LogOutput: cmd.ErrOrStderr()}
			headless.Host = host

			var system *app.System
			newApp := func(h hal.HAL) func() error {
				lw := logging.NewLineWriter(h.Logger())
				log := logging.NewLoggerWithWriter(logging.ParseLevel(cfg.LogLevel), cfg.LogFormat, lw)

				opts := []app.Option{}
				if headless.Enabled {
					opts = append(opts, app.WithEcho(cmd.OutOrStdout()))
				}
				s, err := app.Boot(cmd.Context(), h, cfg, log, opts...)
				if err != nil {
					return func() error { return fmt.Errorf("boot: %w", err) }
				}
				system = s
				s.Start()
				return func() error {
					err := s.Step()
					if errors.Is(err, hal.ErrShutdown) {
						lw.Flush()
					}
					return err
				}
			}
			defer func() {
				if system != nil {
					system.Close()
					if id := system.BootID(); id != "" {
						fmt.Fprintf(cmd.ErrOrStderr(), "accounting: boot %s recorded in %s\n", id, cfg.AcctPath)
					}
				}
			}()

			if headless.Enabled {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
				defer stop()
				err := hal.RunHeadless(ctx, newApp, headless)
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			}
			return hal.RunWindow(host, newApp)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&configPath, "config", "c", "", "Boot manifest (YAML)")
	f.StringVar(&acctPath, "acct", "", "Accounting journal (SQLite path)")
	f.Uint64Var(&sliceMs, "slice", 0, "Time slice in ms, checked at syscall return (0 = cooperative)")
	f.BoolVar(&headless.Enabled, "headless", false, "Run without a window")
	f.IntVar(&headless.Hz, "hz", 60, "Tick rate in headless mode")
	f.Uint64Var(&headless.Ticks, "ticks", 0, "Stop after N ticks in headless mode (0 = run until halt)")
	f.IntVar(&width, "width", 320, "Display width")
	f.IntVar(&height, "height", 320, "Display height")
	return cmd
}
