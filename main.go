/*
Vacuum is a small grid-world simulation of a cleaning agent. The room is a grid of
empty, dirty and obstacle cells; the agent repeatedly plans a breadth-first path to
the nearest dirt, moves along it in continuous space, and cleans what it reaches.
The room can be edited while the agent runs, from a browser page pushed over a
websocket (vacuum serve) or from a terminal (vacuum tui).
*/

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"os/signal"
	"syscall"

	"vacuum/grid_world"
	"vacuum/logging"
	"vacuum/server"
	"vacuum/simulation"
	"vacuum/terminal"

	"github.com/gdamore/tcell/v2"
	"github.com/spf13/cobra"
)

// Version information (set at build time)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const defaultConfigPath = "./config.yaml"

type options struct {
	configPath string
	debug      bool
	layout     string
	logLevel   string
	logFormat  string
	logFile    string

	host string
	port string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "vacuum",
		Short:         "Grid-world cleaning agent simulation",
		Long:          "vacuum simulates an agent cleaning a room, editable live from a browser or a terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Version:       version,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initLogging(cmd, opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", defaultConfigPath, "path to the config file")
	flags.BoolVar(&opts.debug, "debug", false, "use the small debug room")
	flags.StringVar(&opts.layout, "layout", "", "named room layout (debug, full)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format (console, json)")
	flags.StringVar(&opts.logFile, "log-file", "", "append logs to this file instead of stderr")

	cmd.AddCommand(
		newServeCmd(opts),
		newTuiCmd(opts),
	)
	return cmd
}

// initLogging configures the global logger from the flags. The terminal host owns
// the screen, so tui logs are dropped unless a log file is given.
func initLogging(cmd *cobra.Command, opts *options) error {
	logCfg := logging.DefaultConfig()
	logCfg.Level = opts.logLevel
	logCfg.Format = opts.logFormat
	logCfg.EnableCaller = opts.logLevel == "debug"

	switch {
	case opts.logFile != "":
		f, err := os.OpenFile(opts.logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		logCfg.Output = f
		logCfg.Format = "json"
	case cmd.Name() == "tui":
		logCfg.Output = io.Discard
	}

	logging.Init(logCfg)
	return nil
}

func newServeCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the room page and stream it to browsers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.host, "host", "", "the host ip")
	cmd.Flags().StringVar(&opts.port, "port", "8080", "the host port")
	return cmd
}

func newTuiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "tui",
		Short: "Run the room in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTui(cmd.Context(), cmd, opts)
		},
	}
}

// loadConfig reads the config file and applies the layout flags over it. A missing
// default file means defaults; a missing file that was asked for is an error.
func loadConfig(opts *options, explicit bool) (*simulation.Config, error) {
	cfg, err := simulation.FromYaml(opts.configPath)
	if err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
		cfg = simulation.DefaultConfig()
	}

	layout := opts.layout
	if opts.debug {
		layout = "debug"
	}
	if layout != "" {
		rows, ok := grid_world.Layouts[layout]
		if !ok {
			return nil, fmt.Errorf("unknown layout %q", layout)
		}
		cfg.Layout = rows
		cfg.Home = nil
	}
	return cfg, nil
}

// startSimulation builds the room and runs its simulation until @ctx is cancelled.
func startSimulation(ctx context.Context, cfg *simulation.Config) (*simulation.Runner, error) {
	grid, err := cfg.NewGrid()
	if err != nil {
		return nil, fmt.Errorf("build room: %w", err)
	}

	engine, err := simulation.NewEngine(cfg, grid, logging.Component("engine"))
	if err != nil {
		return nil, err
	}

	runner := simulation.NewRunner(engine, simulation.WallTimeProvider{}, cfg.TickPeriod(), logging.Component("simulation"))
	go func() { _ = runner.Run(ctx) }()
	return runner, nil
}

func runServe(ctx context.Context, cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	logger := logging.Component("server")
	logger.Info().
		Str("version", version).
		Str("commit", commit).
		Str("built", date).
		Msg("starting vacuum")

	runner, err := startSimulation(ctx, cfg)
	if err != nil {
		return err
	}

	addr := net.JoinHostPort(opts.host, opts.port)
	srv, err := server.NewServer(ctx, addr, runner, runner.Snapshots(), logger)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

func runTui(ctx context.Context, cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(opts, cmd.Flags().Changed("config"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runner, err := startSimulation(ctx, cfg)
	if err != nil {
		return err
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("open terminal: %w", err)
	}
	if err = screen.Init(); err != nil {
		return fmt.Errorf("init terminal: %w", err)
	}
	defer screen.Fini()

	host := terminal.NewHost(screen, runner, runner.Snapshots(), logging.Component("terminal"))
	return host.Run(ctx)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}
