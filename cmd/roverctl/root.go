package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"rovercode-go/platform"
	"rovercode-go/services/config"
	"rovercode-go/services/rover"
)

var (
	configPath string
	boardName  string
	i2cBus     string
	format     string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:   "roverctl",
	Short: "Rover peripheral control",
	Long: `roverctl - drive the rover's motors, servo and sensors.

The board topology comes from ROVER_CONFIG (a YAML file) or the embedded
default for ROVER_BOARD. ROVER_I2C_BUS overrides the bus name and
ROVER_DEBUG=true enables debug logging. The flags below take precedence
over the environment.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_, err := newPrinter(cmd.OutOrStdout(), format)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Topology YAML file")
	rootCmd.PersistentFlags().StringVarP(&boardName, "board", "b", "", "Embedded board config (rover, hat)")
	rootCmd.PersistentFlags().StringVar(&i2cBus, "bus", "", "I2C bus name")
	rootCmd.PersistentFlags().StringVarP(&format, "format", "f", formatText, "Output format: text, json or cbor")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "Debug logging")
}

// Execute runs the root command. Ctrl+C cancels the running operation and
// still shuts the board down.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// resolveConfig merges the flags over the environment.
func resolveConfig() (*config.Config, config.Env, error) {
	e, err := config.LoadEnv()
	if err != nil {
		return nil, e, err
	}
	if configPath != "" {
		e.ConfigPath = configPath
	}
	if boardName != "" {
		e.Board = boardName
	}
	if i2cBus != "" {
		e.I2CBus = i2cBus
	}
	if debug {
		e.Debug = true
	}
	cfg, err := config.Resolve(e)
	return cfg, e, err
}

func newLogger(e config.Env) *slog.Logger {
	lvl := slog.LevelInfo
	if e.Debug {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openRover builds and initialises the service. The returned func releases
// the hardware. Replaced in tests.
var openRover = func(ctx context.Context, cfg *config.Config, log *slog.Logger) (*rover.Service, func() error, error) {
	if err := platform.Init(); err != nil {
		return nil, nil, err
	}
	i2c, err := platform.OpenI2C(cfg.Bus)
	if err != nil {
		return nil, nil, err
	}
	pins := platform.NewPins()
	svc, err := rover.New(cfg, rover.Resources{I2C: i2c, Pins: pins}, rover.Options{Logger: log})
	if err != nil {
		return nil, nil, errors.Join(err, pins.Close(), i2c.Close())
	}
	release := func() error {
		return errors.Join(svc.Close(), pins.Close(), i2c.Close())
	}
	if err := svc.Init(ctx); err != nil {
		return nil, nil, errors.Join(err, release())
	}
	return svc, release, nil
}

// withRover runs fn against an initialised service and prints its result.
func withRover(cmd *cobra.Command, fn func(ctx context.Context, svc *rover.Service) (any, error)) error {
	out, err := newPrinter(cmd.OutOrStdout(), format)
	if err != nil {
		return err
	}
	cfg, e, err := resolveConfig()
	if err != nil {
		return err
	}
	log := newLogger(e)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	svc, release, err := openRover(ctx, cfg, log)
	if err != nil {
		return err
	}
	v, err := fn(ctx, svc)
	if cerr := release(); cerr != nil {
		log.Warn("shutdown", "err", cerr)
	}
	if err != nil || v == nil {
		return err
	}
	return out.print(v)
}
