package main

import (
	"io"

	"github.com/urfave/cli/v2"
	"go.uber.org/automaxprocs/maxprocs"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// session carries what Before sets up to the command actions.
type session struct {
	out    io.Writer
	logger *zap.Logger
	undo   func()
}

func newApp(out io.Writer) *cli.App {
	s := &session{out: out, logger: zap.NewNop(), undo: func() {}}

	return &cli.App{
		Name:   "lanepool",
		Usage:  "run work through a strict-priority thread pool",
		Writer: out,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "development logging at debug level",
				EnvVars: []string{"LANEPOOL_VERBOSE"},
			},
		},
		Before: func(c *cli.Context) error {
			logger, err := newLogger(c.Bool("verbose"))
			if err != nil {
				return cli.Exit("failed to build logger: "+err.Error(), 1)
			}
			s.logger = logger

			undo, err := maxprocs.Set(maxprocs.Logger(logger.Sugar().Debugf))
			if err != nil {
				logger.Warn("automaxprocs failed", zap.Error(err))
			}
			if undo != nil {
				s.undo = undo
			}
			return nil
		},
		After: func(*cli.Context) error {
			s.undo()
			_ = s.logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			runCommand(s),
			orderCommand(s),
		},
	}
}

// newLogger returns a development logger when verbose, otherwise a
// production JSON logger that only reports warnings and above.
func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	return cfg.Build()
}
