package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"portfolio-rag/internal/config"
	"portfolio-rag/internal/errs"
	"portfolio-rag/internal/logging"
	"portfolio-rag/internal/metrics"
	"portfolio-rag/internal/service"
)

// app is the per-invocation state shared by subcommands.
type app struct {
	cfg      *config.AppConfig
	logger   *zap.Logger
	registry *prometheus.Registry
	metrics  *metrics.Recorder
}

func (a *app) session(withModel bool) (*service.Session, error) {
	return service.Open(a.cfg, a.logger, a.metrics, withModel)
}

// NewRootCmd creates the root portfolio command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "portfolio",
		Short:         "Ask questions about a portfolio of companies",
		Long:          "portfolio keeps a semantic index over a CSV portfolio of companies and answers questions from it with a language model.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return a.finish(cmd)
		},
	}

	root.PersistentFlags().StringP("config", "c", "", "path to config file (default ./config.yaml or ~/.config/portfolio-rag/config.yaml)")
	root.PersistentFlags().String("log-level", "", "log level override (debug, info, warn, error)")
	root.PersistentFlags().String("metrics-file", "", "write prometheus metrics to this file on exit")

	root.AddCommand(
		newIndexCmd(a),
		newAskCmd(a),
		newSearchCmd(a),
		newAddCmd(a),
		newCommentCmd(a),
		newListCmd(a),
		newChatCmd(a),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	_ = godotenv.Load()

	var err error
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		a.cfg, err = config.Load(path)
	} else {
		a.cfg, _, err = config.LoadDefault()
	}
	if err != nil {
		return err
	}

	level := a.cfg.Log.Level
	if override, _ := cmd.Flags().GetString("log-level"); override != "" {
		level = override
	}
	a.logger, err = logging.NewWithWriter(level, a.cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return errs.Wrap(err, errs.CodeConfigInvalidValue, "configuring logger")
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.NewRecorder(a.registry)
	return nil
}

func (a *app) finish(cmd *cobra.Command) error {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
	path, _ := cmd.Flags().GetString("metrics-file")
	if path == "" || a.registry == nil {
		return nil
	}
	if err := metrics.WriteTextfile(path, a.registry); err != nil {
		return fmt.Errorf("writing metrics file: %w", err)
	}
	return nil
}
