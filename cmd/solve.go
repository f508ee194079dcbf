package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/floc/app"
	"github.com/kilianp07/floc/config"
	"github.com/kilianp07/floc/infra/logger"
)

var (
	inputPath  string
	outputPath string
	duration   int
)

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Solve a stochastic facility location instance",
	RunE:  runSolve,
}

func init() {
	solveCmd.Flags().StringVarP(&inputPath, "input", "i", "", "path to input file (default stdin)")
	solveCmd.Flags().StringVarP(&outputPath, "output", "o", "", "path to output file (default stdout)")
	solveCmd.Flags().IntVarP(&duration, "duration", "d", 0, "max runtime in seconds (overrides config)")
	rootCmd.AddCommand(solveCmd)
}

func runSolve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if duration > 0 {
		cfg.Solve.TimeoutSeconds = duration
	}

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx, inputPath, outputPath)
}
