package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/mikey/food-safety-agent/internal/adapters/cli"
	"github.com/mikey/food-safety-agent/internal/core"
	"github.com/mikey/food-safety-agent/internal/di"
	"github.com/mikey/food-safety-agent/internal/utils"
)

func main() {
	flags, err := di.ParseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	container, err := di.BuildCLIContainer(flags)
	if err != nil {
		fmt.Printf("Failed to build dependency container: %v\n", err)
		os.Exit(1)
	}

	if err := container.Invoke(run); err != nil {
		os.Exit(1)
	}
}

func run(logger *zap.Logger, flags *di.CLIFlags, inspector *cli.Inspector, cacheRepo core.CacheRepository) error {
	defer logger.Sync()

	if stopper, ok := cacheRepo.(interface{ Stop() }); ok {
		defer stopper.Stop()
	}

	// Read image from file or stdin
	var imageReader io.Reader
	if flags.InputFile != "" {
		file, err := os.Open(flags.InputFile)
		if err != nil {
			logger.Error("Failed to open input file", zap.Error(err), zap.String("file", flags.InputFile))
			return err
		}
		defer file.Close()
		imageReader = file
		logger.Info("Reading image from file", zap.String("file", flags.InputFile))
	} else {
		imageReader = os.Stdin
		logger.Info("Reading image from stdin")
	}

	data, err := io.ReadAll(imageReader)
	if err != nil {
		logger.Error("Failed to read image", zap.Error(err))
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	_, err = inspector.Inspect(ctx, utils.EncodeImage(data), flags.Signal())
	return err
}
