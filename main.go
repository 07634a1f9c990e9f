package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/tcassar-diss/memtrace/pipeline"
	"github.com/tcassar-diss/memtrace/trace"
	"go.uber.org/zap"
)

var (
	flagConfig = flag.String("config", "", "yaml config with the affected syscalls and classifier settings")
	flagOutput = flag.String("o", "", "write a json summary of the run to this file")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-config cfg.yaml] [-o summary.json] <trace>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	prodLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to get logger: %v", err)
	}
	defer prodLogger.Sync()

	logger := prodLogger.Sugar()

	cfg := pipeline.DefaultCfg()
	if *flagConfig != "" {
		cfg, err = pipeline.LoadCfg(*flagConfig)
		if err != nil {
			logger.Fatalw("failed to load config", "path", *flagConfig, "err", err)
		}
	}

	reporter := pipeline.NewConsoleReporter(logger, os.Stdout)

	trainer, err := pipeline.NewTrainer(logger, trace.NewParser(logger), reporter, cfg)
	if err != nil {
		logger.Fatalw("failed to create trainer", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	path := flag.Arg(0)

	if _, err := trainer.Run(ctx, path); err != nil {
		logger.Fatalw("failed to run classifiers", "trace", path, "err", err)
	}

	if *flagOutput != "" {
		if err := reporter.WriteFile(*flagOutput); err != nil {
			logger.Fatalw("failed to write summary", "err", err)
		}
	}
}
