package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/tcassar-diss/memtrace/dataset"
	"github.com/tcassar-diss/memtrace/pipeline"
	"github.com/tcassar-diss/memtrace/trace"
	"go.uber.org/zap"
)

var flagConfig = flag.String("config", "", "yaml config with the affected syscalls")

func main() {
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "usage: %s [-config cfg.yaml] <trace>\n", os.Args[0])
		os.Exit(2)
	}

	prodLog, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("failed to get logger: %v", err)
	}
	defer prodLog.Sync()

	logger := prodLog.Sugar()

	cfg := pipeline.DefaultCfg()
	if *flagConfig != "" {
		cfg, err = pipeline.LoadCfg(*flagConfig)
		if err != nil {
			logger.Fatalw("failed to load config", "path", *flagConfig, "err", err)
		}
	}

	path := flag.Arg(0)

	res, err := trace.NewParser(logger).ParseFile(path)
	if err != nil {
		logger.Fatalw("failed to parse trace", "trace", path, "err", err)
	}

	d := dataset.Assemble(res.Events, res.Features, dataset.NewAffectedSet(cfg.Affected...))

	fmt.Printf("features: %v\n", d.Keys)

	for i, row := range d.Rows {
		var sb strings.Builder

		fmt.Fprintf(&sb, "SysCall %d label=%d", d.SyscallIDs[i], d.Labels[i])

		for j, count := range row {
			if count == 0 {
				continue
			}

			fmt.Fprintf(&sb, " %d:%d", d.Keys[j], int(count))
		}

		fmt.Println(sb.String())
	}

	s := res.Stats
	fmt.Printf("lines: %d\tmarkers: %d\tcounted: %d\tskipped: %d\n", s.Lines, s.Markers, s.Counted, s.Skipped())
	fmt.Printf("before marker: %d\ttoo few fields: %d\tnot hex: %d\tnon-positive: %d\n",
		s.BeforeMarker, s.TooFewFields, s.NotHex, s.NonPositive)
}
