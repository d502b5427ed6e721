// Command elb2json converts AWS load-balancer access logs (ALB or
// Classic LB) into newline-delimited JSON on stdout.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/lbstream/elb2json/internal/config"
	"github.com/lbstream/elb2json/internal/logging"
	"github.com/lbstream/elb2json/internal/pipeline"
	"github.com/lbstream/elb2json/internal/schema"
)

var version = "0.1.0"

func usage(flags *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `elb2json %s
Convert AWS load balancer access logs to newline-delimited JSON.

Usage:
  elb2json [flags] <path>

The path may be a directory of log files, a single log file, or "-" to
read from stdin. Gzip-compressed files are detected by content.

Flags:
%s`, version, flags.FlagUsages())
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	flags := flag.NewFlagSet("elb2json", flag.ContinueOnError)
	flags.SortFlags = false

	lbType := flags.StringP("type", "t", config.DefaultType, "type of load balancer: alb or classic-lb")
	skipParseErrors := flags.Bool("skip-parse-errors", false, "log and skip unparsable lines instead of aborting")
	configFile := flags.StringP("config", "c", "", "path to optional YAML configuration file")
	workers := flags.Int("workers", 0, "number of files parsed concurrently (default: number of CPUs)")
	quiet := flags.BoolP("quiet", "q", false, "only log errors")
	showVersion := flags.BoolP("version", "V", false, "print version and exit")
	showHelp := flags.BoolP("help", "h", false, "print this help and exit")

	flags.Usage = func() { usage(flags) }

	if err := flags.Parse(args); err != nil {
		return err
	}

	if *showVersion {
		fmt.Printf("elb2json %s\n", version)
		return nil
	}
	if *showHelp {
		usage(flags)
		return nil
	}

	if flags.NArg() != 1 {
		usage(flags)
		return errors.New("expected exactly one path argument")
	}
	path := flags.Arg(0)

	// Config file supplies defaults; explicit flags win.
	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			return err
		}
		cfg = loaded
	}
	if flags.Changed("type") {
		cfg.Type = *lbType
	}
	if flags.Changed("skip-parse-errors") {
		cfg.SkipParseErrors = *skipParseErrors
	}
	if flags.Changed("workers") {
		cfg.Workers = *workers
	}
	if *quiet {
		cfg.Logging.Level = "error"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	format, err := schema.ParseFormat(cfg.Type)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p := pipeline.New(pipeline.Options{
		Format:          format,
		SkipParseErrors: cfg.SkipParseErrors,
		Workers:         cfg.Workers,
		QueueSize:       cfg.QueueSize,
		Out:             os.Stdout,
		Logger:          logger,
	})

	return p.Run(ctx, path)
}
