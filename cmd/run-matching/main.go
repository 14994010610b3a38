package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"
)

// defaultRunTimeout bounds a whole one-shot run, retries included.
const defaultRunTimeout = 5 * time.Minute

func main() {
	var (
		configFile = flag.String("config", "", "YAML config file (default: $COFFEEMATCH_CONFIG)")
		demo       = flag.Bool("demo", false, "Use built-in sample employees instead of the database")
		logFile    = flag.String("log", "", "Also append logs to this file")
		verbose    = flag.Bool("verbose", false, "Enable debug logging")
		timeout    = flag.Duration("timeout", defaultRunTimeout, "Overall run timeout")
		help       = flag.Bool("help", false, "Show help")
	)
	flag.Parse()

	if *help {
		showHelp(os.Stdout)
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	code := run(ctx, options{
		ConfigFile: *configFile,
		Demo:       *demo,
		LogFile:    *logFile,
		Verbose:    *verbose,
	}, os.Stdout, os.Stderr)
	if code != exitOK {
		cancel()
		stop()
		os.Exit(code)
	}
}
