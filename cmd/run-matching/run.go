package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/internal/adapters/repository"
	app "github.com/okian/coffeematch/internal/app"
	"github.com/okian/coffeematch/internal/config"
	"github.com/okian/coffeematch/internal/domain/model"
	"github.com/okian/coffeematch/pkg/logger"
)

// Exit codes.
const (
	exitOK     = 0
	exitFailed = 1
	exitConfig = 2
)

const logFilePermission = 0o600

// options are the parsed command-line flags.
type options struct {
	ConfigFile string
	Demo       bool
	LogFile    string
	Verbose    bool
}

// run performs one matching run and prints the pairs to out. Logs go to
// errOut and, when set, to the log file.
func run(ctx context.Context, opts options, out, errOut io.Writer) int {
	path := opts.ConfigFile
	if path == "" {
		path = os.Getenv(config.EnvConfig)
	}
	cfg, err := config.LoadFile(ctx, path)
	if err != nil {
		fmt.Fprintf(errOut, "failed to load config: %v\n", err)
		return exitConfig
	}

	log, closeLog, err := setupLogging(errOut, opts.LogFile)
	if err != nil {
		fmt.Fprintf(errOut, "failed to setup logging: %v\n", err)
		return exitConfig
	}
	defer closeLog()
	level := cfg.LogLevel
	if opts.Verbose {
		level = "debug"
	}
	if err := logger.SetLevelString(level); err != nil {
		_ = logger.SetLevelString("info")
	}

	client, err := matching.New(cfg.MatchingClientConfig(), matching.WithLogger(log))
	if err != nil {
		fmt.Fprintf(errOut, "matching client: %v\n", err)
		return exitConfig
	}

	var store repository.Store
	if opts.Demo {
		store = demoStore(ctx)
	} else {
		s, err := repository.NewSQLiteStore(cfg.DatabasePath)
		if err != nil {
			fmt.Fprintf(errOut, "employee database: %v\n", err)
			return exitConfig
		}
		defer func() { _ = s.Close() }()
		store = s
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithClientProvider(staticProvider{client: client}),
	)

	fmt.Fprintln(out, "Starting secret coffee matching...")
	pairs, err := svc.RunMatchingForActiveEmployees(ctx)
	if err != nil {
		fmt.Fprintf(out, "Matching failed: %v\n", err)
		return exitFailed
	}
	printPairs(out, pairs)
	return exitOK
}

func printPairs(out io.Writer, pairs []model.Pair) {
	if len(pairs) == 0 {
		fmt.Fprintln(out, "No secret coffee pairs were formed.")
		return
	}
	fmt.Fprintf(out, "Formed %d pair(s):\n", len(pairs))
	for _, p := range pairs {
		fmt.Fprintf(out, "  - %d and %d\n", p.A, p.B)
	}
}

// staticProvider hands out an already built client.
type staticProvider struct {
	client *matching.Client
}

func (p staticProvider) Client() (*matching.Client, error) { return p.client, nil }

// setupLogging builds a logger writing to errOut and, if logFile is set,
// appending to that file too.
func setupLogging(errOut io.Writer, logFile string) (logger.Logger, func(), error) {
	if logFile == "" {
		return logger.NewWithWriter(errOut), func() {}, nil
	}
	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePermission)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return logger.NewWithWriter(io.MultiWriter(errOut, f)), func() { _ = f.Close() }, nil
}

// demoStore returns a small in-memory organisation with some history.
func demoStore(ctx context.Context) *repository.MemoryStore {
	eng, sales := int64(1), int64(2)
	s := repository.NewMemoryStore()
	for _, e := range []model.Employee{
		{ID: 1, FullName: "Alice Ivanova", Position: "Senior Backend Engineer", DepartmentID: &eng, Active: true},
		{ID: 2, FullName: "Boris Petrov", Position: "Junior Frontend Developer", DepartmentID: &eng, Active: true, Profile: model.StaticProfile{Newcomers: true}},
		{ID: 3, FullName: "Chen Wei", Position: "Sales Lead", DepartmentID: &sales, Active: true},
		{ID: 4, FullName: "Dana Smirnova", Position: "Account Manager", DepartmentID: &sales, Active: true, Profile: model.StaticProfile{Newcomers: true}},
		{ID: 5, FullName: "Egor Orlov", Position: "Intern", Active: true},
		{ID: 6, FullName: "Fatima Aliyeva", Position: "QA Engineer", DepartmentID: &eng, Active: false},
	} {
		_ = s.AddEmployee(ctx, e)
	}
	_ = s.AddHistory(ctx, model.HistoryRecord{Employee1ID: 1, Employee2ID: 3})
	_ = s.AddHistory(ctx, model.HistoryRecord{Employee1ID: 2, Employee2ID: 4})
	return s
}

func showHelp(out io.Writer) {
	fmt.Fprint(out, `coffeematch run-matching
========================

Runs one secret coffee matching round against the matching service and
prints the resulting pairs.

Usage:
  run-matching [options]

Options:
  -config string
        YAML config file (default: $COFFEEMATCH_CONFIG)
  -demo
        Use built-in sample employees instead of the database
  -log string
        Also append logs to this file
  -verbose
        Enable debug logging
  -timeout duration
        Overall run timeout (default 5m0s)
  -help
        Show this help

Environment:
  COFFEEMATCH_MATCHING_SERVICE_URL   matching service base URL
  COFFEEMATCH_DATABASE_PATH          SQLite database with employees and history

Exit codes:
  0  run finished (possibly with no pairs)
  1  matching failed
  2  configuration error
`)
}
