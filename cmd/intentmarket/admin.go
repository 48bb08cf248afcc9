package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/Strob0t/IntentMarket/internal/adapter/postgres"
	"github.com/Strob0t/IntentMarket/internal/adapter/ws"
	"github.com/Strob0t/IntentMarket/internal/config"
	"github.com/Strob0t/IntentMarket/internal/domain/intent"
	"github.com/Strob0t/IntentMarket/internal/logger"
	"github.com/Strob0t/IntentMarket/internal/secrets"
	"github.com/Strob0t/IntentMarket/internal/service"
)

// runAdmin dispatches operator subcommands. They talk to Postgres directly
// and do not need NATS; events are broadcast to a local hub with no clients.
func runAdmin(cmd string, args []string) error {
	switch cmd {
	case "migrate":
		return runMigrate(args)
	case "sweep":
		return runSweepOnce(args)
	case "find-matches":
		return runFindMatches(args)
	case "intents":
		return runListIntents(args)
	default:
		printHelp()
		return fmt.Errorf("unknown command: %s", cmd)
	}
}

// adminDeps are the services an operator command needs.
type adminDeps struct {
	cfg     *config.Config
	intents *service.IntentService
	matches *service.MatchService
	sweep   *service.SweepService
	close   func()
}

// newFlagSet returns a flag set that already knows -c/--config.
func newFlagSet(name string) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	path := fs.String("config", config.DefaultConfigFile, "path to YAML config")
	fs.StringVar(path, "c", config.DefaultConfigFile, "path to YAML config (shorthand)")
	return fs, path
}

func loadConfig(path string) (*config.Config, error) {
	cfg, _, err := config.LoadWithCLI(config.CLIFlags{ConfigPath: &path})
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func loadAdminDeps(ctx context.Context, path string) (*adminDeps, error) {
	cfg, err := loadConfig(path)
	if err != nil {
		return nil, err
	}
	log, closeLog := logger.New(cfg.Logging)
	slog.SetDefault(log)

	pool, err := postgres.NewPool(ctx, cfg.Postgres)
	if err != nil {
		closeLog.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	vault, err := secrets.NewVault(secrets.EnvLoader(secrets.SealKeyEnv, secrets.SealKeyPreviousEnv))
	if err != nil {
		pool.Close()
		closeLog.Close()
		return nil, fmt.Errorf("secrets: %w", err)
	}

	hub := ws.NewHub()
	store := postgres.NewStore(pool)
	holder := config.NewHolder(cfg, path)
	intents := service.NewIntentService(store, nil, hub, nil, secrets.NewSealer(vault))
	matches := service.NewMatchService(store, nil, hub, holder.Matching)

	return &adminDeps{
		cfg:     cfg,
		intents: intents,
		matches: matches,
		sweep:   service.NewSweepService(store, matches, hub, cfg.Sweep.Concurrency),
		close: func() {
			hub.Close()
			pool.Close()
			closeLog.Close()
		},
	}, nil
}

func runMigrate(args []string) error {
	fs, path := newFlagSet("migrate")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := loadConfig(*path)
	if err != nil {
		return err
	}

	ctx := context.Background()
	action := "up"
	if fs.NArg() > 0 {
		action = fs.Arg(0)
	}
	switch action {
	case "up":
		if err := postgres.RunMigrations(ctx, cfg.Postgres.DSN); err != nil {
			return err
		}
	case "down":
		steps := 1
		if fs.NArg() > 1 {
			steps, err = strconv.Atoi(fs.Arg(1))
			if err != nil || steps < 1 {
				return fmt.Errorf("invalid step count %q", fs.Arg(1))
			}
		}
		if err := postgres.RollbackMigrations(ctx, cfg.Postgres.DSN, steps); err != nil {
			return err
		}
	case "status":
	default:
		return fmt.Errorf("unknown migrate action %q (want up, down [n] or status)", action)
	}

	v, err := postgres.MigrationVersion(ctx, cfg.Postgres.DSN)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "schema version: %d\n", v)
	return nil
}

func runSweepOnce(args []string) error {
	fs, path := newFlagSet("sweep")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	deps, err := loadAdminDeps(ctx, *path)
	if err != nil {
		return err
	}
	defer deps.close()

	rep, err := deps.sweep.RunOnce(ctx)
	if err != nil {
		return fmt.Errorf("sweep: %w", err)
	}
	return printOutput(rep, func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "INTENTS\tCREATED\tCLOSED\tFAILED")
		_, _ = fmt.Fprintf(w, "%d\t%d\t%d\t%d\n", rep.Intents, rep.Created, rep.Closed, rep.Failed)
	})
}

func runFindMatches(args []string) error {
	fs, path := newFlagSet("find-matches")
	intentID := fs.String("intent", "", "intent ID (required)")
	cross := fs.Bool("cross", false, "match against other open intents instead of agents")
	limit := fs.Int("limit", 0, "maximum matches to keep (0 = configured default)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *intentID == "" {
		return fmt.Errorf("--intent is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	deps, err := loadAdminDeps(ctx, *path)
	if err != nil {
		return err
	}
	defer deps.close()

	run := deps.matches.FindMatches
	if *cross {
		run = deps.matches.CrossMatch
	}
	res, err := run(ctx, *intentID, *limit)
	if err != nil {
		return fmt.Errorf("find matches: %w", err)
	}
	return printOutput(res, func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "MATCH\tCANDIDATE\tTYPE\tSCORE\tREASON")
		for i := range res.Matches {
			m := &res.Matches[i]
			name := m.CandidateName
			if name == "" {
				name = m.CandidateID
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.4f\t%s\n", m.ID, name, m.Type, m.Score, m.Reason)
		}
		_, _ = fmt.Fprintf(w, "\ncandidates=%d created=%d refreshed=%d failed=%d\n",
			res.Candidates, res.Created, res.Refreshed, res.Failed)
	})
}

func runListIntents(args []string) error {
	fs, path := newFlagSet("intents")
	status := fs.String("status", "", "filter by status (open, matched, closed)")
	category := fs.String("category", "", "filter by category")
	limit := fs.Int("limit", 50, "maximum intents to list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ctx := context.Background()
	deps, err := loadAdminDeps(ctx, *path)
	if err != nil {
		return err
	}
	defer deps.close()

	items, _, err := deps.intents.List(ctx, intent.ListFilter{
		Status:   intent.Status(*status),
		Category: *category,
		Limit:    *limit,
	}, "")
	if err != nil {
		return fmt.Errorf("list intents: %w", err)
	}
	if len(items) == 0 && isTerminal() {
		fmt.Println("No intents found.")
		return nil
	}
	return printOutput(items, func(w *tabwriter.Writer) {
		_, _ = fmt.Fprintln(w, "ID\tSTATUS\tCATEGORY\tMATCHES\tPRIVATE\tTITLE")
		for i := range items {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\n",
				items[i].ID, items[i].Status, items[i].Category, items[i].MatchCount, items[i].IsPrivate, items[i].Title)
		}
	})
}

// printOutput renders a table when stdout is a terminal and JSON otherwise.
func printOutput(v any, table func(w *tabwriter.Writer)) error {
	if !isTerminal() {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	table(w)
	return w.Flush()
}

func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd())) //nolint:gosec // fd fits in int
}
