// Command crosswalk resolves feed-specific identifiers to canonical
// internal identifiers. It reads source records as JSON lines, resolves
// them through the entity cartographers, and records every decision in
// the mapping store.
package main

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/sydlexius/crosswalk/internal/config"
	"github.com/sydlexius/crosswalk/internal/database"
	"github.com/sydlexius/crosswalk/internal/entity"
	"github.com/sydlexius/crosswalk/internal/logging"
	"github.com/sydlexius/crosswalk/internal/normalize"
	"github.com/sydlexius/crosswalk/internal/record"
	"github.com/sydlexius/crosswalk/internal/resolve"
	"github.com/sydlexius/crosswalk/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	var err error
	switch os.Args[1] {
	case "resolve":
		err = runResolve(os.Args[2:])
	case "override":
		err = runOverride(os.Args[2:])
	case "history":
		err = runHistory(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage:
  crosswalk resolve  -type player|team|game -input records.jsonl
  crosswalk override -type player|team|game -source SRC -source-id ID -internal-id CANONICAL [-note TEXT]
  crosswalk history  -type player|team|game -source SRC -source-id ID`)
}

// app bundles the wired components shared by all subcommands.
type app struct {
	db       *sql.DB
	logs     *logging.Manager
	logger   *slog.Logger
	norm     *normalize.Normalizer
	mappings *store.MappingStore
	players  *resolve.PlayerCartographer
	teams    *resolve.TeamCartographer
	games    *resolve.GameCartographer
	admin    *resolve.Admin
}

func newApp() (*app, error) {
	cfg, err := config.Load(os.Getenv("CW_CONFIG_PATH"))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	logs, logger := logging.NewManager(logging.Config{
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	slog.SetDefault(logger)

	var aliases normalize.Aliases
	if cfg.Aliases.Path != "" {
		if aliases, err = normalize.LoadAliases(cfg.Aliases.Path); err != nil {
			logs.Close() //nolint:errcheck
			return nil, err
		}
	}
	norm := normalize.NewWithAliases(aliases)

	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		logs.Close() //nolint:errcheck
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		db.Close() //nolint:errcheck
		logs.Close() //nolint:errcheck
		return nil, fmt.Errorf("migrating database: %w", err)
	}

	candidates := store.NewCandidateStore(db)
	mappings := store.NewMappingStore(db)
	cache := resolve.NewCache()
	thresholds := cfg.Thresholds()

	teams := resolve.NewTeamCartographer(candidates, mappings, cache, norm, thresholds, logger)
	players := resolve.NewPlayerCartographer(candidates, mappings, cache, teams, norm, thresholds, logger)
	games := resolve.NewGameCartographer(candidates, mappings, cache, teams, norm, thresholds, logger)

	return &app{
		db:       db,
		logs:     logs,
		logger:   logger,
		norm:     norm,
		mappings: mappings,
		players:  players,
		teams:    teams,
		games:    games,
		admin:    resolve.NewAdmin(mappings, cache, logger),
	}, nil
}

func (a *app) close() {
	if err := a.db.Close(); err != nil {
		a.logger.Error("closing database", "error", err)
	}
	a.logs.Close() //nolint:errcheck
}

func runResolve(args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ExitOnError)
	typ := fs.String("type", "", "entity type: player, team, or game")
	input := fs.String("input", "", "path to JSONL source records ('-' for stdin)")
	fs.Parse(args) //nolint:errcheck

	if *typ == "" || *input == "" {
		return fmt.Errorf("resolve requires -type and -input")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	in := os.Stdin
	if *input != "-" {
		f, err := os.Open(*input)
		if err != nil {
			return err
		}
		defer f.Close() //nolint:errcheck
		in = f
	}

	ctx := context.Background()
	out := json.NewEncoder(os.Stdout)
	counts := map[resolve.Method]int{}
	skipped := 0

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 1024*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		m, err := resolveLine(ctx, a, entity.Type(*typ), line)
		if err != nil {
			var bad *badRecordError
			if errors.As(err, &bad) {
				// Malformed records are fatal for themselves, not the batch.
				a.logger.Warn("skipping malformed record", "error", err)
				skipped++
				continue
			}
			return err
		}
		counts[m.Method]++
		if err := out.Encode(m); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	a.logger.Info("batch complete",
		slog.Int("accepted", counts[resolve.MethodFuzzy]+counts[resolve.MethodExactKey]),
		slog.Int("ambiguous", counts[resolve.MethodAmbiguous]),
		slog.Int("no_match", counts[resolve.MethodNoMatch]),
		slog.Int("manual", counts[resolve.MethodManual]),
		slog.Int("skipped", skipped))
	return nil
}

// badRecordError marks a record that cannot be decoded or validated. It
// is fatal for that record only; the batch logs it and moves on.
type badRecordError struct{ err error }

func (e *badRecordError) Error() string { return e.err.Error() }
func (e *badRecordError) Unwrap() error { return e.err }

func resolveLine(ctx context.Context, a *app, typ entity.Type, line []byte) (*resolve.Mapping, error) {
	switch typ {
	case entity.TypePlayer:
		var in record.PlayerInput
		if err := json.Unmarshal(line, &in); err != nil {
			return nil, &badRecordError{fmt.Errorf("decoding player record: %w", err)}
		}
		rec, err := record.NewPlayer(in, a.norm)
		if err != nil {
			return nil, &badRecordError{err}
		}
		return a.players.Resolve(ctx, rec)
	case entity.TypeTeam:
		var in record.TeamInput
		if err := json.Unmarshal(line, &in); err != nil {
			return nil, &badRecordError{fmt.Errorf("decoding team record: %w", err)}
		}
		rec, err := record.NewTeam(in, a.norm)
		if err != nil {
			return nil, &badRecordError{err}
		}
		return a.teams.Resolve(ctx, rec)
	case entity.TypeGame:
		var in record.GameInput
		if err := json.Unmarshal(line, &in); err != nil {
			return nil, &badRecordError{fmt.Errorf("decoding game record: %w", err)}
		}
		rec, err := record.NewGame(in, a.norm)
		if err != nil {
			return nil, &badRecordError{err}
		}
		return a.games.Resolve(ctx, rec)
	default:
		return nil, fmt.Errorf("unknown entity type %q", typ)
	}
}

func runOverride(args []string) error {
	fs := flag.NewFlagSet("override", flag.ExitOnError)
	typ := fs.String("type", "", "entity type: player, team, or game")
	source := fs.String("source", "", "feed identifier")
	sourceID := fs.String("source-id", "", "feed-local identifier")
	internalID := fs.String("internal-id", "", "canonical identifier (empty asserts unresolvable)")
	note := fs.String("note", "", "reason for the override")
	fs.Parse(args) //nolint:errcheck

	if *typ == "" || *source == "" || *sourceID == "" {
		return fmt.Errorf("override requires -type, -source, and -source-id")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	m, err := a.admin.Override(context.Background(), *source, *sourceID, entity.Type(*typ), *internalID, *note)
	if err != nil {
		return err
	}
	return json.NewEncoder(os.Stdout).Encode(m)
}

func runHistory(args []string) error {
	fs := flag.NewFlagSet("history", flag.ExitOnError)
	typ := fs.String("type", "", "entity type: player, team, or game")
	source := fs.String("source", "", "feed identifier")
	sourceID := fs.String("source-id", "", "feed-local identifier")
	fs.Parse(args) //nolint:errcheck

	if *typ == "" || *source == "" || *sourceID == "" {
		return fmt.Errorf("history requires -type, -source, and -source-id")
	}

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()

	history, err := a.mappings.History(context.Background(), *source, *sourceID, entity.Type(*typ))
	if err != nil {
		return err
	}
	out := json.NewEncoder(os.Stdout)
	for _, m := range history {
		if err := out.Encode(m); err != nil {
			return err
		}
	}
	return nil
}
