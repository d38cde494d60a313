// alertfeed replays a change-event log through the alert engine.
//
// The input is JSON lines, one catch-up style record per line:
//
//	{"t":"put","f":{"u":"000000000000000b","ts":1700000000,"n":"00000000000000aa","f":[{"h":"01","t":0}]}}
//
// Handles are 16-digit hex strings. The tool restores persisted history,
// replays the events, prints every notify-queue drain, and can export the
// resulting alert log to Parquet.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/skyvault/alertfeed/config"
	"github.com/skyvault/alertfeed/internal/alert"
	"github.com/skyvault/alertfeed/internal/engine"
	"github.com/skyvault/alertfeed/internal/export"
	"github.com/skyvault/alertfeed/internal/logging"
	"github.com/skyvault/alertfeed/internal/raw"
	"github.com/skyvault/alertfeed/internal/stats"
	"github.com/skyvault/alertfeed/internal/store"
)

// Version is set at build time via ldflags
var Version = "dev"

func main() {
	cfgPath := flag.String("config", "config.yaml", "config file path")
	eventsPath := flag.String("events", "", "JSONL event file (default stdin)")
	dbPath := flag.String("db", "", "persistence database path (overrides config)")
	exportPath := flag.String("export", "", "write the final alert log to this Parquet file")
	catchup := flag.Bool("catchup", false, "treat the whole input as one catch-up reply")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg = config.Default()
		} else {
			fmt.Fprintf(os.Stderr, "load config: %v\n", err)
			os.Exit(1)
		}
	}
	if *dbPath != "" {
		cfg.Store.DSN = *dbPath
	}

	logging.Init(parseLevel(cfg.Logging.Level), cfg.Logging.JSON)
	log := logging.Component("alertfeed")
	log.Info("starting", "version", Version)

	if err := run(cfg, *eventsPath, *exportPath, *catchup, log); err != nil {
		log.Error("replay failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, eventsPath, exportPath string, catchup bool, log *slog.Logger) error {
	dbCfg := store.DefaultDBConfig()
	dbCfg.DSN = cfg.Store.DSN
	dbCfg.MaxOpenConns = cfg.Store.MaxOpenConns

	db, err := store.OpenDB(dbCfg)
	if err != nil {
		return err
	}
	defer db.Close()

	tracker := stats.New(cfg.Stats.PercentileAccuracy)
	st := store.New(cfg.Engine.MaxAlerts, db)
	eng := engine.New(cfg.Engine, st, tracker)

	if err := eng.Restore(db); err != nil {
		return err
	}

	in := os.Stdin
	if eventsPath != "" {
		f, err := os.Open(eventsPath)
		if err != nil {
			return err
		}
		defer f.Close()
		in = f
	}

	// One goroutine parses lines into records, the other owns the engine;
	// the engine itself stays single-threaded.
	records := make(chan raw.Record, 64)
	g, ctx := errgroup.WithContext(context.Background())

	g.Go(func() error {
		defer close(records)
		scanner := bufio.NewScanner(in)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		line := 0
		for scanner.Scan() {
			line++
			text := scanner.Bytes()
			if len(text) == 0 {
				continue
			}
			rec, err := parseRecord(text)
			if err != nil {
				return fmt.Errorf("line %d: %w", line, err)
			}
			select {
			case records <- rec:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return scanner.Err()
	})

	g.Go(func() error {
		if catchup {
			eng.StartCatchup()
			log.Info("catch-up started", "requested", eng.CatchupCount())
			var batch []raw.Record
			for rec := range records {
				batch = append(batch, rec)
			}
			eng.ProcessCatchupReply(batch)
			drainNotify(st)
			return nil
		}
		for rec := range records {
			eng.AddRaw(rec)
			drainNotify(st)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	log.Info("replay complete",
		"alerts", st.Len(),
		"committed", tracker.Committed,
		"merged", tracker.Merged,
		"suppressed", tracker.Suppressed,
		"unwanted", tracker.Unwanted,
		"commit_p99_ms", tracker.CommitLatency(0.99),
	)

	if exportPath != "" {
		opts := export.Options{
			Compression:  export.ParseCompressionType(cfg.Export.Compression),
			RowGroupSize: cfg.Export.RowGroupSize,
		}
		if err := export.WriteFile(exportPath, st.Alerts(), opts); err != nil {
			return err
		}
		log.Info("alert log exported", "path", exportPath)
	}
	return nil
}

func drainNotify(st *store.Store) {
	for _, a := range st.PullNotify() {
		state := "new"
		if a.Removed() {
			state = "removed"
		} else if a.Seen {
			state = "seen"
		}
		fmt.Printf("%6d  %-28s  user=%016x  ts=%d  %s\n",
			a.ID, a.Kind(), uint64(a.User), a.Timestamp, state)
	}
}

// jsonRecord is the wire form of one input line.
type jsonRecord struct {
	T string                     `json:"t"`
	F map[string]json.RawMessage `json:"f"`
}

func parseRecord(data []byte) (raw.Record, error) {
	var jr jsonRecord
	if err := json.Unmarshal(data, &jr); err != nil {
		return nil, err
	}

	fields := make(map[raw.Field]any, len(jr.F))
	for code, value := range jr.F {
		v, err := parseField(raw.Field(code), value)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", code, err)
		}
		fields[raw.Field(code)] = v
	}
	return &raw.MapRecord{T: raw.Type(jr.T), Fields: fields}, nil
}

// parseField decodes a field by its code: handles are hex strings, node
// arrays are (handle, type) objects, everything else is an integer or
// plain string.
func parseField(code raw.Field, value json.RawMessage) (any, error) {
	switch code {
	case raw.FieldUser, raw.FieldRequest, raw.FieldNode, raw.FieldOwner,
		raw.FieldMeeting, raw.FieldParent:
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, err
		}
		return parseHandle(s)
	case raw.FieldNodes:
		var pairs []struct {
			H string         `json:"h"`
			T alert.NodeType `json:"t"`
		}
		if err := json.Unmarshal(value, &pairs); err != nil {
			return nil, err
		}
		hts := make([]raw.HandleType, len(pairs))
		for i, p := range pairs {
			h, err := parseHandle(p.H)
			if err != nil {
				return nil, err
			}
			hts[i] = raw.HandleType{Handle: h, Type: p.T}
		}
		return hts, nil
	default:
		var n int64
		if err := json.Unmarshal(value, &n); err == nil {
			return n, nil
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, err
		}
		return s, nil
	}
}

func parseHandle(s string) (alert.Handle, error) {
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return alert.UndefHandle, fmt.Errorf("handle %q: %w", s, err)
	}
	return alert.Handle(v), nil
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
