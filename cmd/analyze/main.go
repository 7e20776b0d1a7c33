// analyze runs the full movement-analysis pipeline over one captured session
// file: synchronization, filtering, event detection, metric computation and
// alerting. Results can be persisted to a sqlite database and rendered as an
// HTML report.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/stridelabs/kneemetry/internal/biomech/pipeline"
	"github.com/stridelabs/kneemetry/internal/config"
	"github.com/stridelabs/kneemetry/internal/monitoring"
	"github.com/stridelabs/kneemetry/internal/report"
	"github.com/stridelabs/kneemetry/internal/sessionfile"
	"github.com/stridelabs/kneemetry/internal/storage/sqlite"
	"github.com/stridelabs/kneemetry/internal/version"
)

func main() {
	var (
		sessionPath   string
		configPath    string
		dbPath        string
		migrationsDir string
		reportPath    string
		jsonPath      string
		verbose       bool
		trace         bool
		timeout       time.Duration
		showVersion   bool
	)
	flag.StringVar(&sessionPath, "session", "", "session capture file to analyze (required)")
	flag.StringVar(&configPath, "config", "", "analysis config file; built-in defaults when empty")
	flag.StringVar(&dbPath, "db", "", "sqlite database to persist results into; skipped when empty")
	flag.StringVar(&migrationsDir, "migrations", "db/migrations", "schema migrations directory, used with -db")
	flag.StringVar(&reportPath, "report", "", "write an HTML report to this path")
	flag.StringVar(&jsonPath, "json", "", "write the full result as JSON to this path")
	flag.BoolVar(&verbose, "v", false, "enable diagnostic logging")
	flag.BoolVar(&trace, "vv", false, "enable per-channel trace logging (implies -v)")
	flag.DurationVar(&timeout, "timeout", 2*time.Minute, "analysis deadline")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("analyze %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}
	if sessionPath == "" {
		log.Fatalf("-session is required")
	}

	var diag, tr io.Writer
	if verbose || trace {
		diag = os.Stderr
	}
	if trace {
		tr = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, diag, tr)

	var cfg *config.AnalysisConfig
	if configPath != "" {
		var err error
		cfg, err = config.LoadAnalysisConfig(configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
	} else {
		cfg = config.MustLoadDefaultConfig()
	}

	session, err := sessionfile.Load(sessionPath)
	if err != nil {
		log.Fatalf("load session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	res, err := pipeline.NewOrchestrator(cfg, nil).Run(ctx, session)
	if err != nil {
		log.Fatalf("analysis failed in phase %s: %v", res.Phase, err)
	}
	fmt.Println(res.Summary)
	if !res.Success {
		monitoring.Logf("session %s produced no usable metrics", res.SessionID)
	}

	if dbPath != "" {
		if err := persist(dbPath, migrationsDir, res); err != nil {
			log.Fatalf("persist: %v", err)
		}
		fmt.Printf("saved session %s to %s\n", res.SessionID, dbPath)
	}
	if reportPath != "" {
		if err := writeReport(reportPath, res); err != nil {
			log.Fatalf("report: %v", err)
		}
		fmt.Printf("report written to %s\n", reportPath)
	}
	if jsonPath != "" {
		if err := writeJSON(jsonPath, res); err != nil {
			log.Fatalf("json: %v", err)
		}
	}
	if !res.Success {
		os.Exit(1)
	}
}

func persist(dbPath, migrationsDir string, res *pipeline.Result) error {
	db, err := sqlite.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := sqlite.MigrateUp(db, migrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return sqlite.NewResultStore(db).SaveResult(res)
}

func writeReport(path string, res *pipeline.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := report.Render(f, res); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func writeJSON(path string, res *pipeline.Result) error {
	data, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
