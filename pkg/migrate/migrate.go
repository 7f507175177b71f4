package migrate

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

const DefaultDir = "pkg/migrate/migrations"

// embeddedDir is the path of the migrations inside Embedded.
const embeddedDir = "migrations"

// Embedded carries the SQL migrations into every binary so they run from any
// working directory.
//
//go:embed migrations/*.sql
var Embedded embed.FS

// Source is a set of goose SQL migrations rooted at the top of FS.
type Source struct {
	FS    fs.FS
	Label string
}

// DirSource reads migrations from a directory on disk.
func DirSource(dir string) (Source, error) {
	if dir == "" {
		return Source{}, errors.New("migrations dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return Source{}, fmt.Errorf("migrations dir: %w", err)
	}
	return Source{FS: os.DirFS(dir), Label: dir}, nil
}

// EmbeddedSource returns the migrations compiled into the binary.
func EmbeddedSource() Source {
	sub, err := fs.Sub(Embedded, embeddedDir)
	if err != nil {
		panic(fmt.Sprintf("embedded migrations: %v", err))
	}
	return Source{FS: sub, Label: "embedded"}
}

// Runner applies one Source to one Postgres database.
type Runner struct {
	provider *goose.Provider
	logg     *logger.Logger
	label    string
}

func NewRunner(db *sql.DB, src Source, logg *logger.Logger) (*Runner, error) {
	if db == nil {
		return nil, errors.New("db is required")
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, src.FS)
	if err != nil {
		return nil, fmt.Errorf("goose provider (%s): %w", src.Label, err)
	}
	return &Runner{provider: provider, logg: logg, label: src.Label}, nil
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.logResults(ctx, results...)
	if err != nil {
		return fmt.Errorf("goose up (%s): %w", r.label, err)
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.logResults(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("goose down (%s): %w", r.label, err)
	}
	return nil
}

// Status logs the applied state of every known migration.
func (r *Runner) Status(ctx context.Context) error {
	statuses, err := r.provider.Status(ctx)
	if err != nil {
		return fmt.Errorf("goose status (%s): %w", r.label, err)
	}
	for _, st := range statuses {
		if r.logg == nil {
			continue
		}
		fields := map[string]any{"version": st.Source.Version, "path": st.Source.Path, "state": string(st.State)}
		if !st.AppliedAt.IsZero() {
			fields["applied_at"] = st.AppliedAt
		}
		r.logg.Info(r.logg.WithFields(ctx, fields), "migration status")
	}
	return nil
}

// ToVersion migrates up or down until the database sits at target, given as
// the YYYYMMDDHHMMSS prefix of a migration file.
func (r *Runner) ToVersion(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil || version < 0 {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS)", target)
	}
	current, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return fmt.Errorf("get db version: %w", err)
	}

	var results []*goose.MigrationResult
	switch {
	case current == version:
		return nil
	case current < version:
		results, err = r.provider.UpTo(ctx, version)
	default:
		results, err = r.provider.DownTo(ctx, version)
	}
	r.logResults(ctx, results...)
	if err != nil {
		return fmt.Errorf("goose to %d from %d: %w", version, current, err)
	}
	return nil
}

func (r *Runner) logResults(ctx context.Context, results ...*goose.MigrationResult) {
	if r.logg == nil {
		return
	}
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"version":     res.Source.Version,
			"path":        res.Source.Path,
			"direction":   res.Direction,
			"duration_ms": res.Duration.Milliseconds(),
		}), "migration applied")
	}
}
