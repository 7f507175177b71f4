package migrate

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

var slugRe = regexp.MustCompile(`[^a-z0-9]+`)

const migrationTemplate = `-- +goose Up
-- +goose StatementBegin
-- %[1]s
SELECT 1;
-- +goose StatementEnd

-- +goose Down
-- +goose StatementBegin
SELECT 1;
-- +goose StatementEnd
`

// CreateSQLMigration writes <dir>/<version>_<slug>.sql stamped with the
// current UTC time.
func CreateSQLMigration(dir, name string) (string, error) {
	return createSQLMigration(dir, name, time.Now().UTC())
}

func createSQLMigration(dir, name string, now time.Time) (string, error) {
	if dir == "" {
		return "", errors.New("dir is required")
	}
	slug := strings.Trim(slugRe.ReplaceAllString(strings.ToLower(name), "_"), "_")
	if slug == "" {
		return "", fmt.Errorf("migration name %q has no usable characters", name)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create dir %q: %w", dir, err)
	}

	// Two migrations created in the same second would collide on version.
	for attempt := 0; attempt < 60; attempt++ {
		version := now.Add(time.Duration(attempt) * time.Second).Format(versionTemplate)
		if taken, err := versionTaken(dir, version); err != nil {
			return "", err
		} else if taken {
			continue
		}
		full := filepath.Join(dir, version+"_"+slug+".sql")
		f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err != nil {
			if errors.Is(err, fs.ErrExist) {
				continue
			}
			return "", fmt.Errorf("create %q: %w", full, err)
		}
		_, werr := fmt.Fprintf(f, migrationTemplate, slug)
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		if werr != nil {
			return "", fmt.Errorf("write %q: %w", full, werr)
		}
		return full, nil
	}
	return "", fmt.Errorf("no free migration version near %s", now.Format(versionTemplate))
}

func versionTaken(dir, version string) (bool, error) {
	matches, err := filepath.Glob(filepath.Join(dir, version+"_*.sql"))
	if err != nil {
		return false, err
	}
	return len(matches) > 0, nil
}
