package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"regexp"
	"sort"
	"strings"
)

const (
	upMarker        = "-- +goose Up"
	downMarker      = "-- +goose Down"
	statementBegin  = "-- +goose StatementBegin"
	statementEnd    = "-- +goose StatementEnd"
	versionTemplate = "20060102150405"
)

var migrationNameRe = regexp.MustCompile(`^(\d{14})_([a-z0-9_]+)\.sql$`)

// ValidateDir checks the migrations stored on disk under dir.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("stat dir %q: %w", dir, err)
	}
	return ValidateFS(os.DirFS(dir), ".")
}

// ValidateEmbedded checks the migrations compiled into the binary.
func ValidateEmbedded() error {
	return ValidateFS(Embedded, embeddedDir)
}

// ValidateFS enforces the repo's goose conventions: timestamped unique
// versions, an Up section ahead of a Down section, and balanced statement
// blocks.
func ValidateFS(fsys fs.FS, dir string) error {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return fmt.Errorf("read migrations %q: %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	versions := make(map[string]string, len(names))
	for _, name := range names {
		m := migrationNameRe.FindStringSubmatch(name)
		if m == nil {
			return fmt.Errorf("invalid migration filename %q (expected %s_name.sql)", name, versionTemplate)
		}
		if prev, dup := versions[m[1]]; dup {
			return fmt.Errorf("migrations %q and %q share version %s", prev, name, m[1])
		}
		versions[m[1]] = name

		body, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return fmt.Errorf("read %q: %w", name, err)
		}
		if err := validateBody(string(body)); err != nil {
			return fmt.Errorf("migration %q: %w", name, err)
		}
	}
	return nil
}

func validateBody(sql string) error {
	up := strings.Index(sql, upMarker)
	down := strings.Index(sql, downMarker)
	switch {
	case up < 0:
		return fmt.Errorf("missing %q", upMarker)
	case down < 0:
		return fmt.Errorf("missing %q", downMarker)
	case down < up:
		return fmt.Errorf("%q must precede %q", upMarker, downMarker)
	}
	if strings.TrimSpace(stripComments(sql[up+len(upMarker):down])) == "" {
		return fmt.Errorf("up section has no statements")
	}

	depth := 0
	for _, line := range strings.Split(sql, "\n") {
		switch strings.TrimSpace(line) {
		case statementBegin:
			depth++
		case statementEnd:
			depth--
		}
		if depth < 0 || depth > 1 {
			return fmt.Errorf("unbalanced statement blocks")
		}
	}
	if depth != 0 {
		return fmt.Errorf("unterminated statement block")
	}
	return nil
}

func stripComments(sql string) string {
	var b strings.Builder
	for _, line := range strings.Split(sql, "\n") {
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String()
}
