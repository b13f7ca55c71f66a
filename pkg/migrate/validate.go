package migrate

import (
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strings"
)

var sqlFileRe = regexp.MustCompile(`^(\d{14})_[a-z0-9_]+\.sql$`)

var requiredMarkers = []string{"-- +goose Up", "-- +goose Down"}

type migrationFile struct {
	name    string
	version int64
}

// ValidateDir checks that every migration in dir is named
// YYYYMMDDHHMMSS_name.sql, that versions are unique and that each file has
// both goose sections.
func ValidateDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("dir is required")
	}
	return validateFS(os.DirFS(dir))
}

func validateFS(fsys fs.FS) error {
	files, err := scan(fsys)
	if err != nil {
		return err
	}
	seen := make(map[int64]string, len(files))
	for _, f := range files {
		if prev, ok := seen[f.version]; ok {
			return fmt.Errorf("duplicate migration version %d in %q and %q", f.version, prev, f.name)
		}
		seen[f.version] = f.name

		body, err := fs.ReadFile(fsys, f.name)
		if err != nil {
			return fmt.Errorf("read file %q: %w", f.name, err)
		}
		for _, marker := range requiredMarkers {
			if !strings.Contains(string(body), marker) {
				return fmt.Errorf("migration %q missing %q", f.name, marker)
			}
		}
	}
	return nil
}

func latestVersion(dir string) (int64, error) {
	files, err := scan(os.DirFS(dir))
	if err != nil {
		return 0, err
	}
	var latest int64
	for _, f := range files {
		if f.version > latest {
			latest = f.version
		}
	}
	return latest, nil
}

// scan lists the .sql files at the root of fsys.
func scan(fsys fs.FS) ([]migrationFile, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var out []migrationFile
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".sql") {
			continue
		}
		m := sqlFileRe.FindStringSubmatch(e.Name())
		if m == nil {
			return nil, fmt.Errorf("invalid migration filename %q (expected YYYYMMDDHHMMSS_name.sql)", e.Name())
		}
		version, err := ParseVersion(m[1])
		if err != nil {
			return nil, err
		}
		out = append(out, migrationFile{name: e.Name(), version: version})
	}
	return out, nil
}
