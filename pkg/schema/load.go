package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ha1tch/erd-toolkit/pkg/erd"
	"github.com/ha1tch/erd-toolkit/pkg/erdfile"
)

// LoadDiagram reads a diagram from a JSON document or a SQLite database,
// chosen by file extension. A missing database is an error rather than
// a new empty file.
func LoadDiagram(ctx context.Context, path string, opts Options) (*erd.Diagram, error) {
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		return erdfile.ParseJSON(data)
	case ".db", ".sqlite", ".sqlite3":
		if _, err := os.Stat(path); err != nil {
			return nil, err
		}
		d, err := LoadFile(ctx, path, opts)
		if err != nil {
			return nil, err
		}
		d.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		return d, nil
	default:
		return nil, fmt.Errorf("unknown file format: %s", ext)
	}
}
