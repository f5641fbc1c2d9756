package setup

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// StaticCollector copies static assets from the configured source
// directories into a single serving root. Each run fully replaces the root:
// stale files from previous runs never survive.
type StaticCollector struct {
	srcs []string
	root string
}

// NewStaticCollector returns a collector for the given source dirs and root.
func NewStaticCollector(srcs []string, root string) *StaticCollector {
	return &StaticCollector{srcs: srcs, root: root}
}

// Collect clears the root and copies every regular file from the sources,
// preserving paths relative to each source. Later sources win on collision.
// Returns the number of files collected. Missing source directories are
// logged and skipped.
func (c *StaticCollector) Collect(ctx context.Context) (int, error) {
	if c.root == "" {
		return 0, fmt.Errorf("static root not configured")
	}

	if err := os.RemoveAll(c.root); err != nil {
		return 0, fmt.Errorf("clearing static root %s: %w", c.root, err)
	}
	if err := os.MkdirAll(c.root, 0o755); err != nil {
		return 0, fmt.Errorf("creating static root %s: %w", c.root, err)
	}

	count := 0
	for _, src := range c.srcs {
		info, err := os.Stat(src)
		if os.IsNotExist(err) {
			slog.WarnContext(ctx, "static source directory missing, skipping", "dir", src)
			continue
		}
		if err != nil {
			return count, fmt.Errorf("inspecting static source %s: %w", src, err)
		}
		if !info.IsDir() {
			return count, fmt.Errorf("static source %s is not a directory", src)
		}

		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}

			rel, err := filepath.Rel(src, path)
			if err != nil {
				return err
			}

			dst := filepath.Join(c.root, rel)
			if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
				return err
			}
			if err := copyFile(path, dst); err != nil {
				return err
			}
			count++
			return nil
		})
		if err != nil {
			return count, fmt.Errorf("collecting from %s: %w", src, err)
		}
	}

	return count, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck
		return err
	}
	return out.Close()
}
