// internal/blob/store.go
package blob

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store persists opaque binary artifacts (evidence files, profile photos)
// and returns a handle the rest of the system treats as an opaque string.
type Store interface {
	Save(ctx context.Context, name string, data []byte) (string, error)
}

// DirStore is a local-filesystem Store. Files land under
// <root>/<YYYY>/<MM>/<DD>/<name>; the returned handle is the path relative
// to root.
type DirStore struct {
	root string
}

// NewDirStore creates a DirStore rooted at the given directory.
func NewDirStore(root string) *DirStore {
	return &DirStore{root: root}
}

// Save writes data under a date-partitioned path and returns its handle.
func (s *DirStore) Save(ctx context.Context, name string, data []byte) (string, error) {
	now := time.Now().UTC()
	rel := filepath.Join(now.Format("2006"), now.Format("01"), now.Format("02"), name)
	full := filepath.Join(s.root, rel)

	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return "", fmt.Errorf("blob store: mkdir for %s: %w", rel, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return "", fmt.Errorf("blob store: write %s: %w", rel, err)
	}
	return rel, nil
}
