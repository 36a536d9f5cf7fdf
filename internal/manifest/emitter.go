package manifest

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/catalystcommunity/app-utils-go/logging"
)

// Encode renders the manifest envelope as the supervisor consumes it. Go's
// JSON encoder sorts map keys, so identical inputs produce byte-identical
// output.
func Encode(m *Manifest) ([]byte, error) {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding manifest: %w", err)
	}
	return append(data, '\n'), nil
}

// Emit writes the manifest to the canonical path. The write goes through a
// temp file and rename so an abort never leaves a partial manifest at the
// path the supervisor watches.
func Emit(m *Manifest, path string) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating manifest directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating manifest temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing manifest: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing manifest: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing manifest temp file: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing manifest to %s: %w", path, err)
	}

	logging.Log.WithField("path", path).
		WithField("apps", len(m.Apps)).
		WithField("service_pairs", len(m.ServicePairs)).
		Info("Manifest emitted")

	return nil
}
