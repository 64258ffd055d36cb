package layout

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// baseFile is the fallback layout used when no device-specific file exists.
const baseFile = "base.json"

// ResolveFile picks the layout file for a device: <deviceID>.json inside dir
// when present, otherwise base.json. ErrNoLayoutFile is returned when
// neither exists.
func ResolveFile(dir, deviceID string) (string, error) {
	if deviceID != "" {
		p := filepath.Join(dir, deviceID+".json")
		if _, err := os.Stat(p); err == nil {
			return p, nil
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("layout: stat %s: %w", p, err)
		}
	}
	p := filepath.Join(dir, baseFile)
	if _, err := os.Stat(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w in %s", ErrNoLayoutFile, dir)
		}
		return "", fmt.Errorf("layout: stat %s: %w", p, err)
	}
	return p, nil
}

// LoadFile reads and decodes a directive list from a layout file.
func LoadFile(path string) (List, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("layout: read %s: %w", path, err)
	}
	var l List
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("layout: parse %s: %w", path, err)
	}
	return l, nil
}
