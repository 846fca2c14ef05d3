// Package render writes reconciled division state back out, either as a
// tracking workbook the next run can read as its snapshot or as JSON.
package render

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/recycling-monitor/internal/reconcile"
)

// Format is an output format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat validates an output format name. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatXLSX:
		return FormatXLSX, nil
	case FormatJSON:
		return FormatJSON, nil
	}
	return "", eris.Errorf("render: unknown format %q (want xlsx or json)", s)
}

// JSON encodes a run result.
func JSON(w io.Writer, res *reconcile.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return eris.Wrap(err, "render: encode json")
	}
	return nil
}

// JSONFile writes a run result to path.
func JSONFile(path string, res *reconcile.Result) error {
	return atomicWrite(path, func(tmp string) error {
		f, err := os.Create(tmp)
		if err != nil {
			return eris.Wrap(err, "render: create json")
		}
		if err := JSON(f, res); err != nil {
			f.Close() //nolint:errcheck
			return err
		}
		return eris.Wrap(f.Close(), "render: close json")
	})
}

// atomicWrite lets write produce a temporary file next to path, then moves it
// into place. A failed run never leaves a half-written output behind.
func atomicWrite(path string, write func(tmp string) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "render: create dir for %s", path)
	}
	tmp := filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
	if err := write(tmp); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp) //nolint:errcheck
		return eris.Wrapf(err, "render: move %s into place", path)
	}
	return nil
}
