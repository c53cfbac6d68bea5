// Package files reads and writes the pipeline's intermediate artefacts:
// raw JSON arrays, CSV tables and JSON lines.
package files

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/okian/nbaetl/internal/domain/model"
)

const (
	dirPerm  = 0o755
	filePerm = 0o644
	indent   = "  "
)

// Exists reports whether path names an existing regular file.
func Exists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// WriteJSON writes v as indented JSON, creating parent directories.
func WriteJSON(path string, v any) error {
	b, err := json.MarshalIndent(v, "", indent)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrEncode, path, err)
	}
	return writeAtomic(path, append(b, '\n'))
}

// ReadRecords decodes a JSON array of objects. Numbers stay json.Number.
func ReadRecords(path string) ([]model.RawRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	dec := json.NewDecoder(bufio.NewReader(f))
	dec.UseNumber()
	var out []model.RawRecord
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}
	return out, nil
}

// WriteCSV writes a header and rows without an index column. Cells are
// rendered with FormatCell.
func WriteCSV(path string, header []string, rows [][]any) error {
	return writeWith(path, func(w io.Writer) error {
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return err
		}
		rec := make([]string, len(header))
		for _, row := range rows {
			for i := range rec {
				rec[i] = ""
				if i < len(row) {
					rec[i] = FormatCell(row[i])
				}
			}
			if err := cw.Write(rec); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	})
}

// WriteJSONLines writes one compact JSON document per line.
func WriteJSONLines[T any](path string, items []T) error {
	return writeWith(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		for _, it := range items {
			if err := enc.Encode(it); err != nil {
				return err
			}
		}
		return nil
	})
}

// FormatCell renders a value the way a dataframe would write it: nil is an
// empty cell, integral floats lose their fraction, nested values become JSON.
func FormatCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case *int64:
		if x == nil {
			return ""
		}
		return strconv.FormatInt(*x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		if x {
			return "True"
		}
		return "False"
	default:
		return model.AsString(x)
	}
}

func writeWith(path string, fn func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	bw := bufio.NewWriter(tmp)
	werr := fn(bw)
	if werr == nil {
		werr = bw.Flush()
	}
	cerr := tmp.Close()
	if err := errors.Join(werr, cerr); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := os.Chmod(tmp.Name(), filePerm); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("%w: %s: %w", ErrWrite, path, err)
	}
	return nil
}

func writeAtomic(path string, b []byte) error {
	return writeWith(path, func(w io.Writer) error {
		_, err := w.Write(b)
		return err
	})
}

// Local implements file access on the local filesystem.
type Local struct{}

func (Local) Exists(path string) bool { return Exists(path) }

func (Local) ReadRecords(path string) ([]model.RawRecord, error) { return ReadRecords(path) }

func (Local) WriteCSV(path string, header []string, rows [][]any) error {
	return WriteCSV(path, header, rows)
}

func (Local) WriteJSON(path string, v any) error { return WriteJSON(path, v) }
