// Package classmap loads the index→label vocabulary of the audio event model.
package classmap

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/harunnryd/scenecue/pkg/errorsx"
)

// ClassMap is an immutable, dense index→display-name table. Build it once
// at startup and share the handle.
type ClassMap struct {
	names []string
}

// Load reads a class map CSV file ("index,mid,display_name").
func Load(path string) (*ClassMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errorsx.Wrap(fmt.Errorf("open class map: %w", err), errorsx.ReasonClassMap)
	}
	defer f.Close()
	return Parse(f)
}

// Parse reads the CSV form from r. The header row is optional; the name
// column is the last one so that two-column maps also load.
func Parse(r io.Reader) (*ClassMap, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	byIndex := map[int]string{}
	maxIdx := -1
	line := 0
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, errorsx.Wrap(fmt.Errorf("parse class map: %w", err), errorsx.ReasonClassMap)
		}
		line++
		if len(rec) < 2 {
			return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map line %d: expected at least 2 columns", line)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(rec[0]))
		if err != nil {
			if line == 1 {
				continue
			}
			return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map line %d: bad index %q", line, rec[0])
		}
		if idx < 0 {
			return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map line %d: negative index", line)
		}
		if _, dup := byIndex[idx]; dup {
			return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map line %d: duplicate index %d", line, idx)
		}
		byIndex[idx] = strings.TrimSpace(rec[len(rec)-1])
		if idx > maxIdx {
			maxIdx = idx
		}
	}
	if maxIdx < 0 {
		return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map is empty")
	}
	names := make([]string, maxIdx+1)
	for i := range names {
		name, ok := byIndex[i]
		if !ok {
			return nil, errorsx.Newf(errorsx.ReasonClassMap, "class map missing index %d", i)
		}
		names[i] = name
	}
	return &ClassMap{names: names}, nil
}

// New builds a class map from names in index order.
func New(names []string) *ClassMap {
	return &ClassMap{names: append([]string(nil), names...)}
}

func (c *ClassMap) Len() int { return len(c.names) }

// Name returns the label at idx.
func (c *ClassMap) Name(idx int) (string, bool) {
	if idx < 0 || idx >= len(c.names) {
		return "", false
	}
	return c.names[idx], true
}
