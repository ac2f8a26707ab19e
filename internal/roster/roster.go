// Package roster loads the entity roster from CSV.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fintelworks/prospector/internal/intel"
)

// Columns: display name, canonical name, optional profile URL, optional
// website URL. The canonical name keys every index and work item; rows
// without one are skipped.

// Load reads the roster file at path.
func Load(path string) ([]intel.Entity, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open roster: %w", err)
	}
	defer f.Close()

	entities, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("roster %s: %w", path, err)
	}
	return entities, nil
}

// Parse reads roster rows from r. A header row is recognized by its
// first cell and dropped.
func Parse(r io.Reader) ([]intel.Entity, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var entities []intel.Entity
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}
		line++
		if line == 1 && isHeader(record) {
			continue
		}

		name := field(record, 1)
		if name == "" {
			continue
		}
		entities = append(entities, intel.Entity{
			Name:       name,
			ProfileURL: field(record, 2),
			WebsiteURL: field(record, 3),
		})
	}
	if len(entities) == 0 {
		return nil, fmt.Errorf("no entities in roster")
	}
	return entities, nil
}

func isHeader(record []string) bool {
	if len(record) == 0 {
		return false
	}
	first := strings.ToLower(strings.TrimSpace(record[0]))
	return first == "display_name" || first == "display name" || first == "name"
}

func field(record []string, i int) string {
	if i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
