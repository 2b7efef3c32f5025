// Package export writes CSV reports with the same field policy the API
// applies to responses.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/placementcell/campus-api/internal/masking"
	"github.com/placementcell/campus-api/internal/policy"
)

// ErrRowWidth is returned when a row has more cells than the header.
var ErrRowWidth = errors.New("export: row is wider than header")

// Exporter writes CSV with columns classified by a policy registry.
type Exporter struct {
	registry *policy.Registry
	rules    *masking.RuleSet
}

// New returns an Exporter. Nil arguments select the built-in tables.
func New(registry *policy.Registry, rules *masking.RuleSet) *Exporter {
	if registry == nil {
		registry = policy.Default()
	}
	if rules == nil {
		rules = masking.Default()
	}
	return &Exporter{registry: registry, rules: rules}
}

// WriteCSV writes header and rows with the built-in tables: AlwaysRemove
// columns are left out and AlwaysMask columns are masked with
// masking.MaskField.
func WriteCSV(w io.Writer, header []string, rows [][]string) error {
	role := policy.Role("")
	return New(nil, nil).Write(w, &role, header, rows)
}

// Write writes header and rows for a caller with role. AlwaysRemove columns
// are always left out. A nil role is the admin bypass and masks nothing;
// otherwise AlwaysMask columns and the role's conditional columns are masked.
// Rows shorter than the header are padded with empty cells.
func (e *Exporter) Write(w io.Writer, role *policy.Role, header []string, rows [][]string) error {
	keep := make([]int, 0, len(header))
	mask := make([]bool, len(header))
	for i, name := range header {
		if e.registry.ShouldRemove(name) {
			continue
		}
		keep = append(keep, i)
		mask[i] = role != nil && e.registry.ShouldMask(name, *role)
	}

	cw := csv.NewWriter(w)
	out := make([]string, len(keep))
	for j, i := range keep {
		out[j] = header[i]
	}
	if err := cw.Write(out); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for n, row := range rows {
		if len(row) > len(header) {
			return fmt.Errorf("%w: row %d has %d cells, header has %d", ErrRowWidth, n, len(row), len(header))
		}
		for j, i := range keep {
			var cell string
			if i < len(row) {
				cell = row[i]
			}
			// Empty cells stand for absent values, which are never masked.
			if mask[i] && cell != "" {
				cell = e.rules.Mask(header[i], cell)
			}
			out[j] = cell
		}
		if err := cw.Write(out); err != nil {
			return fmt.Errorf("failed to write row %d: %w", n, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
