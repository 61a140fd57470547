// Package importer loads catalog entrants from spreadsheets and exports
// bracket rosters back to xlsx.
package importer

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Row is one catalog entrant read from a sheet.
type Row struct {
	Line        int
	Name        string
	Description string
	Group       string
	ImageRef    string
	Aliases     []string
}

// Parser defines the interface for catalog sheet parsers
type Parser interface {
	Parse(data []byte) ([]Row, error)
}

// Factory creates the appropriate parser based on file extension
type Factory struct{}

func NewFactory() *Factory {
	return &Factory{}
}

// GetParser returns the appropriate parser for the given filename
func (f *Factory) GetParser(filename string) (Parser, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv":
		return NewCSVParser(), nil
	case ".xlsx", ".xlsm":
		return NewXLSXParser(), nil
	default:
		return nil, fmt.Errorf("unsupported file type: %q", ext)
	}
}

// Accepted header spellings per column.
var (
	nameHeaders        = []string{"name", "waifu", "character"}
	descriptionHeaders = []string{"description", "desc"}
	groupHeaders       = []string{"group", "anime", "series", "source"}
	imageHeaders       = []string{"image", "image_ref", "image url", "url", "picture"}
	aliasHeaders       = []string{"aliases", "alias", "nicknames"}
)

type columns struct {
	name, description, group, image, aliases int
}

// parseRows maps a header row plus data rows to catalog rows. Rows without a
// name are skipped; every other column is optional.
func parseRows(rows [][]string) ([]Row, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet is empty")
	}
	header := rows[0]
	cols := columns{
		name:        findColumn(header, nameHeaders),
		description: findColumn(header, descriptionHeaders),
		group:       findColumn(header, groupHeaders),
		image:       findColumn(header, imageHeaders),
		aliases:     findColumn(header, aliasHeaders),
	}
	if cols.name < 0 {
		return nil, fmt.Errorf("no name column in header %v", header)
	}

	var out []Row
	for i, record := range rows[1:] {
		name := cell(record, cols.name)
		if name == "" {
			continue
		}
		out = append(out, Row{
			Line:        i + 2,
			Name:        name,
			Description: cell(record, cols.description),
			Group:       cell(record, cols.group),
			ImageRef:    cell(record, cols.image),
			Aliases:     splitAliases(cell(record, cols.aliases)),
		})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no entrants found")
	}
	return out, nil
}

// findColumn returns the index of the first header matching one of names,
// ignoring case, spaces, underscores and dashes.
func findColumn(header []string, names []string) int {
	for i, col := range header {
		colNorm := normalizeHeader(col)
		for _, name := range names {
			if colNorm == normalizeHeader(name) {
				return i
			}
		}
	}
	return -1
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "").Replace(s)
}

func cell(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// splitAliases accepts aliases separated by ";" or ",".
func splitAliases(raw string) []string {
	if raw == "" {
		return nil
	}
	fields := strings.FieldsFunc(raw, func(r rune) bool { return r == ';' || r == ',' })
	var out []string
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
