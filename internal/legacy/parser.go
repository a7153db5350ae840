// Package legacy decodes the fixed-format export and settings files written
// by the legacy markbook. Parsing is pure and stateless: file in, structured
// record out.
package legacy

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/openmarks/markbook-api/internal/models"
)

// ErrFormat tags any malformed export file condition. Callers surface it as
// a parse error for the specific file without aborting a larger import.
var ErrFormat = errors.New("malformed legacy export")

const exportMagic = "MKEXP1"

// ParseExportFile decodes one fixed-format export file. The header line is
// `MKEXP1 <lastStudent>`; each block is three lines: title, maximum score,
// and a space-separated value line of length lastStudent or lastStudent+1.
// Blank lines and `#` comments are skipped. A negative raw value means the
// score was never entered.
func ParseExportFile(path string) (*models.ExportFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %v", ErrFormat, path, err)
	}
	defer f.Close() //nolint:errcheck
	return parseExport(f)
}

func parseExport(r io.Reader) (*models.ExportFile, error) {
	lines := newLineReader(r)

	header, ok := lines.next()
	if !ok {
		return nil, fmt.Errorf("%w: empty file", ErrFormat)
	}
	fields := strings.Fields(header)
	if len(fields) != 2 || fields[0] != exportMagic {
		return nil, fmt.Errorf("%w: bad header %q", ErrFormat, header)
	}
	lastStudent, err := strconv.Atoi(fields[1])
	if err != nil || lastStudent < 0 {
		return nil, fmt.Errorf("%w: bad student count %q", ErrFormat, fields[1])
	}

	out := &models.ExportFile{LastStudent: lastStudent}
	for {
		title, ok := lines.next()
		if !ok {
			break
		}
		outOfRaw, ok := lines.next()
		if !ok {
			return nil, fmt.Errorf("%w: block %q truncated before maximum score", ErrFormat, title)
		}
		outOf, err := strconv.ParseFloat(strings.TrimSpace(outOfRaw), 64)
		if err != nil || outOf <= 0 {
			return nil, fmt.Errorf("%w: block %q has bad maximum score %q", ErrFormat, title, outOfRaw)
		}
		valuesRaw, ok := lines.next()
		if !ok {
			return nil, fmt.Errorf("%w: block %q truncated before values", ErrFormat, title)
		}
		values, err := parseValues(valuesRaw)
		if err != nil {
			return nil, fmt.Errorf("%w: block %q: %v", ErrFormat, title, err)
		}
		// Legacy files may carry one extra trailing slot; accept either
		// length and align by index from the start.
		if len(values) != lastStudent && len(values) != lastStudent+1 {
			return nil, fmt.Errorf("%w: block %q has %d values, expected %d or %d",
				ErrFormat, title, len(values), lastStudent, lastStudent+1)
		}
		out.Blocks = append(out.Blocks, models.ExportBlock{
			Title:  strings.TrimSpace(title),
			OutOf:  outOf,
			Values: values,
		})
	}
	return out, nil
}

func parseValues(raw string) ([]float64, error) {
	fields := strings.Fields(raw)
	values := make([]float64, 0, len(fields))
	for _, field := range fields {
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", field)
		}
		values = append(values, v)
	}
	return values, nil
}

// ParseUserConfig decodes the legacy settings file into calculation-config
// defaults. Failure is soft: callers treat it as "no override available",
// never as fatal to a larger import.
func ParseUserConfig(path string) (*models.LegacyUserConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open settings %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck
	return parseUserConfig(f)
}

func parseUserConfig(r io.Reader) (*models.LegacyUserConfig, error) {
	cfg := &models.LegacyUserConfig{}
	lines := newLineReader(r)
	for {
		line, ok := lines.next()
		if !ok {
			break
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "roff":
			cfg.RoffDefault = value == "1" || strings.EqualFold(value, "true")
		case "modeLevels":
			levels, err := strconv.Atoi(value)
			if err != nil || levels < 1 {
				return nil, fmt.Errorf("bad modeLevels %q", value)
			}
			cfg.ModeActiveLevels = levels
		case "modeVals":
			vals, err := parseCSVFloats(value)
			if err != nil {
				return nil, fmt.Errorf("bad modeVals: %w", err)
			}
			cfg.ModeVals = vals
		case "modeSymbols":
			cfg.ModeSymbols = splitCSV(value)
		}
	}
	if cfg.ModeActiveLevels > 0 && len(cfg.ModeVals) < 2*cfg.ModeActiveLevels {
		return nil, fmt.Errorf("modeVals has %d entries, need %d", len(cfg.ModeVals), 2*cfg.ModeActiveLevels)
	}
	return cfg, nil
}

func parseCSVFloats(raw string) ([]float64, error) {
	parts := splitCSV(raw)
	vals := make([]float64, 0, len(parts))
	for _, part := range parts {
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("bad value %q", part)
		}
		vals = append(vals, v)
	}
	return vals, nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// lineReader yields trimmed content lines, skipping blanks and comments.
type lineReader struct {
	scanner *bufio.Scanner
}

func newLineReader(r io.Reader) *lineReader {
	return &lineReader{scanner: bufio.NewScanner(r)}
}

func (l *lineReader) next() (string, bool) {
	for l.scanner.Scan() {
		line := strings.TrimRight(l.scanner.Text(), "\r\n")
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return line, true
	}
	return "", false
}
