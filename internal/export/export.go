package export

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// Format is a download format.
type Format string

// Supported formats.
const (
	CSV  Format = "csv"
	JSON Format = "json"
	XLSX Format = "xlsx"
)

// SheetName is the worksheet holding the rows of an XLSX export.
const SheetName = "measurements"

// ErrUnknownFormat is returned by ParseFormat for unsupported formats.
var ErrUnknownFormat = errors.New("export: unknown format")

// Columns is the header of tabular exports.
var Columns = []string{
	"_id", "sensor_id", "sensor_type_id", "experiment_id",
	"timestamp", "value", "quality_score", "quality_status",
}

// ParseFormat reads a format name; empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return CSV, nil
	case CSV, JSON, XLSX:
		return f, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// ContentType returns the MIME type of the format.
func (f Format) ContentType() string {
	switch f {
	case JSON:
		return "application/json"
	case XLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename returns the download name for base ("measurements.csv").
func (f Format) Filename(base string) string {
	return base + "." + string(f)
}

// Write encodes docs to w in format f.
func Write(w io.Writer, f Format, docs []docstore.Document) error {
	switch f {
	case CSV:
		return writeCSV(w, docs)
	case JSON:
		return writeJSON(w, docs)
	case XLSX:
		return writeXLSX(w, docs)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFormat, string(f))
	}
}

// Row flattens a measurement into the Columns order. Missing fields are
// empty strings.
func Row(doc docstore.Document) []string {
	quality := nested(doc["quality"])
	return []string{
		doc.InternalID(),
		text(doc["sensor_id"]),
		text(doc["sensor_type_id"]),
		text(doc["experiment_id"]),
		text(doc["timestamp"]),
		text(doc["value"]),
		text(quality["score"]),
		text(quality["status"]),
	}
}

func writeCSV(w io.Writer, docs []docstore.Document) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	for _, doc := range docs {
		if err := cw.Write(Row(doc)); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, docs []docstore.Document) error {
	if docs == nil {
		docs = []docstore.Document{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func writeXLSX(w io.Writer, docs []docstore.Document) error {
	f := excelize.NewFile()
	defer f.Close() //nolint:errcheck // in-memory workbook

	if _, err := f.NewSheet(SheetName); err != nil {
		return fmt.Errorf("creating sheet: %w", err)
	}
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return fmt.Errorf("removing default sheet: %w", err)
	}
	if index, err := f.GetSheetIndex(SheetName); err == nil {
		f.SetActiveSheet(index)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("creating header style: %w", err)
	}

	header := make([]any, len(Columns))
	for i, c := range Columns {
		header[i] = c
	}
	if err := f.SetSheetRow(SheetName, "A1", &header); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}
	last, _ := excelize.CoordinatesToCellName(len(Columns), 1)
	if err := f.SetCellStyle(SheetName, "A1", last, headerStyle); err != nil {
		return fmt.Errorf("styling header: %w", err)
	}
	if err := f.SetColWidth(SheetName, "A", "E", 26); err != nil {
		return fmt.Errorf("setting column width: %w", err)
	}

	for i, doc := range docs {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		row := cells(doc)
		if err := f.SetSheetRow(SheetName, cell, &row); err != nil {
			return fmt.Errorf("writing row %d: %w", i+2, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("writing workbook: %w", err)
	}
	return nil
}

// cells is Row with numeric columns kept as numbers so spreadsheets can
// chart them.
func cells(doc docstore.Document) []any {
	row := Row(doc)
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v
	}
	if v, ok := docstore.Float(doc["value"]); ok {
		out[5] = v
	}
	if v, ok := docstore.Float(nested(doc["quality"])["score"]); ok {
		out[6] = v
	}
	return out
}

func nested(v any) map[string]any {
	switch m := v.(type) {
	case docstore.Document:
		return m
	case map[string]any:
		return m
	default:
		return nil
	}
}

func text(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case docstore.Time:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		if f, ok := docstore.Float(v); ok {
			return strconv.FormatFloat(f, 'f', -1, 64)
		}
		return fmt.Sprint(v)
	}
}
