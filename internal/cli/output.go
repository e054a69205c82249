package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/steamcity/iot-platform/internal/docstore"
)

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("formatting response: %w", err)
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}

// column is one table column read from a document field.
type column struct {
	header string
	field  string
}

// printTable writes docs as an aligned table, or empty when there are none.
func printTable(w io.Writer, docs []docstore.Document, cols []column, empty string) error {
	if len(docs) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	headers := make([]string, len(cols))
	rules := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.header
		rules[i] = strings.Repeat("-", len(c.header))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	fmt.Fprintln(tw, strings.Join(rules, "\t"))

	row := make([]string, len(cols))
	for _, doc := range docs {
		for i, c := range cols {
			row[i] = cell(doc[c.field])
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	return tw.Flush()
}

// cell renders a field value for a table.
func cell(v any) string {
	switch t := v.(type) {
	case nil:
		return "-"
	case string:
		return t
	case docstore.Time:
		return t.String()
	case float64:
		return fmt.Sprintf("%g", t)
	default:
		return fmt.Sprint(t)
	}
}
