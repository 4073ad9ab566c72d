package output

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const ContractVersion = "1.0"

type Envelope struct {
	ContractVersion string     `json:"contract_version"`
	Command         string     `json:"command"`
	Timestamp       string     `json:"timestamp"`
	RequestID       string     `json:"request_id"`
	Success         bool       `json:"success"`
	Data            any        `json:"data,omitempty"`
	Summary         any        `json:"summary,omitempty"`
	Error           *ErrorInfo `json:"error,omitempty"`
}

type ErrorInfo struct {
	Type      string `json:"type"`
	Code      int    `json:"code,omitempty"`
	Message   string `json:"message"`
	FBTraceID string `json:"fbtrace_id,omitempty"`
	Retryable bool   `json:"retryable"`
}

// Table is tabular data with a fixed column order. Table and CSV output use
// the order as given; other data falls back to sorted keys.
type Table struct {
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func NewEnvelope(command string, success bool, data any, summary any, errorInfo *ErrorInfo) Envelope {
	return Envelope{
		ContractVersion: ContractVersion,
		Command:         command,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		RequestID:       uuid.NewString(),
		Success:         success,
		Data:            data,
		Summary:         summary,
		Error:           errorInfo,
	}
}

func Write(w io.Writer, format string, envelope Envelope) error {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return writeJSON(w, envelope)
	case "jsonl":
		return writeJSONL(w, envelope)
	case "table":
		return writeTable(w, envelope.Data)
	case "csv":
		return writeCSV(w, envelope.Data)
	default:
		return fmt.Errorf("unsupported output format %q", format)
	}
}

func writeJSON(w io.Writer, envelope Envelope) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(envelope)
}

// writeJSONL emits one envelope per row for row-shaped data.
func writeJSONL(w io.Writer, envelope Envelope) error {
	var items []any
	switch data := envelope.Data.(type) {
	case Table:
		for _, row := range data.Rows {
			items = append(items, row)
		}
	case []map[string]any:
		for _, row := range data {
			items = append(items, row)
		}
	case []any:
		items = data
	default:
		return writeLine(w, envelope)
	}
	for _, item := range items {
		line := envelope
		line.Data = item
		if err := writeLine(w, line); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, envelope Envelope) error {
	encoded, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(encoded))
	return err
}

func writeTable(w io.Writer, data any) error {
	table, err := normalizeTable(data)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 2, 2, ' ', 0)
	if _, err := fmt.Fprintln(tw, strings.Join(table.Columns, "\t")); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if _, err := fmt.Fprintln(tw, strings.Join(formatRow(row, table.Columns), "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}

func writeCSV(w io.Writer, data any) error {
	table, err := normalizeTable(data)
	if err != nil {
		return err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(table.Columns); err != nil {
		return err
	}
	for _, row := range table.Rows {
		if err := cw.Write(formatRow(row, table.Columns)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func normalizeTable(data any) (Table, error) {
	switch typed := data.(type) {
	case Table:
		return typed, nil
	case []map[string]any:
		return Table{Columns: orderedHeaders(typed), Rows: typed}, nil
	case map[string]any:
		rows := []map[string]any{typed}
		return Table{Columns: orderedHeaders(rows), Rows: rows}, nil
	default:
		return Table{}, errors.New("table/csv output requires table, map or []map data")
	}
}

func formatRow(row map[string]any, columns []string) []string {
	values := make([]string, 0, len(columns))
	for _, column := range columns {
		values = append(values, FormatValue(row[column]))
	}
	return values
}

// FormatValue renders floats with two decimals and nil as empty.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return ""
	case float64:
		return decimal.NewFromFloat(typed).StringFixed(2)
	case *float64:
		if typed == nil {
			return ""
		}
		return decimal.NewFromFloat(*typed).StringFixed(2)
	default:
		return fmt.Sprint(typed)
	}
}

func orderedHeaders(rows []map[string]any) []string {
	set := map[string]struct{}{}
	for _, row := range rows {
		for key := range row {
			set[key] = struct{}{}
		}
	}
	headers := make([]string, 0, len(set))
	for key := range set {
		headers = append(headers, key)
	}
	sort.Strings(headers)
	return headers
}
