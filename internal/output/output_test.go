package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestJSONEnvelopeIncludesContractVersion(t *testing.T) {
	t.Parallel()

	envelope := NewEnvelope("adlens report view", true, map[string]any{"status": "ok"}, nil, nil)

	var buf bytes.Buffer
	if err := Write(&buf, "json", envelope); err != nil {
		t.Fatalf("write json: %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if decoded["contract_version"] != ContractVersion {
		t.Fatalf("unexpected contract version: got=%v want=%s", decoded["contract_version"], ContractVersion)
	}
	if decoded["command"] != "adlens report view" {
		t.Fatalf("unexpected command: %v", decoded["command"])
	}
	if id, _ := decoded["request_id"].(string); len(id) != 36 {
		t.Fatalf("expected uuid request id, got %q", id)
	}
}

func TestJSONLEnvelopeLineCountForTable(t *testing.T) {
	t.Parallel()

	table := Table{
		Columns: []string{"id"},
		Rows:    []map[string]any{{"id": "1"}, {"id": "2"}},
	}
	var buf bytes.Buffer
	if err := Write(&buf, "jsonl", NewEnvelope("adlens report view", true, table, nil, nil)); err != nil {
		t.Fatalf("write jsonl: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("unexpected jsonl line count: got=%d want=2", len(lines))
	}
	for _, line := range lines {
		var decoded map[string]any
		if err := json.Unmarshal([]byte(line), &decoded); err != nil {
			t.Fatalf("decode line: %v", err)
		}
		if _, ok := decoded["data"].(map[string]any); !ok {
			t.Fatalf("expected row data in line: %v", decoded)
		}
	}
}

func TestCSVKeepsColumnOrderAndRoundsFloats(t *testing.T) {
	t.Parallel()

	change := -12.345
	table := Table{
		Columns: []string{"name", "spend", "ctr", "change"},
		Rows: []map[string]any{
			{"name": "Launch", "spend": 10.0, "ctr": 2.456, "change": &change},
			{"name": "Retarget", "spend": 3.1},
		},
	}
	var buf bytes.Buffer
	if err := Write(&buf, "csv", NewEnvelope("adlens report view", true, table, nil, nil)); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	want := "name,spend,ctr,change\nLaunch,10.00,2.46,-12.35\nRetarget,3.10,,\n"
	if got := buf.String(); got != want {
		t.Fatalf("unexpected csv:\ngot=%q\nwant=%q", got, want)
	}
}

func TestTableFallsBackToSortedHeaders(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	if err := Write(&buf, "table", NewEnvelope("adlens auth list", true, []map[string]any{{"b": 1, "a": "x"}}, nil, nil)); err != nil {
		t.Fatalf("write table: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "a") {
		t.Fatalf("unexpected table output: %q", buf.String())
	}
}

func TestWriteRejectsUnsupportedInput(t *testing.T) {
	t.Parallel()

	if err := Write(&bytes.Buffer{}, "xml", NewEnvelope("x", true, nil, nil, nil)); err == nil {
		t.Fatal("expected unsupported format error")
	}
	if err := Write(&bytes.Buffer{}, "csv", NewEnvelope("x", true, "scalar", nil, nil)); err == nil {
		t.Fatal("expected unsupported data error")
	}
}
