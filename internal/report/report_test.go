package report_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"summarist/internal/domain"
	"summarist/internal/report"

	"gopkg.in/yaml.v3"
)

func TestWriteEmptyReportIsEmptySequence(t *testing.T) {
	var buf bytes.Buffer

	if err := report.Write(&buf, nil, report.FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if got := strings.TrimSpace(buf.String()); got != "[]" {
		t.Fatalf("got %q, want []", got)
	}
}

func TestWriteJSONFields(t *testing.T) {
	var buf bytes.Buffer

	r := domain.Report{{
		Identifier: "acme/api#1",
		Title:      "Add retry",
		Origin:     "acme/api",
		Locator:    "https://github.com/acme/api/pull/1",
		Summary:    "Adds retries.",
	}}

	if err := report.Write(&buf, r, report.FormatJSON); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded []map[string]any
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded) != 1 {
		t.Fatalf("expected one record, got %d", len(decoded))
	}

	for _, key := range []string{"identifier", "title", "origin", "locator", "summary"} {
		if _, ok := decoded[0][key]; !ok {
			t.Fatalf("missing key %q in %v", key, decoded[0])
		}
	}
	if _, ok := decoded[0]["error"]; ok {
		t.Fatalf("unexpected error key in %v", decoded[0])
	}
}

func TestWriteYAMLIncludesFailure(t *testing.T) {
	var buf bytes.Buffer

	r := domain.Report{{
		Identifier: "m1",
		Error:      &domain.Failure{Kind: "FetchError", Phase: "detail", Message: "boom"},
	}}

	if err := report.Write(&buf, r, report.FormatYAML); err != nil {
		t.Fatalf("Write: %v", err)
	}

	var decoded []domain.Result
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(decoded) != 1 || decoded[0].Error == nil || decoded[0].Error.Kind != "FetchError" {
		t.Fatalf("unexpected decoded report: %+v", decoded)
	}
}

func TestParseFormat(t *testing.T) {
	tests := map[string]report.Format{"": report.FormatJSON, "JSON": report.FormatJSON, "yml": report.FormatYAML}

	for in, want := range tests {
		got, err := report.ParseFormat(in)
		if err != nil || got != want {
			t.Fatalf("ParseFormat(%q) = %q, %v; want %q", in, got, err, want)
		}
	}

	if _, err := report.ParseFormat("xml"); err == nil {
		t.Fatal("expected error for xml")
	}
}
