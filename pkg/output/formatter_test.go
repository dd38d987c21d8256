package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/ritzau/classpath-changes/pkg/changes"
)

func TestPrintChangesAvailable(t *testing.T) {
	var buf bytes.Buffer
	result := changes.NewAvailable(
		[]changes.LookupSymbol{{Name: "bar", Scope: "com.example.Foo"}, {Name: "Main", Scope: ""}},
		[]string{"com.example.Foo"},
	)

	PrintChanges(&buf, result, false)

	out := buf.String()
	for _, want := range []string{
		"Changed classes: 1",
		"  com.example.Foo",
		"Dirty lookup symbols: 2",
		"  bar in com.example.Foo",
		"  Main in <default package>",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("PrintChanges() output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Error("PrintChanges() with colorize=false should not emit escape codes")
	}
}

func TestPrintChangesEmptyAndUnavailable(t *testing.T) {
	var buf bytes.Buffer
	PrintChanges(&buf, changes.NewAvailable(nil, nil), false)
	if !strings.Contains(buf.String(), "No ABI changes") {
		t.Errorf("expected no-change message, got:\n%s", buf.String())
	}

	buf.Reset()
	PrintChanges(&buf, changes.NotAvailable{Reason: changes.UnableToCompute}, false)
	if !strings.Contains(buf.String(), "falling back to full recompilation") {
		t.Errorf("expected fallback message, got:\n%s", buf.String())
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	result := changes.NewAvailable([]changes.LookupSymbol{{Name: "bar", Scope: "com.example.Foo"}}, []string{"com.example.Foo"})
	if err := WriteJSON(&buf, result); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}

	var decoded struct {
		Available     bool `json:"available"`
		LookupSymbols []struct {
			Name  string `json:"name"`
			Scope string `json:"scope"`
		} `json:"lookupSymbols"`
		FqNames []string `json:"fqNames"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if !decoded.Available || len(decoded.FqNames) != 1 || decoded.LookupSymbols[0].Scope != "com.example.Foo" {
		t.Errorf("unexpected JSON: %s", buf.String())
	}

	buf.Reset()
	if err := WriteJSON(&buf, changes.NotAvailable{Reason: changes.MissingClasspathSnapshot}); err != nil {
		t.Fatalf("WriteJSON() error = %v", err)
	}
	if !strings.Contains(buf.String(), `"reason": "missing classpath snapshot"`) {
		t.Errorf("unexpected JSON: %s", buf.String())
	}
}
