package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/ritzau/classpath-changes/pkg/changes"
)

// PrintChanges prints a readable report of classpath changes
func PrintChanges(w io.Writer, result changes.ClasspathChanges, colorize bool) {
	// Color definitions
	bold := color.New(color.Bold)
	red := color.New(color.FgRed)
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)
	for _, c := range []*color.Color{bold, red, green, yellow, cyan} {
		if colorize {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
	}

	// Header
	bold.Fprintln(w, "Classpath Changes")
	bold.Fprintln(w, "=================")

	switch result := result.(type) {
	case changes.NotAvailable:
		red.Fprintf(w, "Not available: %s\n", result.Reason)
		yellow.Fprintln(w, "Incremental change detection unavailable, falling back to full recompilation.")

	case changes.Available:
		if result.IsEmpty() {
			green.Fprintln(w, "✓ No ABI changes on the classpath")
			return
		}

		yellow.Fprintf(w, "Changed classes: %d\n", len(result.FqNames))
		for _, fq := range result.FqNames {
			fmt.Fprintf(w, "  %s\n", fq)
		}
		fmt.Fprintln(w)

		yellow.Fprintf(w, "Dirty lookup symbols: %d\n", len(result.LookupSymbols))
		for _, s := range result.LookupSymbols {
			fmt.Fprintf(w, "  %s ", s.Name)
			cyan.Fprintf(w, "in %s\n", displayScope(s.Scope))
		}

	default:
		red.Fprintf(w, "Unexpected result %T\n", result)
	}
}

func displayScope(scope string) string {
	if scope == "" {
		return "<default package>"
	}
	return scope
}

type changesJSON struct {
	Available     bool                   `json:"available"`
	Reason        string                 `json:"reason,omitempty"`
	LookupSymbols []changes.LookupSymbol `json:"lookupSymbols,omitempty"`
	FqNames       []string               `json:"fqNames,omitempty"`
}

// WriteJSON writes the changes as a single JSON document
func WriteJSON(w io.Writer, result changes.ClasspathChanges) error {
	var out changesJSON
	switch result := result.(type) {
	case changes.Available:
		out = changesJSON{Available: true, LookupSymbols: result.LookupSymbols, FqNames: result.FqNames}
	case changes.NotAvailable:
		out = changesJSON{Reason: result.Reason.String()}
	default:
		return fmt.Errorf("unexpected result %T", result)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
