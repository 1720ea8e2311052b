package commands

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/dantte-lp/brlapid/internal/adminapi"
)

const (
	formatJSON  = "json"
	formatTable = "table"
)

// errUnsupportedFormat is returned when the requested output format is not supported.
var errUnsupportedFormat = errors.New("unsupported output format")

// --- status ---

func formatStatus(s adminapi.StatusResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(s)
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintf(w, "Driver Name:\t%s\n", s.DriverName)
		fmt.Fprintf(w, "Model ID:\t%s\n", s.ModelID)
		fmt.Fprintf(w, "Dimensions:\t%dx%d\n", s.Columns, s.Lines)
		fmt.Fprintf(w, "Sessions:\t%d\n", s.Sessions)
		fmt.Fprintf(w, "Uptime:\t%ds\n", s.UptimeSec)
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- sessions ---

func formatSessions(sessions []adminapi.SessionResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(sessions)
	case formatTable:
		var buf strings.Builder
		w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REMOTE\tAUTH\tCONNECTED\tIN\tOUT")
		for _, s := range sessions {
			fmt.Fprintf(w, "%s\t%t\t%s\t%d\t%d\n",
				s.RemoteAddr, s.Authenticated, s.ConnectedSince, s.PacketsIn, s.PacketsOut)
		}
		if err := w.Flush(); err != nil {
			return "", fmt.Errorf("flush tabwriter: %w", err)
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// --- display ---

func formatDisplay(d adminapi.DisplayResponse, format string) (string, error) {
	switch format {
	case formatJSON:
		return marshalIndent(d)
	case formatTable:
		var buf strings.Builder
		fmt.Fprintf(&buf, "Dimensions: %dx%d\n", d.Columns, d.Lines)
		fmt.Fprintf(&buf, "Cells:      %s\n", renderCells(d.Cells))
		if d.Cursor != nil {
			fmt.Fprintf(&buf, "Cursor:     %d\n", *d.Cursor)
		} else {
			fmt.Fprintln(&buf, "Cursor:     none")
		}
		return buf.String(), nil
	default:
		return "", fmt.Errorf("%w: %q", errUnsupportedFormat, format)
	}
}

// renderCells renders raw braille-cell bytes as Unicode braille patterns
// (U+2800..U+28FF), one rune per cell.
func renderCells(cells []byte) string {
	runes := make([]rune, len(cells))
	for i, c := range cells {
		runes[i] = rune(0x2800) + rune(c)
	}
	return string(runes)
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal JSON: %w", err)
	}
	return string(data) + "\n", nil
}
