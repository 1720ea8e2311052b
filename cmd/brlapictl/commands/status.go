package commands

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/dantte-lp/brlapid/internal/adminapi"
)

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show brlapid daemon status",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp adminapi.StatusResponse
			if err := getJSON("/status", &resp); err != nil {
				return fmt.Errorf("get status: %w", err)
			}

			out, err := formatStatus(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format status: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func sessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List connected BrlAPI sessions",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp []adminapi.SessionResponse
			if err := getJSON("/sessions", &resp); err != nil {
				return fmt.Errorf("get sessions: %w", err)
			}

			out, err := formatSessions(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format sessions: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

func displayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "display",
		Short: "Show the current braille display contents",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			var resp adminapi.DisplayResponse
			if err := getJSON("/display", &resp); err != nil {
				return fmt.Errorf("get display: %w", err)
			}

			out, err := formatDisplay(resp, outputFormat)
			if err != nil {
				return fmt.Errorf("format display: %w", err)
			}
			fmt.Print(out)
			return nil
		},
	}
}

// getJSON fetches path from the admin API and decodes the JSON body into v.
func getJSON(path string, v any) error {
	resp, err := httpClient.Get(adminURL(path))
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("request %s: status %d", path, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
