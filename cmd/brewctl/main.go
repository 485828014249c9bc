// Command brewctl is the operator CLI for a running brewlinkd. It talks to
// the daemon's REST API on loopback.
package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// client wraps the daemon API for the CLI commands.
type client struct {
	baseURL string
	http    *http.Client
}

func newClient(addr string) *client {
	return &client{
		baseURL: "http://" + addr,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

func (c *client) get(path string, out any) error {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func (c *client) send(method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return decodeResponse(resp, out)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 400 {
		var apiErr struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
			return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
		}
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func newRootCmd() *cobra.Command {
	var addr string

	root := &cobra.Command{
		Use:           "brewctl",
		Short:         "Control a running brewlinkd",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	defaultAddr := os.Getenv("BREWLINK_LISTEN_ADDR")
	if defaultAddr == "" {
		defaultAddr = "127.0.0.1:8080"
	}
	root.PersistentFlags().StringVar(&addr, "addr", defaultAddr, "daemon address")

	root.AddCommand(
		newStatusCmd(&addr),
		newReadingsCmd(&addr),
		newSendCmd(&addr),
		newWindowCmd(&addr),
		newUpdateCmd(&addr),
		newCredentialsCmd(&addr),
	)

	return root
}

func newStatusCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current machine status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status struct {
				Temperature float64 `json:"temperature"`
				Setpoint    float64 `json:"setpoint"`
				DutyCycle   int     `json:"duty_cycle"`
				State       string  `json:"state"`
				Stale       bool    `json:"stale"`
				TakenAt     string  `json:"taken_at"`
			}
			if err := newClient(*addr).get("/api/v1/status", &status); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "temperature  %.1f C\n", status.Temperature)
			fmt.Fprintf(cmd.OutOrStdout(), "setpoint     %.1f C\n", status.Setpoint)
			fmt.Fprintf(cmd.OutOrStdout(), "duty cycle   %d %%\n", status.DutyCycle)
			fmt.Fprintf(cmd.OutOrStdout(), "state        %s\n", status.State)
			if status.Stale {
				fmt.Fprintf(cmd.OutOrStdout(), "sampled      %s (stale)\n", status.TakenAt)
			}
			return nil
		},
	}
}

func newReadingsCmd(addr *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "readings",
		Short: "List recent telemetry readings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var readings []struct {
				Temperature float64 `json:"temperature"`
				Setpoint    float64 `json:"setpoint"`
				DutyCycle   int     `json:"duty_cycle"`
				State       string  `json:"state"`
				TakenAt     string  `json:"taken_at"`
			}
			path := fmt.Sprintf("/api/v1/readings?limit=%d", limit)
			if err := newClient(*addr).get(path, &readings); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "%-22s %7s %9s %5s %s\n", "TIME", "TEMP", "SETPOINT", "DUTY", "STATE")
			for _, r := range readings {
				fmt.Fprintf(w, "%-22s %7.1f %9.1f %4d%% %s\n",
					r.TakenAt, r.Temperature, r.Setpoint, r.DutyCycle, r.State)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of readings")
	return cmd
}

func newSendCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "send <command>...",
		Short: "Send a controller command (e.g. 'reg coffee 95')",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var resp struct {
				Completed bool     `json:"completed"`
				Lines     []string `json:"lines"`
			}
			body := map[string]string{"command": strings.Join(args, " ")}
			if err := newClient(*addr).send(http.MethodPost, "/api/v1/command", body, &resp); err != nil {
				return err
			}

			for _, line := range resp.Lines {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			return nil
		},
	}
}

func newWindowCmd(addr *string) *cobra.Command {
	return &cobra.Command{
		Use:   "window",
		Short: "Show the radio window state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var window struct {
				Enabled   bool   `json:"enabled"`
				Active    bool   `json:"active"`
				LocalHour int    `json:"local_hour"`
				StartHour int    `json:"start_hour"`
				EndHour   int    `json:"end_hour"`
				LastSync  string `json:"last_sync"`
			}
			if err := newClient(*addr).get("/api/v1/window", &window); err != nil {
				return err
			}

			w := cmd.OutOrStdout()
			if !window.Enabled {
				fmt.Fprintln(w, "window disabled, uplink always on")
				return nil
			}
			state := "off"
			if window.Active {
				state = "on"
			}
			fmt.Fprintf(w, "uplink %s, window %02d:00-%02d:00, local hour %02d\n",
				state, window.StartHour, window.EndHour, window.LocalHour)
			if window.LastSync != "" {
				fmt.Fprintf(w, "clock synced %s\n", window.LastSync)
			}
			return nil
		},
	}
}

func newUpdateCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Manage controller firmware updates",
	}

	printUpdate := func(w io.Writer, status struct {
		Checked         bool   `json:"checked"`
		Installed       string `json:"installed"`
		Available       string `json:"available"`
		UpdateAvailable bool   `json:"update_available"`
		CheckedAt       string `json:"checked_at"`
	}) {
		if !status.Checked {
			fmt.Fprintln(w, "not checked yet")
			return
		}
		installed := status.Installed
		if installed == "" {
			installed = "unknown"
		}
		fmt.Fprintf(w, "installed %s, latest %s", installed, status.Available)
		if status.UpdateAvailable {
			fmt.Fprint(w, " (update available)")
		}
		fmt.Fprintf(w, "\nchecked %s\n", status.CheckedAt)
	}

	for _, sub := range []struct {
		use    string
		short  string
		method string
		path   string
	}{
		{"status", "Show the last firmware check result", http.MethodGet, "/api/v1/update"},
		{"check", "Query the firmware feed now", http.MethodPost, "/api/v1/update/check"},
		{"apply", "Download and stage the latest firmware", http.MethodPost, "/api/v1/update/apply"},
	} {
		cmd.AddCommand(&cobra.Command{
			Use:   sub.use,
			Short: sub.short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				var status struct {
					Checked         bool   `json:"checked"`
					Installed       string `json:"installed"`
					Available       string `json:"available"`
					UpdateAvailable bool   `json:"update_available"`
					CheckedAt       string `json:"checked_at"`
				}
				var err error
				if sub.method == http.MethodGet {
					err = newClient(*addr).get(sub.path, &status)
				} else {
					err = newClient(*addr).send(sub.method, sub.path, nil, &status)
				}
				if err != nil {
					return err
				}
				printUpdate(cmd.OutOrStdout(), status)
				return nil
			},
		})
	}

	return cmd
}

func newCredentialsCmd(addr *string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credentials",
		Short: "Manage stored network credentials",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set <ssid>",
		Short: "Store network credentials, prompting for the passphrase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			passphrase, err := readPassphrase(cmd)
			if err != nil {
				return err
			}

			body := map[string]string{"ssid": args[0], "passphrase": passphrase}
			if err := newClient(*addr).send(http.MethodPut, "/api/v1/credentials", body, nil); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "credentials stored, effective on next daemon start")
			return nil
		},
	})

	return cmd
}

// readPassphrase prompts on the terminal without echo, falling back to a
// plain line read when stdin is not a terminal (e.g. piped input).
func readPassphrase(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.OutOrStdout(), "passphrase (empty for open network): ")

	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.OutOrStdout())
		if err != nil {
			return "", fmt.Errorf("reading passphrase: %w", err)
		}
		return string(raw), nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("reading passphrase: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
