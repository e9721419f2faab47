package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zaplink/zaplink/internal/logging"
	"github.com/zaplink/zaplink/internal/provision"
	"github.com/zaplink/zaplink/internal/wizard"
)

func main() {
	_ = godotenv.Load()
	logging.Init("setupctl", nil)
	if err := run(os.Args[1:], os.Stdout, os.Stdin); err != nil {
		fatalf("setupctl: %v", err)
	}
}

var fatalf = func(format string, args ...any) {
	slog.Error("fatal", "error", fmt.Sprintf(format, args...))
	os.Exit(1)
}

// httpClient has no overall timeout: the provision stream legitimately
// stays open for minutes.
var httpClient = &http.Client{
	Transport: &http.Transport{ResponseHeaderTimeout: 30 * time.Second},
}

func defaultCredentialPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "setup-credentials.json"
	}
	return filepath.Join(home, ".zaplink", "setup-credentials.json")
}

func run(args []string, out io.Writer, in io.Reader) error {
	fs := flag.NewFlagSet("setupctl", flag.ContinueOnError)
	server := fs.String("server", "http://localhost:8090", "setup server base url")
	credPath := fs.String("credentials", defaultCredentialPath(), "credential file path")
	yes := fs.Bool("yes", false, "skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	store := &wizard.Store{Path: *credPath}
	m := wizard.New(store.Scrub)

	creds, err := store.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("no credential file at %s; create one first (see docs)", *credPath)
		}
		return err
	}

	if m.LoadCredentials(creds) == wizard.StateCollect {
		fmt.Fprintln(out, "The credential file is incomplete. Missing:")
		for _, field := range m.Missing() {
			fmt.Fprintf(out, "  - %s\n", field)
		}
		return errors.New("credentials incomplete")
	}

	if !*yes && !confirm(out, in) {
		fmt.Fprintln(out, "Aborted.")
		return nil
	}
	if err := m.Confirm(); err != nil {
		return err
	}

	if err := streamProvision(context.Background(), *server, creds.Request(), m, out); err != nil {
		m.StreamFailed(err)
	}

	switch m.State() {
	case wizard.StateSuccess:
		fmt.Fprintln(out, "\nSetup complete. Stored credentials were scrubbed.")
		return nil
	case wizard.StateError:
		msg, step := m.Failure()
		fmt.Fprintf(out, "\nSetup failed: %s\n", msg)
		fmt.Fprintf(out, "Fix the %q credentials and run setupctl again.\n", step)
		return errors.New("setup failed")
	default:
		return fmt.Errorf("setup ended in state %s", m.State())
	}
}

func confirm(out io.Writer, in io.Reader) bool {
	fmt.Fprint(out, "Provision this instance now? [y/N] ")
	line, _ := bufio.NewReader(in).ReadString('\n')
	line = strings.ToLower(strings.TrimSpace(line))
	return line == "y" || line == "yes"
}

// streamProvision posts the request and feeds every stream event into
// the wizard, rendering as it goes. Returns an error only for
// transport-level failures; saga failures arrive as error events.
func streamProvision(ctx context.Context, server string, req provision.ProvisionRequest, m *wizard.Machine, out io.Writer) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	url := strings.TrimRight(server, "/") + "/v1/setup/provision"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("setup server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		var ev provision.ProgressEvent
		if err := json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev); err != nil {
			return fmt.Errorf("malformed stream event: %w", err)
		}
		render(out, ev)
		if state := m.Apply(ev); state == wizard.StateSuccess || state == wizard.StateError {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	return errors.New("stream ended without a terminal event")
}

func render(out io.Writer, ev provision.ProgressEvent) {
	switch ev.Type {
	case provision.EventPhase:
		fmt.Fprintf(out, "[%3d%%] %s", ev.Progress, ev.Title)
		if ev.Subtitle != "" {
			fmt.Fprintf(out, " (%s)", ev.Subtitle)
		}
		fmt.Fprintln(out)
	case provision.EventRetry:
		fmt.Fprintf(out, "       retrying %s (%d/%d)\n", ev.StepID, ev.RetryCount, ev.MaxRetries)
	case provision.EventError:
		fmt.Fprintf(out, "error: %s\n", ev.Error)
	case provision.EventComplete:
		fmt.Fprintln(out, "done.")
	}
}
