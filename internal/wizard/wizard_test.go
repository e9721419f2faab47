package wizard

import (
	"errors"
	"testing"

	"github.com/zaplink/zaplink/internal/provision"
)

func fullCredentials() Credentials {
	return Credentials{
		Version:  CredentialsVersion,
		Hosting:  provision.HostingCredentials{Token: "ht", ProjectID: "prj_1"},
		Database: provision.DatabaseCredentials{AccessToken: "pat", ProjectURL: "https://demo.db.zaplink.dev"},
		Queue:    provision.QueueCredentials{Token: "qt", SigningKey: "qs"},
		Cache:    provision.CacheCredentials{RESTURL: "https://cache.zaplink.dev", RESTToken: "ct"},
		Admin:    provision.AdminIdentity{Email: "owner@example.com", PasswordHash: "$2a$10$hash"},
	}
}

func TestLoadingToConfirm(t *testing.T) {
	m := New(nil)
	if got := m.LoadCredentials(fullCredentials()); got != StateConfirm {
		t.Fatalf("state = %s, want confirm", got)
	}
}

func TestLoadingRedirectsOnMissingCredential(t *testing.T) {
	c := fullCredentials()
	c.Queue.Token = ""
	c.Admin.Email = ""
	m := New(nil)
	if got := m.LoadCredentials(c); got != StateCollect {
		t.Fatalf("state = %s, want collect", got)
	}
	missing := m.Missing()
	if len(missing) != 2 || missing[0] != "queue.token" || missing[1] != "admin.email" {
		t.Fatalf("missing = %v", missing)
	}
}

func TestProvisioningUpdatesView(t *testing.T) {
	m := New(nil)
	m.LoadCredentials(fullCredentials())
	if err := m.Confirm(); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	m.Apply(provision.ProgressEvent{Type: provision.EventPhase, Title: "Checking hosting access", Progress: 0})
	m.Apply(provision.ProgressEvent{Type: provision.EventPhase, Title: "Waiting for database", Subtitle: "starting up", Progress: 18})
	v := m.View()
	if v.Title != "Waiting for database" || v.Progress != 18 {
		t.Fatalf("view = %+v", v)
	}

	// A retry updates the counter without touching progress.
	m.Apply(provision.ProgressEvent{Type: provision.EventRetry, StepID: "verify_queue", RetryCount: 2, MaxRetries: 3})
	v = m.View()
	if v.RetryCount != 2 || v.MaxRetries != 3 || v.Progress != 18 {
		t.Fatalf("view after retry = %+v", v)
	}

	// A repeated lower progress value never moves the bar backwards.
	m.Apply(provision.ProgressEvent{Type: provision.EventPhase, Title: "x", Progress: 9})
	if v := m.View(); v.Progress != 18 {
		t.Fatalf("progress regressed to %d", v.Progress)
	}
	if v := m.View(); v.RetryCount != 0 {
		t.Fatalf("retry counter survived a phase change")
	}
}

func TestCompleteScrubsOnce(t *testing.T) {
	scrubs := 0
	m := New(func() error { scrubs++; return nil })
	m.LoadCredentials(fullCredentials())
	m.Confirm()

	if got := m.Apply(provision.ProgressEvent{Type: provision.EventComplete, OK: true}); got != StateSuccess {
		t.Fatalf("state = %s, want success", got)
	}
	m.Apply(provision.ProgressEvent{Type: provision.EventComplete, OK: true})
	if scrubs != 1 {
		t.Fatalf("scrub ran %d times, want 1", scrubs)
	}
}

func TestErrorRoutesToReturnStep(t *testing.T) {
	m := New(nil)
	m.LoadCredentials(fullCredentials())
	m.Confirm()

	got := m.Apply(provision.ProgressEvent{
		Type:           provision.EventError,
		Error:          "The job queue token is invalid.",
		Classification: provision.ClassQueueToken,
		ReturnStep:     "queue",
	})
	if got != StateError {
		t.Fatalf("state = %s, want error", got)
	}
	msg, step := m.Failure()
	if msg == "" || step != "queue" {
		t.Fatalf("failure = %q, %q", msg, step)
	}

	if err := m.Retry(); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if m.State() != StateConfirm {
		t.Fatalf("state after retry = %s", m.State())
	}
}

func TestErrorRestartGoesToCollection(t *testing.T) {
	m := New(nil)
	m.LoadCredentials(fullCredentials())
	m.Confirm()
	m.StreamFailed(errors.New("unexpected EOF"))
	if m.State() != StateError {
		t.Fatalf("state = %s", m.State())
	}
	if _, step := m.Failure(); step != "confirm" {
		t.Fatalf("stream failure return step = %q, want confirm", step)
	}
	if err := m.Restart(); err != nil {
		t.Fatalf("restart: %v", err)
	}
	if m.State() != StateCollect {
		t.Fatalf("state after restart = %s", m.State())
	}
}

func TestAbortIsTerminalNoop(t *testing.T) {
	m := New(func() error { t.Fatal("scrub must not run on abort"); return nil })
	m.LoadCredentials(fullCredentials())
	m.Confirm()

	if got := m.Abort(); got != StateAborted {
		t.Fatalf("state = %s, want aborted", got)
	}
	// Late events from the dying stream are ignored.
	if got := m.Apply(provision.ProgressEvent{Type: provision.EventComplete, OK: true}); got != StateAborted {
		t.Fatalf("state after late event = %s", got)
	}
	// Aborting outside provisioning does nothing.
	m2 := New(nil)
	if got := m2.Abort(); got != StateLoading {
		t.Fatalf("abort from loading = %s", got)
	}
}

func TestConfirmFromWrongState(t *testing.T) {
	m := New(nil)
	if err := m.Confirm(); err == nil {
		t.Fatalf("confirm from loading must fail")
	}
	if err := m.Retry(); err == nil {
		t.Fatalf("retry outside error must fail")
	}
}
