package wizard

import (
	"fmt"

	"github.com/zaplink/zaplink/internal/provision"
)

// State is one screen of the first-run setup wizard.
type State string

const (
	// StateLoading reads and validates the stored credentials.
	StateLoading State = "loading"
	// StateCollect sends the user to the credential collection flow.
	StateCollect State = "collect"
	// StateConfirm shows the summary and waits for the go-ahead.
	StateConfirm State = "confirm"
	// StateProvisioning renders the live progress stream.
	StateProvisioning State = "provisioning"
	// StateSuccess and StateError are terminal screens.
	StateSuccess State = "success"
	StateError   State = "error"
	// StateAborted is the terminal no-op state for a user-cancelled run.
	StateAborted State = "aborted"
)

// View is what the provisioning screen displays. Progress never
// regresses even if the stream repeats a lower value.
type View struct {
	Title      string
	Subtitle   string
	Progress   int
	RetryCount int
	MaxRetries int
}

// Machine drives the wizard through the fixed first-run flow. It is
// not safe for concurrent use; the wizard is single-threaded by nature.
type Machine struct {
	state   State
	view    View
	missing []string

	errMessage string
	returnStep string

	// scrub is called exactly once on success to wipe persisted secrets.
	scrub    func() error
	scrubbed bool
}

func New(scrub func() error) *Machine {
	return &Machine{state: StateLoading, scrub: scrub}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) View() View   { return m.view }

// Missing lists the credential fields that sent the wizard to the
// collection flow. Empty except in StateCollect.
func (m *Machine) Missing() []string { return m.missing }

// Failure describes the terminal error screen: the user-facing message
// and which screen fixes it.
func (m *Machine) Failure() (message, returnStep string) {
	return m.errMessage, m.returnStep
}

// LoadCredentials resolves the loading state: complete credentials move
// to confirm, anything missing redirects to collection.
func (m *Machine) LoadCredentials(c Credentials) State {
	if m.state != StateLoading {
		return m.state
	}
	if missing := c.MissingFields(); len(missing) > 0 {
		m.missing = missing
		m.state = StateCollect
		return m.state
	}
	m.state = StateConfirm
	return m.state
}

// Confirm starts provisioning.
func (m *Machine) Confirm() error {
	if m.state != StateConfirm {
		return fmt.Errorf("cannot confirm from state %s", m.state)
	}
	m.state = StateProvisioning
	m.view = View{}
	return nil
}

// Apply feeds one progress event into the machine. Outside the
// provisioning state events are ignored.
func (m *Machine) Apply(ev provision.ProgressEvent) State {
	if m.state != StateProvisioning {
		return m.state
	}
	switch ev.Type {
	case provision.EventPhase:
		m.view.Title = ev.Title
		m.view.Subtitle = ev.Subtitle
		if ev.Progress > m.view.Progress {
			m.view.Progress = ev.Progress
		}
		m.view.RetryCount = 0
		m.view.MaxRetries = 0
	case provision.EventRetry:
		m.view.RetryCount = ev.RetryCount
		m.view.MaxRetries = ev.MaxRetries
	case provision.EventError:
		m.errMessage = ev.Error
		m.returnStep = ev.ReturnStep
		if m.returnStep == "" {
			m.returnStep = "confirm"
		}
		m.state = StateError
	case provision.EventComplete:
		if ev.OK {
			m.state = StateSuccess
			m.runScrub()
		}
	}
	return m.state
}

// StreamFailed handles a transport-level stream failure (connection
// drop, malformed frame). The run may still be going server-side; the
// user re-runs from confirm.
func (m *Machine) StreamFailed(err error) State {
	if m.state != StateProvisioning {
		return m.state
	}
	m.errMessage = "Lost the connection to the setup server: " + err.Error()
	m.returnStep = "confirm"
	m.state = StateError
	return m.state
}

// Abort records a user cancellation of the in-flight run. It is a
// terminal no-op, not an error.
func (m *Machine) Abort() State {
	if m.state == StateProvisioning {
		m.state = StateAborted
	}
	return m.state
}

// Retry returns from the error screen to confirmation for another run.
func (m *Machine) Retry() error {
	if m.state != StateError {
		return fmt.Errorf("cannot retry from state %s", m.state)
	}
	m.state = StateConfirm
	m.errMessage = ""
	m.returnStep = ""
	return nil
}

// Restart sends the user back to credential collection.
func (m *Machine) Restart() error {
	if m.state != StateError {
		return fmt.Errorf("cannot restart from state %s", m.state)
	}
	m.state = StateCollect
	m.errMessage = ""
	m.returnStep = ""
	return nil
}

func (m *Machine) runScrub() {
	if m.scrub == nil || m.scrubbed {
		return
	}
	m.scrubbed = true
	if err := m.scrub(); err != nil {
		// Success stands; the leftover secrets are reported, not fatal.
		m.errMessage = "setup finished but credential scrub failed: " + err.Error()
	}
}
