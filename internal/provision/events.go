package provision

type EventType string

const (
	EventPhase    EventType = "phase"
	EventRetry    EventType = "retry"
	EventError    EventType = "error"
	EventComplete EventType = "complete"
)

// ProgressEvent is the discriminated union carried on the progress
// stream. Which fields are set depends on Type:
//
//	phase    — Phase, Title, Subtitle, Progress
//	retry    — StepID, RetryCount, MaxRetries
//	error    — Error, Classification, ReturnStep
//	complete — OK
type ProgressEvent struct {
	Type           EventType  `json:"type"`
	Phase          string     `json:"phase,omitempty"`
	Title          string     `json:"title,omitempty"`
	Subtitle       string     `json:"subtitle,omitempty"`
	Progress       int        `json:"progress"`
	StepID         string     `json:"stepId,omitempty"`
	RetryCount     int        `json:"retryCount,omitempty"`
	MaxRetries     int        `json:"maxRetries,omitempty"`
	Error          string     `json:"error,omitempty"`
	Classification ErrorClass `json:"classification,omitempty"`
	ReturnStep     string     `json:"returnStep,omitempty"`
	OK             bool       `json:"ok"`
}

// Emitter receives saga events in the order they occur. The saga is
// the only producer; the transport layer is a dumb forwarder.
type Emitter func(ProgressEvent)

func phaseEvent(step Step, progress int, subtitle string) ProgressEvent {
	if subtitle == "" {
		subtitle = step.Subtitle
	}
	return ProgressEvent{
		Type:     EventPhase,
		Phase:    step.ID,
		Title:    step.Title,
		Subtitle: subtitle,
		Progress: progress,
	}
}

func retryEvent(stepID string, attempt, max int) ProgressEvent {
	return ProgressEvent{
		Type:       EventRetry,
		StepID:     stepID,
		RetryCount: attempt,
		MaxRetries: max,
	}
}

func errorEvent(msg string, class ErrorClass) ProgressEvent {
	return ProgressEvent{
		Type:           EventError,
		Error:          msg,
		Classification: class,
		ReturnStep:     ReturnStepFor(class),
	}
}

func completeEvent() ProgressEvent {
	return ProgressEvent{Type: EventComplete, OK: true}
}
