package protocol

import "time"

// Transcript is a recognizer result delivered over the bus. Text is the full
// best guess so far, not a delta.
type Transcript struct {
	SessionID  string    `json:"session_id"`
	Text       string    `json:"text"`
	Partial    bool      `json:"partial"`
	Timestamp  time.Time `json:"timestamp"`
	Confidence float64   `json:"confidence,omitempty"`
}

// RecognizerError reports a failure inside the external recognizer or audio session.
type RecognizerError struct {
	SessionID string    `json:"session_id"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// RecognizerControl asks the external recognizer to start or stop streaming.
type RecognizerControl struct {
	SessionID string    `json:"session_id"`
	Action    string    `json:"action"`
	Locale    string    `json:"locale,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// PermissionQuery is the request body sent to a platform permission responder.
type PermissionQuery struct {
	Kind string `json:"kind"`
}

// PermissionReply carries the platform authorization status.
type PermissionReply struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

const (
	ActionStart = "start"
	ActionStop  = "stop"
)

const (
	SubjectTranscriptPartial = "stt.text.partial"
	SubjectTranscriptFinal   = "stt.text.final"
	SubjectRecognizerError   = "stt.error"
	SubjectRecognizerControl = "stt.control"
	SubjectEventPrefix       = "voxi.event"
)
