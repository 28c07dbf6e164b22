package platform

// Platform name constants used in outcomes, metrics and logs.
const (
	Discord   = "discord"
	GDrive    = "gdrive"
	TeamSpeak = "teamspeak"
)

// Action identifies the kind of mutation an outcome describes.
type Action string

const (
	ActionGrant       Action = "grant"
	ActionRevoke      Action = "revoke"
	ActionAddGroup    Action = "add_group"
	ActionRemoveGroup Action = "remove_group"
)

// Status is the terminal state of a single platform action.
type Status string

const (
	StatusApplied Status = "applied"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Outcome records the result of one platform action within a run. Simulated
// marks synthetic successes from adapters running without credentials; it is
// always surfaced, never folded into a plain success.
type Outcome struct {
	Platform  string `json:"platform"`
	Action    Action `json:"action"`
	Target    string `json:"target"`
	Status    Status `json:"status"`
	Simulated bool   `json:"simulated,omitempty"`
	Error     string `json:"error,omitempty"`
}

// Failed reports whether the outcome records a failed action.
func (o Outcome) Failed() bool {
	return o.Status == StatusFailed
}
