package history

import "time"

// Status represents the lifecycle of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is recorded on jobs that were running when the daemon
// last stopped.
const DaemonStopReason = "daemon stopped before job finished"

var allStatuses = []Status{StatusPending, StatusRunning, StatusCompleted, StatusFailed}

// ParseStatus converts a string to a Status.
func ParseStatus(value string) (Status, bool) {
	for _, status := range allStatuses {
		if string(status) == value {
			return status, true
		}
	}
	return "", false
}

// Statuses returns every known status.
func Statuses() []Status {
	out := make([]Status, len(allStatuses))
	copy(out, allStatuses)
	return out
}

// Terminal reports whether the job can no longer change.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one persisted transcription.
type Job struct {
	ID                string     `json:"id"`
	SourceName        string     `json:"source_name"`
	SourcePath        string     `json:"source_path,omitempty"`
	Status            Status     `json:"status"`
	RequestedModel    string     `json:"requested_model,omitempty"`
	Model             string     `json:"model,omitempty"`
	Device            string     `json:"device,omitempty"`
	Language          string     `json:"language,omitempty"`
	Task              string     `json:"task,omitempty"`
	Preset            string     `json:"preset,omitempty"`
	SizeBytes         int64      `json:"size_bytes"`
	AudioDuration     float64    `json:"audio_duration"`
	ProcessingTime    float64    `json:"processing_time"`
	AverageConfidence *float64   `json:"average_confidence,omitempty"`
	ErrorKind         string     `json:"error_kind,omitempty"`
	ErrorMessage      string     `json:"error_message,omitempty"`
	Outputs           []string   `json:"outputs,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	FinishedAt        *time.Time `json:"finished_at,omitempty"`
}

// NewJob describes a job at creation time.
type NewJob struct {
	ID             string
	SourceName     string
	SourcePath     string
	RequestedModel string
	Language       string
	Task           string
	Preset         string
	SizeBytes      int64
}

// Completion carries the fields recorded when a job succeeds.
type Completion struct {
	Model  string
	Device string
	// Result is the enriched transcript, stored verbatim as JSON.
	Result  any
	Outputs []string

	Language          string
	AudioDuration     float64
	ProcessingTime    float64
	AverageConfidence float64
}

// Summary aggregates job counts for status output.
type Summary struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
}
