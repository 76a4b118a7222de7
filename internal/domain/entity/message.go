package entity

import (
	"encoding/json"
	"fmt"
	"time"
)

// JobMessage is the wire shape published by the Enqueuer and parsed by the
// queue consumer. Unknown fields are ignored; a body missing any of the three
// required fields is malformed.
type JobMessage struct {
	Owner    string `json:"owner"`
	JobID    string `json:"jobId"`
	InputKey string `json:"inputKey"`
}

func (m JobMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// ParseJobMessage decodes a queue message body. The returned error marks the
// message as malformed: it can never succeed and must not be retried.
func ParseJobMessage(body []byte) (JobMessage, error) {
	var m JobMessage
	if err := json.Unmarshal(body, &m); err != nil {
		return JobMessage{}, fmt.Errorf("decode job message: %w", err)
	}
	if m.Owner == "" || m.JobID == "" || m.InputKey == "" {
		return JobMessage{}, fmt.Errorf("incomplete job message: owner=%q jobId=%q inputKey=%q", m.Owner, m.JobID, m.InputKey)
	}
	return m, nil
}

// JobStatusMessage is the event published to the status stream whenever a job
// reaches a terminal state.
type JobStatusMessage struct {
	Owner      string    `json:"owner"`
	JobID      string    `json:"jobId"`
	Status     JobStatus `json:"status"`
	InputKey   string    `json:"inputKey"`
	OutputKey  string    `json:"outputKey,omitempty"`
	Error      string    `json:"error,omitempty"`
	FinishedAt time.Time `json:"finishedAt"`
}
