package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"finledger/internal/notify"
)

// EmailJob is one queued notification. The worker renders and sends it.
type EmailJob struct {
	ID        string         `json:"id"`
	Message   notify.Message `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
}

func NewEmailJob(m notify.Message) *EmailJob {
	return &EmailJob{
		ID:        uuid.NewString(),
		Message:   m,
		Timestamp: time.Now().UTC(),
	}
}

func (j *EmailJob) ToJSON() ([]byte, error) {
	return json.Marshal(j)
}

// EmailJobFromJSON decodes and validates a queued job.
func EmailJobFromJSON(data []byte) (*EmailJob, error) {
	var job EmailJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, err
	}
	if job.ID == "" {
		return nil, fmt.Errorf("email job without id")
	}
	if err := job.Message.Validate(); err != nil {
		return nil, fmt.Errorf("email job %s: %w", job.ID, err)
	}
	return &job, nil
}
