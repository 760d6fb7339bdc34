package job

import (
	"encoding/json"
	"time"
)

// Job is an ingestion task that failed and can be re-published.
type Job struct {
	ID        string          `json:"id"`
	TenantID  string          `json:"tenant_id"`
	DocID     string          `json:"doc_id"`
	Handler   string          `json:"handler"`
	Payload   json.RawMessage `json:"payload"`
	Error     string          `json:"error"`
	Retries   int             `json:"retries"`
	CreatedAt time.Time       `json:"created_at"`
}
