package models

import "strings"

// Catalog task statuses as reported by upstream.
const (
	TaskPending    = "PENDING"
	TaskProcessing = "PROCESSING"
	TaskDone       = "DONE"
	TaskFailed     = "FAILED"
)

// CatalogTask tracks one asynchronous catalog upload. Completed/Successful
// are pure functions of the status string; the record is never mutated after
// construction.
type CatalogTask struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

func NewCatalogTask(taskID, status string) *CatalogTask {
	return &CatalogTask{
		TaskID: taskID,
		Status: strings.ToUpper(strings.TrimSpace(status)),
	}
}

// Completed reports whether the task reached a terminal state.
func (t *CatalogTask) Completed() bool {
	return t.Status == TaskDone || t.Status == TaskFailed
}

func (t *CatalogTask) Successful() bool {
	return t.Status == TaskDone
}

func (t *CatalogTask) ToMap() map[string]any {
	return map[string]any{
		"task_id":    t.TaskID,
		"status":     t.Status,
		"completed":  t.Completed(),
		"successful": t.Successful(),
	}
}
