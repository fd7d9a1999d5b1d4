package services

import (
	"context"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"commerce-search-api/internal/models"
	"commerce-search-api/internal/upstream"
)

// OperationPatch merges the uploaded catalog into the existing one; any
// other operation replaces it.
const OperationPatch = "patch"

// CatalogService owns the asynchronous catalog-upload lifecycle: submit,
// poll, terminal state. Write operations authenticate with the bearer secret
// token and are never retried by this layer.
type CatalogService struct {
	client *upstream.Client
}

func NewCatalogService(client *upstream.Client) *CatalogService {
	return &CatalogService{client: client}
}

// UploadOptions tunes one catalog submission. GroupsFilePath optionally adds
// the category-hierarchy file to the multipart body.
type UploadOptions struct {
	Section        string
	Force          bool
	GroupsFilePath string
}

// UploadCatalog submits a bulk catalog file and returns the tracking task.
// The file must be readable before any network activity happens.
func (c *CatalogService) UploadCatalog(ctx context.Context, filePath, operation string, opts UploadOptions) (*models.CatalogTask, error) {
	items, err := os.Open(filePath)
	if err != nil {
		return nil, &models.FileNotFoundError{Path: filePath, Err: err}
	}
	defer items.Close()

	files := []upstream.UploadFile{
		{Field: "items", Name: filepath.Base(filePath), Contents: items},
	}

	if opts.GroupsFilePath != "" {
		groups, err := os.Open(opts.GroupsFilePath)
		if err != nil {
			return nil, &models.FileNotFoundError{Path: opts.GroupsFilePath, Err: err}
		}
		defer groups.Close()
		files = append(files, upstream.UploadFile{
			Field: "item_groups", Name: filepath.Base(opts.GroupsFilePath), Contents: groups,
		})
	}

	method := http.MethodPut
	if operation == OperationPatch {
		method = http.MethodPatch
	}

	params := upstream.Params{}
	if opts.Section != "" {
		params["section"] = opts.Section
	}
	if opts.Force {
		params["force"] = true
	}

	body, err := c.client.Upload(ctx, method, "/v1/catalog", params, files)
	if err != nil {
		return nil, err
	}

	taskID, _ := body["task_id"].(string)
	status, _ := body["status"].(string)
	if status == "" {
		status = models.TaskPending
	}

	log.Printf("Catalog upload submitted: task %s (%s)", taskID, method)
	return models.NewCatalogTask(taskID, status), nil
}

// TaskStatus fetches the current status of an upload task.
func (c *CatalogService) TaskStatus(ctx context.Context, taskID string) (*models.CatalogTask, error) {
	body, err := c.client.GetAdmin(ctx, "/v1/tasks/"+upstream.PercentEncode(taskID), upstream.Params{})
	if err != nil {
		return nil, err
	}

	status, _ := body["status"].(string)
	return models.NewCatalogTask(taskID, status), nil
}

// WaitForTaskCompletion polls at a fixed interval until the task reaches a
// terminal state or maxAttempts is exhausted, in which case it raises a
// TaskTimeoutError. This is a blocking wait by contract; callers needing
// non-blocking behavior run it off the critical path.
func (c *CatalogService) WaitForTaskCompletion(ctx context.Context, taskID string, maxAttempts int, delay time.Duration) (*models.CatalogTask, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		task, err := c.TaskStatus(ctx, taskID)
		if err != nil {
			return nil, err
		}
		if task.Completed() {
			return task, nil
		}
	}

	return nil, &models.TaskTimeoutError{TaskID: taskID, Attempts: maxAttempts}
}

// DeleteItems removes items from the index by id.
func (c *CatalogService) DeleteItems(ctx context.Context, ids []string, section string) error {
	items := make([]map[string]any, 0, len(ids))
	for _, id := range ids {
		items = append(items, map[string]any{"id": id})
	}

	params := upstream.Params{}
	if section != "" {
		params["section"] = section
	}

	_, err := c.client.SendJSON(ctx, http.MethodDelete, "/v2/items", params, map[string]any{"items": items})
	return err
}

// VerifyCredentials runs the one-shot credential check explicitly. The same
// check also runs lazily before the first authenticated request.
func (c *CatalogService) VerifyCredentials(ctx context.Context) error {
	return c.client.Verify(ctx)
}
