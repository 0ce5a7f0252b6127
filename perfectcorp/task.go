package perfectcorp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// pollFailureWindow: this many consecutive non-2xx status responses abort
// the poll loop instead of burning the remaining attempts.
const pollFailureWindow = 5

type taskFields struct {
	TaskID         string `json:"task_id"`
	ID             string `json:"id"`
	Status         string `json:"status"`
	OutputURL      string `json:"output_url"`
	ResultImageURL string `json:"result_image_url"`
	Error          string `json:"error"`
	ErrorMessage   string `json:"error_message"`
}

type taskResponse struct {
	Result *taskFields `json:"result"`
	taskFields
}

func (r taskResponse) fields() taskFields {
	if r.Result != nil {
		return *r.Result
	}
	return r.taskFields
}

// TaskStatus is the terminal state of a try-on task.
type TaskStatus struct {
	TaskID    string
	Status    string
	OutputURL string
}

// SubmitTask creates the compose job referencing the uploaded user photo and
// the garment reference. Submission is never retried; the caller retries the
// whole flow instead.
func (c *Client) SubmitTask(ctx context.Context, photoFileID, garmentRefID, garmentCategory string) (string, error) {
	token, err := c.Authenticate(ctx, false)
	if err != nil {
		return "", err
	}
	ep, err := c.ensureEndpoint(ctx)
	if err != nil {
		return "", err
	}

	body, err := c.postJSON(ctx, "task submission", ep.URL("/task/clothes"), token, map[string]interface{}{
		"file_id":          photoFileID,
		"garment_category": garmentCategory,
		"ref_ids":          []string{garmentRefID},
	})
	if err != nil {
		return "", err
	}

	var parsed taskResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("task submission: unexpected response format: %w", err)
	}

	f := parsed.fields()
	taskID := f.TaskID
	if taskID == "" {
		taskID = f.ID
	}
	if taskID == "" {
		return "", fmt.Errorf("task submission: unexpected response format: no task id in response")
	}
	return taskID, nil
}

// PollTask checks the task status once per interval until a terminal state,
// a non-retryable failure, or the attempt budget runs out.
func (c *Client) PollTask(ctx context.Context, taskID string) (*TaskStatus, error) {
	token, err := c.Authenticate(ctx, false)
	if err != nil {
		return nil, err
	}
	ep, err := c.ensureEndpoint(ctx)
	if err != nil {
		return nil, err
	}

	statusURL := ep.URL("/task/clothes/" + taskID)
	consecutiveFailures := 0

	for attempt := 1; attempt <= c.maxPollAttempts; attempt++ {
		code, body, err := c.getJSON(ctx, "task polling", statusURL, token)
		switch {
		case err != nil:
			consecutiveFailures++
		case code == http.StatusNotFound:
			return nil, fmt.Errorf("%w (task %s)", ErrTaskNotFound, taskID)
		case code < 200 || code > 299:
			consecutiveFailures++
		default:
			consecutiveFailures = 0

			var parsed taskResponse
			if err := json.Unmarshal(body, &parsed); err == nil {
				f := parsed.fields()
				switch strings.ToLower(f.Status) {
				case "success", "succeed", "completed":
					out := f.OutputURL
					if out == "" {
						out = f.ResultImageURL
					}
					return &TaskStatus{TaskID: taskID, Status: "success", OutputURL: out}, nil
				case "error", "failed":
					msg := f.Error
					if msg == "" {
						msg = f.ErrorMessage
					}
					return nil, &PartnerError{Code: ClassifyPartnerError(msg), Raw: msg}
				}
				// running or an unrecognized status: keep polling
			}
		}

		if consecutiveFailures >= pollFailureWindow {
			return nil, fmt.Errorf("%w: %d consecutive status errors (task %s)", ErrPollingFailed, consecutiveFailures, taskID)
		}
		if attempt == c.maxPollAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.pollInterval):
		}
	}
	return nil, fmt.Errorf("%w after %d attempts (task %s)", ErrPollTimeout, c.maxPollAttempts, taskID)
}
