package comfyui

import (
	"errors"
	"fmt"
)

// QueueResponse response from POST /prompt
type QueueResponse struct {
	PromptID string `json:"prompt_id"`
}

// ImageRef describes one produced image on the server.
type ImageRef struct {
	Filename  string `json:"filename"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// NodeOutput the artifacts one node produced
type NodeOutput struct {
	Images []ImageRef `json:"images"`
}

// Outputs maps node id to that node's produced artifacts.
type Outputs map[string]NodeOutput

// HistoryEntry one prompt's record in GET /history
type HistoryEntry struct {
	Outputs Outputs `json:"outputs"`
}

// History maps prompt id to its history entry.
type History map[string]HistoryEntry

// UploadResponse response from POST /upload/image
type UploadResponse struct {
	Name      string `json:"name"`
	Subfolder string `json:"subfolder"`
	Type      string `json:"type"`
}

// ErrExecutionTimeout indicates the polling deadline elapsed before the
// server reported any outputs.
var ErrExecutionTimeout = errors.New("prompt execution timed out")

// SubmissionError indicates the server rejected a prompt submission.
type SubmissionError struct {
	StatusCode int
	Body       string
}

func (e *SubmissionError) Error() string {
	return fmt.Sprintf("prompt submission failed: HTTP %d: %s", e.StatusCode, e.Body)
}

// RetrievalError indicates a produced image could not be downloaded.
type RetrievalError struct {
	Image ImageRef
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("failed to retrieve image %s: %v", e.Image.Filename, e.Err)
}

func (e *RetrievalError) Unwrap() error {
	return e.Err
}
