package output

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/twiced-technology-gmbh/trackflow/internal/apierr"
)

func indentedEncoder(w io.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc
}

// JSON writes data as indented JSON to the given writer.
func JSON(w io.Writer, data any) error {
	if err := indentedEncoder(w).Encode(data); err != nil {
		return fmt.Errorf("encoding JSON: %w", err)
	}
	return nil
}

// ErrorResponse is the JSON envelope for errors, shared by the CLI and the
// HTTP API.
type ErrorResponse struct {
	Error   string         `json:"error"`
	Code    string         `json:"code"`
	Details map[string]any `json:"details,omitempty"`
}

// NewErrorResponse builds the envelope for err. Errors without a code are
// reported as INTERNAL_ERROR.
func NewErrorResponse(err error) ErrorResponse {
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return ErrorResponse{Error: apiErr.Message, Code: apiErr.Code, Details: apiErr.Details}
	}
	return ErrorResponse{Error: err.Error(), Code: apierr.InternalError}
}

// JSONError writes err as an ErrorResponse and returns the exit code the
// process should end with.
func JSONError(w io.Writer, err error) int {
	_ = indentedEncoder(w).Encode(NewErrorResponse(err))
	var apiErr *apierr.Error
	if errors.As(err, &apiErr) {
		return apiErr.ExitCode()
	}
	return 2 //nolint:mnd // exit code 2 for internal errors
}

// BatchResult is the outcome of one operation within a batch.
type BatchResult struct {
	Ref   string `json:"ref"`
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
	Code  string `json:"code,omitempty"`
}

// NewBatchResult records the outcome of the operation on ref.
func NewBatchResult(ref string, err error) BatchResult {
	if err == nil {
		return BatchResult{Ref: ref, OK: true}
	}
	resp := NewErrorResponse(err)
	return BatchResult{Ref: ref, Error: resp.Error, Code: resp.Code}
}
