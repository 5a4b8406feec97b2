package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/pkg/errors"
)

// Result is the normalized envelope every gateway call returns. Expected
// failure modes (transport errors, non-2xx statuses, malformed bodies) are
// reported through it rather than as Go errors, so callers handle one shape.
type Result struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
	Message string          `json:"message,omitempty"`
	Status  int             `json:"-"`
}

// Decode unmarshals the response payload into v.
func (r Result) Decode(v any) error {
	if !r.Success {
		if r.Error != "" {
			return errors.Errorf("[Result.Decode] call failed: %s", r.Error)
		}
		return errors.New("[Result.Decode] call failed")
	}
	if len(r.Data) == 0 {
		return errors.New("[Result.Decode] empty response payload")
	}
	return errors.Wrap(json.Unmarshal(r.Data, v), "[Result.Decode] unmarshal")
}

func failure(status int, format string, args ...any) Result {
	return Result{Success: false, Status: status, Error: fmt.Sprintf(format, args...)}
}

// serverError mirrors the error body shapes the backend is known to emit.
type serverError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Detail  string `json:"detail"`
}

// errorMessage extracts the server-provided message from an error response
// body, falling back to a status-derived description.
func errorMessage(status int, body []byte) (errMsg, message string) {
	var se serverError
	if len(body) > 0 && json.Unmarshal(body, &se) == nil {
		switch {
		case se.Error != "":
			return se.Error, se.Message
		case se.Detail != "":
			return se.Detail, se.Message
		case se.Message != "":
			return se.Message, ""
		}
	}
	return fmt.Sprintf("HTTP Error: %d", status), ""
}
