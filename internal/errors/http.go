package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

// HTTPError represents the structure of error responses sent to clients
type HTTPError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// WriteHTTPError writes an error response to the HTTP response writer
func WriteHTTPError(w http.ResponseWriter, err error) {
	statusCode := http.StatusInternalServerError
	httpErr := HTTPError{
		Code:    "INTERNAL_ERROR",
		Message: "An internal error occurred",
	}

	// Check for validation errors
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		statusCode = http.StatusBadRequest
		httpErr.Code = "VALIDATION_ERROR"
		httpErr.Message = validationErr.Error()
		if validationErr.Field != "" {
			httpErr.Details = map[string]string{"field": validationErr.Field}
		}
	}

	// Check for flow errors
	var flowErr *FlowError
	if errors.As(err, &flowErr) {
		switch {
		case errors.Is(flowErr.Err, ErrFlowNotFound):
			statusCode = http.StatusNotFound
			httpErr.Code = "FLOW_NOT_FOUND"
		case errors.Is(flowErr.Err, ErrBlockNotFound):
			statusCode = http.StatusNotFound
			httpErr.Code = "BLOCK_NOT_FOUND"
		case errors.Is(flowErr.Err, ErrDuplicateBlockID):
			statusCode = http.StatusConflict
			httpErr.Code = "DUPLICATE_BLOCK_ID"
		case errors.Is(flowErr.Err, ErrCheckoutDuplicate):
			statusCode = http.StatusBadRequest
			httpErr.Code = "CHECKOUT_DUPLICATE"
		default:
			statusCode = http.StatusBadRequest
			httpErr.Code = "FLOW_ERROR"
		}
		httpErr.Message = flowErr.Error()
		details := make(map[string]string)
		if flowErr.FlowID != "" {
			details["flowId"] = flowErr.FlowID
		}
		if flowErr.BlockID != "" {
			details["blockId"] = flowErr.BlockID
		}
		if len(details) > 0 {
			httpErr.Details = details
		}
	}

	// Check for run errors
	var runErr *RunError
	if errors.As(err, &runErr) {
		switch {
		case errors.Is(runErr.Err, ErrRunNotFound):
			statusCode = http.StatusNotFound
			httpErr.Code = "RUN_NOT_FOUND"
		case errors.Is(runErr.Err, ErrRunTerminal):
			statusCode = http.StatusConflict
			httpErr.Code = "RUN_TERMINAL"
		case errors.Is(runErr.Err, ErrQuestionNotFound):
			statusCode = http.StatusNotFound
			httpErr.Code = "QUESTION_NOT_FOUND"
		default:
			statusCode = http.StatusBadRequest
			httpErr.Code = "RUN_ERROR"
		}
		httpErr.Message = runErr.Error()
		if runErr.RunID != "" {
			httpErr.Details = map[string]string{"runId": runErr.RunID}
		}
	}

	// Check for sentinel errors
	switch {
	case errors.Is(err, ErrFlowNotFound):
		statusCode = http.StatusNotFound
		httpErr.Code = "FLOW_NOT_FOUND"
		httpErr.Message = err.Error()
	case errors.Is(err, ErrBlockNotFound):
		statusCode = http.StatusNotFound
		httpErr.Code = "BLOCK_NOT_FOUND"
		httpErr.Message = err.Error()
	case errors.Is(err, ErrRunNotFound):
		statusCode = http.StatusNotFound
		httpErr.Code = "RUN_NOT_FOUND"
		httpErr.Message = err.Error()
	case errors.Is(err, ErrRuleNotFound):
		statusCode = http.StatusNotFound
		httpErr.Code = "RULE_NOT_FOUND"
		httpErr.Message = err.Error()
	case errors.Is(err, ErrInvalidFlow):
		statusCode = http.StatusBadRequest
		httpErr.Code = "INVALID_FLOW"
		httpErr.Message = err.Error()
	}

	// Write the response
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": httpErr,
	})
}

// WriteHTTPSuccess writes a success response to the HTTP response writer
func WriteHTTPSuccess(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}
