package run

import (
	"encoding/json"
	"net/http"

	"github.com/bugfixes/go-bugfixes/logs"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

func (s *System) StartRunHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	v, err := s.StartRun(flowId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) GetRunHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")

	v, err := s.GetRun(runId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) AnswerHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var req structs.AnswerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	if req.QuestionID == "" {
		errors.WriteHTTPError(w, errors.NewValidationError("questionId", "question id is required"))
		return
	}

	v, err := s.Answer(runId, req)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) NextHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")

	v, err := s.Next(runId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) PreviousHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")

	v, err := s.Previous(runId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) SelectPlanHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var req structs.PlanSelectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	if req.PlanID == "" {
		errors.WriteHTTPError(w, errors.NewValidationError("planId", "plan id is required"))
		return
	}

	v, err := s.SelectPlan(runId, req)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) CheckoutHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")

	v, err := s.Checkout(runId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(v); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) DeleteRunHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	runId := r.PathValue("runId")

	if err := s.DeleteRun(runId); err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
