package flow

import (
	"encoding/json"
	"net/http"

	"github.com/bugfixes/go-bugfixes/logs"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/errors"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/tags"
)

func (s *System) GetAllFlows(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())

	f, err := s.AllFlows()
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) CreateFlowHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var f structs.Flow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	if f.Name == "" {
		errors.WriteHTTPError(w, errors.NewValidationError("name", "flow name is required"))
		return
	}

	rf, err := s.CreateFlow(&f)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(rf); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) GetFlowHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	f, err := s.GetFlow(flowId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) UpdateFlowHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var f structs.Flow
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	f.ID = flowId

	rf, err := s.UpdateFlow(&f)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(rf); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) DeleteFlowHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	if err := s.DeleteFlow(flowId); err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *System) DuplicateFlowHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	f, err := s.DuplicateFlow(flowId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) UpdateFlowStatusHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")
	defer func() {
		if err := r.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	var body struct {
		IsActive *bool `json:"isActive"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		errors.WriteHTTPError(w, errors.NewValidationError("body", "invalid JSON format"))
		return
	}
	if body.IsActive == nil {
		errors.WriteHTTPError(w, errors.NewValidationError("isActive", "isActive is required"))
		return
	}

	f, err := s.SetFlowStatus(flowId, *body.IsActive)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	if err := json.NewEncoder(w).Encode(f); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}

func (s *System) FlowTagsHandler(w http.ResponseWriter, r *http.Request) {
	s.SetContext(r.Context())
	flowId := r.PathValue("flowId")

	f, err := s.GetFlow(flowId)
	if err != nil {
		errors.WriteHTTPError(w, err)
		return
	}

	vocab := struct {
		Tags []structs.Tag `json:"tags"`
	}{Tags: tags.Vocabulary(*f)}

	if err := json.NewEncoder(w).Encode(vocab); err != nil {
		errors.WriteHTTPError(w, errors.NewInternalError("failed to encode response"))
	}
}
