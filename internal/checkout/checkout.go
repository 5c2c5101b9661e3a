package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/bugfixes/go-bugfixes/logs"
	ConfigBuilder "github.com/keloran/go-config"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

// System hands a completed run over to the external payment initiation
// endpoint. Payment capture is the provider's job; this only emits the
// opaque plan reference and the accumulated tags.
type System struct {
	Config  *ConfigBuilder.Config
	Context context.Context
	Client  *http.Client
}

func NewSystem(cfg *ConfigBuilder.Config) *System {
	return &System{
		Config:  cfg,
		Context: context.Background(),
		Client:  http.DefaultClient,
	}
}

func (s *System) SetContext(ctx context.Context) *System {
	s.Context = ctx
	return s
}

// InitiateResponse is what the payment provider answers with: where to
// send the user next.
type InitiateResponse struct {
	CheckoutURL string `json:"checkoutUrl"`
	Reference   string `json:"reference"`
}

// Initiate posts the handoff record to the payment initiation endpoint.
// The run state is not mutated here; a transport failure leaves the run
// at checkout so the handoff can be retried.
func (s *System) Initiate(handoff structs.CheckoutHandoff) (*InitiateResponse, error) {
	endpoint, _ := s.Config.ProjectProperties["checkout_endpoint"].(string)
	if endpoint == "" {
		return nil, logs.Error("checkout endpoint is not configured")
	}

	data, err := json.Marshal(handoff)
	if err != nil {
		return nil, logs.Errorf("failed to marshal handoff: %v", err)
	}

	req, err := http.NewRequestWithContext(s.Context, http.MethodPost, endpoint, bytes.NewBuffer(data))
	if err != nil {
		return nil, logs.Errorf("error building http request: %s", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Anamnesis Flow Engine")

	resp, err := s.Client.Do(req)
	if err != nil {
		return nil, logs.Errorf("checkout request failed: %v", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			_ = logs.Errorf("error closing body: %v", err)
		}
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, logs.Errorf("error reading response body: %s", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, logs.Errorf("checkout endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var out InitiateResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode checkout response: %w", err)
	}

	return &out, nil
}
