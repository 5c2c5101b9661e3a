package checkout

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	ConfigBuilder "github.com/keloran/go-config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/structs"
)

func configWithEndpoint(endpoint string) *ConfigBuilder.Config {
	cfg := ConfigBuilder.NewConfigNoVault()
	if cfg.ProjectProperties == nil {
		cfg.ProjectProperties = make(map[string]interface{})
	}
	cfg.ProjectProperties["checkout_endpoint"] = endpoint
	return cfg
}

func TestInitiate(t *testing.T) {
	var received structs.CheckoutHandoff
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))

		json.NewEncoder(w).Encode(InitiateResponse{
			CheckoutURL: "https://pay.example.com/session/abc",
			Reference:   "ref-123",
		})
	}))
	defer srv.Close()

	s := NewSystem(configWithEndpoint(srv.URL))
	resp, err := s.Initiate(structs.CheckoutHandoff{
		RunID:  "run-1",
		PlanID: "p-complete",
		Price:  14900,
		Tags:   []structs.Tag{"queda_moderada"},
	})
	require.NoError(t, err)

	assert.Equal(t, "https://pay.example.com/session/abc", resp.CheckoutURL)
	assert.Equal(t, "ref-123", resp.Reference)
	assert.Equal(t, "p-complete", received.PlanID)
	assert.Equal(t, int64(14900), received.Price)
	assert.Equal(t, []structs.Tag{"queda_moderada"}, received.Tags)
}

func TestInitiate_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSystem(configWithEndpoint(srv.URL))
	_, err := s.Initiate(structs.CheckoutHandoff{RunID: "run-1", PlanID: "p1"})
	assert.Error(t, err)
}

func TestInitiate_MissingEndpoint(t *testing.T) {
	s := NewSystem(configWithEndpoint(""))
	_, err := s.Initiate(structs.CheckoutHandoff{RunID: "run-1"})
	assert.Error(t, err)
}
