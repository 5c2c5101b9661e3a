package internal

import (
	"context"
	"crypto/tls"
	"net/http"
	"strconv"
	"time"

	"github.com/bugfixes/go-bugfixes/logs"
	"github.com/bugfixes/go-bugfixes/middleware"
	ConfigBuilder "github.com/keloran/go-config"

	"github.com/tiago-py/bravo-health-flow-sub000/internal/builder"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/flow"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/run"
	"github.com/tiago-py/bravo-health-flow-sub000/internal/runstore"
)

type Service struct {
	Config *ConfigBuilder.Config
}

func New(cfg *ConfigBuilder.Config) *Service {
	return &Service{
		Config: cfg,
	}
}

func (s *Service) Start() error {
	errChan := make(chan error)
	go s.startHTTP(errChan)

	return <-errChan
}

// buildRunStore picks the run store: Redis when an address is
// configured, in-memory otherwise. Runs are short-lived, so losing them
// on restart of a single-instance deployment is acceptable; Redis is
// for running more than one instance.
func (s *Service) buildRunStore() (runstore.Store, error) {
	addr, _ := s.Config.ProjectProperties["redis_addr"].(string)
	if addr == "" {
		return runstore.NewMemoryStore(), nil
	}

	password, _ := s.Config.ProjectProperties["redis_password"].(string)
	return runstore.NewRedisStore(runstore.RedisOptions{
		Addr:     addr,
		Password: password,
		TTL:      24 * time.Hour,
	})
}

func (s *Service) startHTTP(errChan chan error) {
	mux := http.NewServeMux()

	store, err := s.buildRunStore()
	if err != nil {
		errChan <- logs.Errorf("failed to build run store: %v", err)
		return
	}

	// flow storage
	mux.HandleFunc("GET /flows", flow.NewSystem(s.Config).GetAllFlows)
	mux.HandleFunc("POST /flow", flow.NewSystem(s.Config).CreateFlowHandler)
	mux.HandleFunc("GET /flow/{flowId}", flow.NewSystem(s.Config).GetFlowHandler)
	mux.HandleFunc("PUT /flow/{flowId}", flow.NewSystem(s.Config).UpdateFlowHandler)
	mux.HandleFunc("DELETE /flow/{flowId}", flow.NewSystem(s.Config).DeleteFlowHandler)
	mux.HandleFunc("POST /flow/{flowId}/duplicate", flow.NewSystem(s.Config).DuplicateFlowHandler)
	mux.HandleFunc("PATCH /flow/{flowId}/status", flow.NewSystem(s.Config).UpdateFlowStatusHandler)
	mux.HandleFunc("GET /flow/{flowId}/tags", flow.NewSystem(s.Config).FlowTagsHandler)

	// flow authoring
	mux.HandleFunc("POST /flow/preview", builder.NewSystem(s.Config).PreviewHandler)
	mux.HandleFunc("POST /flow/{flowId}/block", builder.NewSystem(s.Config).InsertBlockHandler)
	mux.HandleFunc("PUT /flow/{flowId}/block/{blockId}", builder.NewSystem(s.Config).UpdateBlockHandler)
	mux.HandleFunc("DELETE /flow/{flowId}/block/{blockId}", builder.NewSystem(s.Config).RemoveBlockHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/reorder", builder.NewSystem(s.Config).ReorderBlockHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/duplicate", builder.NewSystem(s.Config).DuplicateBlockHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/rule", builder.NewSystem(s.Config).AddRuleHandler)
	mux.HandleFunc("PUT /flow/{flowId}/block/{blockId}/rule/{ruleId}", builder.NewSystem(s.Config).UpdateRuleHandler)
	mux.HandleFunc("DELETE /flow/{flowId}/block/{blockId}/rule/{ruleId}", builder.NewSystem(s.Config).RemoveRuleHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/rule/{ruleId}/move", builder.NewSystem(s.Config).MoveRuleHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/plan", builder.NewSystem(s.Config).AddPlanHandler)
	mux.HandleFunc("PUT /flow/{flowId}/block/{blockId}/plan/{planId}", builder.NewSystem(s.Config).UpdatePlanHandler)
	mux.HandleFunc("DELETE /flow/{flowId}/block/{blockId}/plan/{planId}", builder.NewSystem(s.Config).RemovePlanHandler)
	mux.HandleFunc("POST /flow/{flowId}/block/{blockId}/plan/{planId}/move", builder.NewSystem(s.Config).MovePlanHandler)

	// run the flows against live users
	mux.HandleFunc("POST /run/{flowId}", run.NewSystem(s.Config, store).StartRunHandler)
	mux.HandleFunc("GET /run/{runId}", run.NewSystem(s.Config, store).GetRunHandler)
	mux.HandleFunc("DELETE /run/{runId}", run.NewSystem(s.Config, store).DeleteRunHandler)
	mux.HandleFunc("POST /run/{runId}/answer", run.NewSystem(s.Config, store).AnswerHandler)
	mux.HandleFunc("POST /run/{runId}/next", run.NewSystem(s.Config, store).NextHandler)
	mux.HandleFunc("POST /run/{runId}/previous", run.NewSystem(s.Config, store).PreviousHandler)
	mux.HandleFunc("POST /run/{runId}/plan", run.NewSystem(s.Config, store).SelectPlanHandler)
	mux.HandleFunc("POST /run/{runId}/checkout", run.NewSystem(s.Config, store).CheckoutHandler)

	mw := middleware.NewMiddleware(context.Background())
	mw.AddMiddleware(middleware.SetupLogger(middleware.Error).Logger)
	mw.AddMiddleware(middleware.RequestID)
	mw.AddMiddleware(middleware.Recoverer)
	mw.AddMiddleware(mw.CORS)
	mw.AddMiddleware(middleware.LowerCaseHeaders)
	mw.AddAllowedMethods(http.MethodGet, http.MethodPost, http.MethodOptions, http.MethodDelete, http.MethodPut, http.MethodPatch)

	port := s.Config.Local.HTTPPort
	railwayPort, _ := s.Config.ProjectProperties["railway_port"].(string)
	onRailway, _ := s.Config.ProjectProperties["on_railway"].(bool)
	if railwayPort != "" && onRailway {
		i, err := strconv.Atoi(railwayPort)
		if err != nil {
			errChan <- logs.Error("failed to parse port %v", err)
		}
		port = i
	}

	logs.Logf("Starting server on port %d", port)
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           mux,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		TLSNextProto:      make(map[string]func(*http.Server, *tls.Conn, http.Handler)),
	}
	errChan <- server.ListenAndServe()
}
