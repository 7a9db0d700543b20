package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vk/assetgraph/internal/ctxlog"
	"github.com/vk/assetgraph/internal/engine"
	"github.com/vk/assetgraph/internal/spec"
)

// errorResponse is the body of every 4xx answer.
type errorResponse struct {
	Detail string           `json:"detail"`
	Kind   engine.ErrorKind `json:"kind,omitempty"`
	RunID  string           `json:"runId,omitempty"`
}

// validateResponse is the body of /api/validate-graph.
type validateResponse struct {
	Valid        bool             `json:"valid"`
	Order        []string         `json:"order,omitempty"`
	UnknownTypes []string         `json:"unknownTypes,omitempty"`
	Detail       string           `json:"detail,omitempty"`
	Kind         engine.ErrorKind `json:"kind,omitempty"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"message": "AssetGraph engine is running"})
}

// HealthHandler answers liveness probes.
func HealthHandler(w http.ResponseWriter, r *http.Request) {
	ctxlog.FromContext(r.Context()).Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

func (s *Server) handleNodeTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string][]string{"types": s.engine.Registry().Types()})
}

// handleExecute runs the posted graph. 200 means every node finished, 500
// carries the same payload when the error log is non-empty, and 400 means
// the body or the graph itself was rejected.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	logger := ctxlog.FromContext(r.Context())

	mode := s.opts.ResultMode
	if q := r.URL.Query().Get("mode"); q != "" {
		m, err := engine.ParseResultMode(q)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
			return
		}
		mode = m
	}

	gs, err := s.decodeSpec(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}

	logger.Info("Received graph for execution.", "nodes", len(gs.Nodes), "edges", len(gs.Edges))
	res := s.engine.Run(r.Context(), gs)
	w.Header().Set("X-Run-ID", res.RunID)

	if res.Err != nil {
		rejected := errorResponse{Detail: res.Err.Error(), Kind: res.Kind(), RunID: res.RunID}
		s.hub.Publish(Message{Type: MessageError, Data: rejected})
		writeJSON(w, http.StatusBadRequest, rejected)
		return
	}

	status := http.StatusOK
	if res.Failed() {
		status = http.StatusInternalServerError
		logger.Warn("Graph execution finished with errors.", "errors", len(res.Errors()))
	}
	writeJSON(w, status, res.Payload(mode))
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	gs, err := s.decodeSpec(w, r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validateResponse{Detail: err.Error()})
		return
	}

	plan, err := s.engine.Plan(gs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, validateResponse{Detail: err.Error(), Kind: engine.GraphErrorKind(err)})
		return
	}
	writeJSON(w, http.StatusOK, validateResponse{
		Valid:        true,
		Order:        plan.Order,
		UnknownTypes: s.engine.UnknownTypes(gs),
	})
}

// decodeSpec reads a JSON or YAML graph from the request body. HCL is only
// accepted from files because it can read the server's environment.
func (s *Server) decodeSpec(w http.ResponseWriter, r *http.Request) (*spec.GraphSpec, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit)
		}
		return nil, fmt.Errorf("reading request body: %w", err)
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, errors.New("request body is empty")
	}

	format := spec.FormatJSON
	if ct := r.Header.Get("Content-Type"); strings.Contains(ct, "yaml") {
		format = spec.FormatYAML
	}
	return spec.Parse(body, format, "request body")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
