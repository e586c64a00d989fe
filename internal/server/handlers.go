package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/ownding/headscale-console/internal/validate"
)

func (s *APIServer) handleTest(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	st := s.console.ConnectionStatus(r.Context())
	if !st.AnyAvailable() {
		writeError(w, http.StatusServiceUnavailable, "all headscale connections failed")
		return
	}
	writeMessage(w, http.StatusOK, st.Summary)
}

func (s *APIServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, s.console.ConnectionStatus(r.Context()))
}

func (s *APIServer) handleNamespaces(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodPost:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	p, err := readParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	name, err := validate.Name("namespace", p.first("namespaceName", "name"), true)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if err := s.console.CreateNamespace(r.Context(), name); err != nil {
		s.log.Warn("create namespace failed", "namespace", name, "error", err)
		writeFailure(w, err)
		return
	}
	writeMessage(w, http.StatusCreated, "namespace created")
}

// ---------------------------------------------------------------------------
// Users
// ---------------------------------------------------------------------------

func (s *APIServer) handleUsersRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.handleUsersList(w, r)
	case http.MethodPost:
		s.handleUserCreate(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *APIServer) handleUsersList(w http.ResponseWriter, r *http.Request) {
	users, err := s.console.ListUsers(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *APIServer) handleUserCreate(w http.ResponseWriter, r *http.Request) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	name, err := validate.Name("username", p.first("username", "name"), false)
	if err != nil {
		writeFailure(w, err)
		return
	}
	displayName := p.first("displayName", "display_name")
	if displayName != "" {
		if displayName, err = validate.Name("displayName", displayName, true); err != nil {
			writeFailure(w, err)
			return
		}
	}

	user, err := s.console.CreateUser(r.Context(), name, displayName)
	if err != nil {
		s.log.Warn("create user failed", "user", name, "error", err)
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, user)
}

func (s *APIServer) handleUserSubroutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/users/"), "/")
	if trimmed == "" {
		s.handleUsersRoot(w, r)
		return
	}
	parts := strings.Split(trimmed, "/")
	name := strings.TrimSpace(parts[0])
	if name == "" || len(parts) > 2 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			s.handleUserGet(w, r, name)
		case http.MethodDelete:
			s.handleUserDelete(w, r, name)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch sub := parts[1]; {
	case sub == "can-delete" && r.Method == http.MethodGet:
		s.handleUserCanDelete(w, r, name)
	case sub == "preauth-keys" && r.Method == http.MethodGet:
		s.handlePreAuthKeysList(w, r, name)
	case sub == "preauth-keys" && r.Method == http.MethodPost:
		s.handlePreAuthKeyCreate(w, r, name)
	case sub == "nodes" && r.Method == http.MethodGet:
		s.handleUserNodes(w, r, name)
	case sub == "can-delete" || sub == "preauth-keys" || sub == "nodes":
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

func (s *APIServer) handleUserGet(w http.ResponseWriter, r *http.Request, name string) {
	user, err := s.console.GetUserByName(r.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

func (s *APIServer) handleUserDelete(w http.ResponseWriter, r *http.Request, name string) {
	if err := s.console.DeleteUserSafely(r.Context(), name); err != nil {
		writeFailure(w, err)
		return
	}
	writeMessage(w, http.StatusOK, "user deleted")
}

func (s *APIServer) handleUserCanDelete(w http.ResponseWriter, r *http.Request, name string) {
	ok, message, err := s.console.CanDeleteUser(r.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"canDelete": ok,
		"message":   message,
	})
}

func (s *APIServer) handlePreAuthKeysList(w http.ResponseWriter, r *http.Request, name string) {
	keys, err := s.console.ListPreAuthKeys(r.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

func (s *APIServer) handlePreAuthKeyCreate(w http.ResponseWriter, r *http.Request, name string) {
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	opts, err := preAuthKeyOptions(p, time.Now())
	if err != nil {
		writeFailure(w, err)
		return
	}
	key, err := s.console.CreatePreAuthKey(r.Context(), name, opts)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, key)
}

func (s *APIServer) handleUserNodes(w http.ResponseWriter, r *http.Request, name string) {
	nodes, err := s.console.ListNodesByUser(r.Context(), name)
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

// ---------------------------------------------------------------------------
// Nodes
// ---------------------------------------------------------------------------

func (s *APIServer) handleNodesRoot(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return
	case http.MethodGet:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	nodes, err := s.console.ListNodes(r.Context())
	if err != nil {
		writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nodes)
}

func (s *APIServer) handleNodeSubroutes(w http.ResponseWriter, r *http.Request) {
	trimmed := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/nodes/"), "/")
	if trimmed == "" {
		s.handleNodesRoot(w, r)
		return
	}
	if strings.Contains(trimmed, "/") {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	if trimmed == "status" {
		switch r.Method {
		case http.MethodOptions:
			w.WriteHeader(http.StatusNoContent)
		case http.MethodGet:
			summary, err := s.console.NodeStatus(r.Context())
			if err != nil {
				writeFailure(w, err)
				return
			}
			writeJSON(w, http.StatusOK, summary)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		}
		return
	}

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		node, err := s.console.GetNode(r.Context(), trimmed)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, node)
	case http.MethodDelete:
		if err := s.console.DeleteNode(r.Context(), trimmed); err != nil {
			writeFailure(w, err)
			return
		}
		writeMessage(w, http.StatusOK, "node deleted")
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ---------------------------------------------------------------------------
// Policy
// ---------------------------------------------------------------------------

// PolicyResponse carries the policy document as text.
type PolicyResponse struct {
	Policy string `json:"policy"`
}

func (s *APIServer) handleACL(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	case http.MethodGet:
		policy, err := s.console.GetPolicy(r.Context())
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PolicyResponse{Policy: policy})
	case http.MethodPut:
		body, err := readBody(r)
		if err != nil {
			writeFailure(w, err)
			return
		}
		updated, err := s.console.SetPolicy(r.Context(), body)
		if err != nil {
			writeFailure(w, err)
			return
		}
		writeJSON(w, http.StatusOK, PolicyResponse{Policy: updated})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// ---------------------------------------------------------------------------
// Metrics
// ---------------------------------------------------------------------------

func (s *APIServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		if s.metrics == nil {
			http.Error(w, "metrics not configured", http.StatusServiceUnavailable)
			return
		}
		s.metrics.Handler().ServeHTTP(w, r)
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}
