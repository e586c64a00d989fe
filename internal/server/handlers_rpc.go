package server

import (
	"net/http"
	"strings"
)

// wantsText reports whether the caller asked for the plain-text rendering.
func wantsText(r *http.Request) bool {
	if strings.EqualFold(r.URL.Query().Get("format"), "text") {
		return true
	}
	return strings.HasPrefix(r.Header.Get("Accept"), "text/plain")
}

func writeText(w http.ResponseWriter, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(text))
}

// rpcPreamble handles method checks and the disabled-diagnostics case.
func (s *APIServer) rpcPreamble(w http.ResponseWriter, r *http.Request) bool {
	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusNoContent)
		return false
	case http.MethodGet:
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return false
	}
	if s.diag == nil {
		writeError(w, http.StatusServiceUnavailable, "rpc diagnostics unavailable")
		return false
	}
	return true
}

func (s *APIServer) handleRPCDiagnostics(w http.ResponseWriter, r *http.Request) {
	if !s.rpcPreamble(w, r) {
		return
	}
	report := s.diag.Report(r.Context())
	if wantsText(r) {
		writeText(w, report.Text())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *APIServer) handleRPCConnectivity(w http.ResponseWriter, r *http.Request) {
	if !s.rpcPreamble(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, s.diag.CheckConnectivity(r.Context()))
}

func (s *APIServer) handleRPCModes(w http.ResponseWriter, r *http.Request) {
	if !s.rpcPreamble(w, r) {
		return
	}
	modes := s.diag.SuggestModes(r.Context())
	if wantsText(r) {
		writeText(w, modes.Text())
		return
	}
	writeJSON(w, http.StatusOK, modes)
}

func (s *APIServer) handleRPCProbe(w http.ResponseWriter, r *http.Request) {
	if !s.rpcPreamble(w, r) {
		return
	}
	p, err := readParams(r)
	if err != nil {
		writeFailure(w, err)
		return
	}
	port, err := p.number("port")
	if err != nil {
		writeFailure(w, err)
		return
	}
	useTLS, err := p.flag("tls")
	if err != nil {
		writeFailure(w, err)
		return
	}

	res, err := s.diag.ProbeEndpoint(r.Context(), p.first("host"), port, useTLS)
	if err != nil {
		writeFailure(w, err)
		return
	}
	if wantsText(r) {
		writeText(w, res.Text())
		return
	}
	writeJSON(w, http.StatusOK, res)
}
