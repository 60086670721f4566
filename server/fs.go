package server

import (
	"net/http"
)

type healthBody struct {
	Ok       bool   `json:"ok"`
	BasePath string `json:"basePath"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, &healthBody{Ok: true, BasePath: s.browser.Base()})
}

func (s *Server) handleFSList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	listing, err := s.browser.List(r.Context(), r.URL.Query().Get("path"))
	if err != nil {
		writeError(w, fsErrorStatus(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, listing)
}
