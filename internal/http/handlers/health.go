package handlers

import (
	"net/http"
)

func (a *App) Root(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "PandaAI API running!"})
}

func (a *App) Health(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (a *App) NotFound(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (a *App) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	a.json(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
}
