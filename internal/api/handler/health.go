package handler

import (
	"context"
	"net/http"
)

type HealthResponse struct {
	Status string `json:"status"`
}

// Health reports process liveness.
func Health(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	})
}

// ReadyCheck names one dependency probe run by the readiness endpoint.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Ready reports readiness by probing each dependency in order. The first
// failure wins and its name is reported in the 503 body.
func Ready(checks ...ReadyCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, c := range checks {
			if err := c.Check(r.Context()); err != nil {
				Error(w, http.StatusServiceUnavailable, "not_ready", c.Name+": "+err.Error())
				return
			}
		}
		JSON(w, http.StatusOK, HealthResponse{
			Status: "ok",
		})
	}
}
