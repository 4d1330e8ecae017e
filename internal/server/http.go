package server

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/devtree/internal/devtree"
	"github.com/muurk/devtree/internal/logging"
)

// DeviceJSON is one device tree entry as served by /devices.
type DeviceJSON struct {
	Syspath    string            `json:"syspath"`
	Subsystem  string            `json:"subsystem,omitempty"`
	Sysname    string            `json:"sysname,omitempty"`
	Devtype    string            `json:"devtype,omitempty"`
	Devnode    string            `json:"devnode,omitempty"`
	Properties map[string]string `json:"properties,omitempty"`
}

// handleDevices lists the current device tree. Each request opens and
// tears down its own session, so the handler goroutine owns every
// handle it touches.
func (s *Server) handleDevices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ctx, err := devtree.Open(s.sys)
	if err != nil {
		logging.Error("Failed to open device session",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		http.Error(w, "device tree unavailable", http.StatusServiceUnavailable)
		return
	}
	defer ctx.Close()

	e, err := devtree.NewEnumerator(ctx)
	if err != nil {
		http.Error(w, "device tree unavailable", http.StatusServiceUnavailable)
		return
	}
	defer e.Close()

	if v := r.URL.Query().Get("subsystem"); v != "" {
		e.MatchSubsystem(v)
	}
	if v := r.URL.Query().Get("sysname"); v != "" {
		e.MatchSysname(v)
	}

	devices, err := e.Devices()
	if err != nil {
		logging.Error("Enumeration failed",
			zap.String("remote_addr", r.RemoteAddr),
			zap.Error(err),
		)
		http.Error(w, "enumeration failed", http.StatusInternalServerError)
		return
	}

	out := make([]DeviceJSON, 0, len(devices))
	for _, dev := range devices {
		info := dev.Info()
		out = append(out, DeviceJSON{
			Syspath:    info.Syspath,
			Subsystem:  info.Subsystem,
			Sysname:    info.Sysname,
			Devtype:    info.Devtype,
			Devnode:    info.Devnode,
			Properties: dev.Properties(),
		})
		_ = dev.Close()
	}

	logging.Debug("Served device listing",
		zap.String("remote_addr", r.RemoteAddr),
		zap.Int("devices", len(out)),
	)

	writeJSON(w, http.StatusOK, out)
}

// handleHealthz reports liveness plus a few counters.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"clients": s.hub.ClientCount(),
		"events":  s.hub.EventCount(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write JSON response", zap.Error(err))
	}
}
