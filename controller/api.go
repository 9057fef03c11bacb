package controller

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/labjacker/labjacker/controller/sequence"
)

// LoadAPI registers the operator-facing REST endpoints.
func (c *Controller) LoadAPI(r *mux.Router) {
	sr := r.PathPrefix("/api").Subrouter()
	if c.cfg.Auth.User != "" {
		sr.Use(c.basicAuth)
	}
	sr.HandleFunc("/status", c.getStatus).Methods("GET")
	sr.HandleFunc("/device", c.getDevice).Methods("GET")
	sr.HandleFunc("/device/connect", c.postConnect).Methods("POST")
	sr.HandleFunc("/device/disconnect", c.postDisconnect).Methods("POST")
	sr.HandleFunc("/valves/{id}", c.postValveToggle).Methods("POST")
	sr.HandleFunc("/sequence", c.getSequence).Methods("GET")
	sr.HandleFunc("/sequence", c.postSequenceRun).Methods("POST")
	sr.HandleFunc("/sequence/stop", c.postSequenceStop).Methods("POST")
	sr.HandleFunc("/sequence/pending", c.getPendingParam).Methods("GET")
	sr.HandleFunc("/sequence/params/{kind}", c.postParamAnswer).Methods("POST")
	sr.HandleFunc("/log", c.getLog).Methods("GET")
	sr.HandleFunc("/alerts", c.getAlerts).Methods("GET")
	sr.HandleFunc("/settings", c.getSettings).Methods("GET")
	sr.HandleFunc("/settings", c.putSettings).Methods("PUT")
	sr.HandleFunc("/calibration", c.getCalibration).Methods("GET")
	sr.HandleFunc("/health", c.getHealth).Methods("GET")

	r.Handle("/metrics", promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{}))
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func (c *Controller) getStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.Status())
}

func (c *Controller) getDevice(w http.ResponseWriter, r *http.Request) {
	info, connected := c.Connected()
	writeJSON(w, map[string]interface{}{
		"connected": connected,
		"info":      info,
	})
}

func (c *Controller) postConnect(w http.ResponseWriter, r *http.Request) {
	if err := c.Connect(); err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postDisconnect(w http.ResponseWriter, r *http.Request) {
	if err := c.Disconnect(); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) postValveToggle(w http.ResponseWriter, r *http.Request) {
	port, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "invalid valve id", http.StatusBadRequest)
		return
	}
	state, err := c.ToggleValve(port)
	if err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, ErrSequenceRunning) {
			code = http.StatusConflict
		}
		http.Error(w, err.Error(), code)
		return
	}
	writeJSON(w, map[string]string{"state": state.String()})
}

func (c *Controller) getSequence(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"state":        c.engine.State().String(),
		"last_outcome": c.engine.LastOutcome().String(),
	})
}

func (c *Controller) postSequenceRun(w http.ResponseWriter, r *http.Request) {
	if err := c.StartSequence(); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (c *Controller) postSequenceStop(w http.ResponseWriter, r *http.Request) {
	c.StopSequence()
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) getPendingParam(w http.ResponseWriter, r *http.Request) {
	kind, ok := c.engine.Gate().Pending()
	if !ok {
		writeJSON(w, map[string]interface{}{"pending": false})
		return
	}
	writeJSON(w, map[string]interface{}{"pending": true, "kind": kind.String()})
}

func (c *Controller) postParamAnswer(w http.ResponseWriter, r *http.Request) {
	kind, err := sequence.ParseParamKind(mux.Vars(r)["kind"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Value string `json:"value"`
		OK    *bool  `json:"ok"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, "invalid JSON payload", http.StatusBadRequest)
		return
	}
	ok := payload.OK == nil || *payload.OK
	if err := c.engine.Gate().Answer(kind, payload.Value, ok); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) getLog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.Logs())
}

func (c *Controller) getAlerts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, c.Alerts())
}

func (c *Controller) getSettings(w http.ResponseWriter, r *http.Request) {
	s, err := c.Settings()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, s)
}

func (c *Controller) putSettings(w http.ResponseWriter, r *http.Request) {
	var s Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if s.StepInterval < 1 || s.LoopCount < 1 {
		http.Error(w, "step_interval and loop_count must be positive", http.StatusBadRequest)
		return
	}
	if err := c.UpdateSettings(s); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	c.appendLog("settings saved")
	w.WriteHeader(http.StatusNoContent)
}

func (c *Controller) getCalibration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"formula": c.calib.Formula()})
}
