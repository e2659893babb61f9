package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/cyncbridge/cyncbridge/internal/command"
)

// commandRequest is the JSON body accepted by the commissioning
// command-enqueue endpoint, mirroring the MQTT router's set payload.
type commandRequest struct {
	On          *bool   `json:"on,omitempty"`
	Brightness  *uint8  `json:"brightness,omitempty"`
	Temperature *uint8  `json:"temperature,omitempty"`
	R           *uint8  `json:"r,omitempty"`
	G           *uint8  `json:"g,omitempty"`
	B           *uint8  `json:"b,omitempty"`
	FanSpeed    *string `json:"fan_speed,omitempty"`
	Effect      *string `json:"effect,omitempty"`
}

const commandWaitTimeout = 3 * time.Second

// handlePostDeviceCommand enqueues a single command for a device,
// waits briefly for its outcome, and reports it — this is the
// commissioning path that lets the bridge be operated without an MQTT
// broker present.
func (s *Server) handlePostDeviceCommand(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		writeInternalError(w, "command queue is not configured")
		return
	}

	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "device id must be numeric")
		return
	}

	var req commandRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	cmd, ok := commandFromRequest(id, req)
	if !ok {
		writeBadRequest(w, "request must set at least one of on/brightness/temperature/rgb/fan_speed/effect")
		return
	}

	handle := s.queue.Enqueue(cmd)
	select {
	case outcome := <-handle.Done():
		writeJSON(w, http.StatusOK, map[string]any{"acked": outcome.Acked, "error": errString(outcome.Err)})
	case <-time.After(commandWaitTimeout):
		writeJSON(w, http.StatusAccepted, map[string]any{"acked": false, "pending": true})
	}
}

func commandFromRequest(id int, req commandRequest) (*command.Command, bool) {
	switch {
	case req.On != nil && req.Brightness == nil && req.Temperature == nil:
		return &command.Command{Kind: command.KindPower, Target: command.TargetDevice, TargetID: id, On: *req.On}, true
	case req.Brightness != nil:
		on := *req.Brightness > 0
		if req.On != nil {
			on = *req.On
		}
		return &command.Command{Kind: command.KindBrightness, Target: command.TargetDevice, TargetID: id, On: on, Brightness: *req.Brightness}, true
	case req.Temperature != nil:
		return &command.Command{Kind: command.KindTemperature, Target: command.TargetDevice, TargetID: id, Temperature: *req.Temperature}, true
	case req.R != nil || req.G != nil || req.B != nil:
		return &command.Command{Kind: command.KindRGB, Target: command.TargetDevice, TargetID: id, R: deref(req.R), G: deref(req.G), B: deref(req.B)}, true
	case req.FanSpeed != nil:
		return &command.Command{Kind: command.KindFanSpeed, Target: command.TargetDevice, TargetID: id, FanSpeed: *req.FanSpeed}, true
	case req.Effect != nil:
		return &command.Command{Kind: command.KindLightshow, Target: command.TargetDevice, TargetID: id, Effect: *req.Effect}, true
	default:
		return nil, false
	}
}

func deref(p *uint8) uint8 {
	if p == nil {
		return 0
	}
	return *p
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
