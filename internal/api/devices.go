package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/cyncbridge/cyncbridge/internal/device"
)

// deviceView is the JSON projection of a device snapshot served by the
// diagnostics API — a subset of device.Device's fields, shaped for an
// operator rather than for wire reconstruction.
type deviceView struct {
	ID          device.ID `json:"id"`
	Name        string    `json:"name"`
	Online      bool      `json:"online"`
	On          bool      `json:"on"`
	Brightness  uint8     `json:"brightness"`
	Temperature uint8     `json:"temperature"`
	R           uint8     `json:"r"`
	G           uint8     `json:"g"`
	B           uint8     `json:"b"`
}

func viewOf(d device.Device) deviceView {
	return deviceView{
		ID: d.ID, Name: d.Name, Online: d.Online, On: d.On,
		Brightness: d.Brightness, Temperature: d.Temperature,
		R: d.R, G: d.G, B: d.B,
	}
}

func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	devices := s.registry.ListDevices()
	views := make([]deviceView, 0, len(devices))
	for _, d := range devices {
		views = append(views, viewOf(d.Snapshot()))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "device id must be numeric")
		return
	}
	d, err := s.registry.Device(device.ID(id))
	if err != nil {
		writeNotFound(w, "device not found")
		return
	}
	writeJSON(w, http.StatusOK, viewOf(d.Snapshot()))
}
