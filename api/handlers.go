package api

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/robertof/go-rapt-exporter/brewing"
	"github.com/robertof/go-rapt-exporter/collector"
	"github.com/robertof/go-rapt-exporter/collector/model"
	"github.com/robertof/go-rapt-exporter/device"
)

type startSessionRequest struct {
  brewing.SessionParams
}

type stageRequest struct {
  Stage string `json:"stage"`
}

type notesRequest struct {
  Notes string `json:"notes"`
}

type frameRequest struct {
  VendorID uint16 `json:"vendor_id"`
  // hex encoded manufacturer data, company ID included.
  Payload string `json:"payload"`
  RSSI int `json:"rssi"`
  Addr string `json:"addr"`
}

type frameResponse struct {
  Reading device.Reading `json:"reading"`
  Applied bool `json:"applied"`
}

func (s *Server) HandleListSessions(w http.ResponseWriter, r *http.Request) {
  sessions := s.coordinator.Sessions()
  out := make([]brewing.Summary, len(sessions))

  for i, session := range sessions {
    out[i] = brewing.Summarize(session, s.now())
    // histories are only served for single sessions.
    out[i].History = nil
  }

  respondJSON(w, http.StatusOK, out)
}

func (s *Server) HandleGetCurrentSession(w http.ResponseWriter, r *http.Request) {
  session, ok := s.coordinator.Current()

  if !ok {
    respondError(w, http.StatusNotFound, collector.ErrNoCurrentSession.Error())
    return
  }

  respondJSON(w, http.StatusOK, brewing.Summarize(session, s.now()))
}

func (s *Server) HandleGetSession(w http.ResponseWriter, r *http.Request) {
  session, err := s.coordinator.Session(chi.URLParam(r, "id"))

  if err != nil {
    respondDomainError(w, err)
    return
  }

  respondJSON(w, http.StatusOK, brewing.Summarize(session, s.now()))
}

func (s *Server) HandleStartSession(w http.ResponseWriter, r *http.Request) {
  var req startSessionRequest

  if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
    respondError(w, http.StatusBadRequest, "invalid request body")
    return
  }

  if req.Name == "" {
    respondError(w, http.StatusBadRequest, "name is required")
    return
  }

  id, err := s.coordinator.StartSession(req.SessionParams)

  if err != nil {
    respondDomainError(w, err)
    return
  }

  session, err := s.coordinator.Session(id)

  if err != nil {
    respondDomainError(w, err)
    return
  }

  respondJSON(w, http.StatusCreated, brewing.Summarize(session, s.now()))
}

func (s *Server) HandleStopSession(w http.ResponseWriter, r *http.Request) {
  if err := s.coordinator.StopSession(chi.URLParam(r, "id")); err != nil {
    respondDomainError(w, err)
    return
  }

  w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
  if err := s.coordinator.DeleteSession(chi.URLParam(r, "id")); err != nil {
    respondDomainError(w, err)
    return
  }

  w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleAcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
  index, err := strconv.Atoi(chi.URLParam(r, "index"))

  if err != nil {
    respondError(w, http.StatusBadRequest, "invalid alert index")
    return
  }

  if err := s.coordinator.AcknowledgeAlert(chi.URLParam(r, "id"), index); err != nil {
    respondDomainError(w, err)
    return
  }

  w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleSetStage(w http.ResponseWriter, r *http.Request) {
  var req stageRequest

  if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
    respondError(w, http.StatusBadRequest, "invalid request body")
    return
  }

  stage, err := brewing.ParseStage(req.Stage)

  if err != nil {
    respondError(w, http.StatusBadRequest, err.Error())
    return
  }

  if err := s.coordinator.SetStage(chi.URLParam(r, "id"), stage); err != nil {
    respondDomainError(w, err)
    return
  }

  w.WriteHeader(http.StatusNoContent)
}

func (s *Server) HandleSetNotes(w http.ResponseWriter, r *http.Request) {
  var req notesRequest

  if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
    respondError(w, http.StatusBadRequest, "invalid request body")
    return
  }

  if err := s.coordinator.SetNotes(chi.URLParam(r, "id"), req.Notes); err != nil {
    respondDomainError(w, err)
    return
  }

  w.WriteHeader(http.StatusNoContent)
}

// HandlePushFrame accepts advertisements relayed by an external BLE gateway.
// They go through the same path as locally scanned ones.
func (s *Server) HandlePushFrame(w http.ResponseWriter, r *http.Request) {
  var req frameRequest

  if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
    respondError(w, http.StatusBadRequest, "invalid request body")
    return
  }

  payload, err := hex.DecodeString(req.Payload)

  if err != nil {
    respondError(w, http.StatusBadRequest, "payload must be hex encoded")
    return
  }

  reading, err := s.coordinator.HandleFrame(model.Frame{
    VendorID: req.VendorID,
    Payload: payload,
    RSSI: req.RSSI,
    Addr: req.Addr,
    ReceivedAt: s.now(),
  })

  switch {
  case err == nil:
    respondJSON(w, http.StatusOK, frameResponse{Reading: reading, Applied: true})
  case errors.Is(err, collector.ErrNoCurrentSession):
    respondJSON(w, http.StatusAccepted, frameResponse{Reading: reading})
  default:
    respondDomainError(w, err)
  }
}
