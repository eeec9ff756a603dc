package dashboard

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/johnpc/jpc-homie/internal/queuesync"
	"github.com/johnpc/jpc-homie/pkg/homie"
)

// controlServices maps API actions to media_player services.
var controlServices = map[string]string{
	"play":       "media_play",
	"pause":      "media_pause",
	"play_pause": "media_play_pause",
	"stop":       "media_stop",
	"next":       "media_next_track",
	"previous":   "media_previous_track",
}

func (m *Module) handleGetQueue(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	h, err := m.queue.ResolveHandle(ctx, m.config.EntityID)
	if errors.Is(err, queuesync.ErrNoActiveQueue) {
		// An idle player is not an error; the UI shows an empty queue.
		m.writeJSON(w, http.StatusOK, homie.QueueSnapshot{Queue: []homie.QueueItem{}, Limited: true})
		return
	}
	if err != nil {
		m.writeError(w, statusFor(err), "failed to get queue", err)
		return
	}

	snap, err := m.queue.FetchSnapshot(ctx, h)
	if err != nil {
		m.writeError(w, statusFor(err), "failed to get queue", err)
		return
	}
	m.writeJSON(w, http.StatusOK, homie.QueueSnapshot{
		Queue:    snap.Items,
		Position: snap.CurrentIndex,
		Total:    snap.Total,
		Limited:  snap.Mode == queuesync.ModeLimited,
	})
}

func (m *Module) handleDeleteQueueItem(w http.ResponseWriter, r *http.Request) {
	var req homie.RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.QueueItemID == "" {
		m.writeError(w, http.StatusBadRequest, "queue_item_id required", err)
		return
	}

	if err := m.planner.DeleteItem(r.Context(), m.config.EntityID, req.QueueItemID); err != nil {
		m.writeError(w, statusFor(err), "failed to remove from queue", err)
		return
	}
	m.changed()
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

func (m *Module) handleReorder(w http.ResponseWriter, r *http.Request) {
	var req homie.ReorderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid reorder request", err)
		return
	}

	if err := m.planner.Reorder(r.Context(), m.config.EntityID, req.FromIndex, req.ToIndex); err != nil {
		m.writeError(w, statusFor(err), "failed to reorder queue", err)
		return
	}
	m.changed()
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

func (m *Module) handleEnqueue(w http.ResponseWriter, r *http.Request) {
	var req homie.EnqueueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Track == "" {
		m.writeError(w, http.StatusBadRequest, "track required", err)
		return
	}
	ctx := r.Context()

	contentID := req.Track
	if m.search != nil {
		if track, ok, err := m.search.SearchTrack(ctx, req.Track, req.Artist); err != nil {
			// Search is an enrichment; enqueue the raw text when it fails.
			m.log.Warn("track search failed", zap.Error(err))
		} else if ok {
			contentID = track.ContentID()
		}
	}

	err := m.players.CallService(ctx, "media_player", "play_media", map[string]any{
		"entity_id":          m.config.EntityID,
		"media_content_id":   contentID,
		"media_content_type": "track",
		"enqueue":            "add",
	})
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to add to queue", err)
		return
	}
	m.changed()
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

func (m *Module) handleStatus(w http.ResponseWriter, r *http.Request) {
	status, err := m.players.Status(r.Context(), m.config.EntityID)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to get status", err)
		return
	}
	m.writeJSON(w, http.StatusOK, status)
}

func (m *Module) handleControl(w http.ResponseWriter, r *http.Request) {
	var req homie.ControlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid control request", err)
		return
	}
	service, ok := controlServices[req.Action]
	if !ok {
		m.writeError(w, http.StatusBadRequest, "unsupported action", nil)
		return
	}

	err := m.players.CallService(r.Context(), "media_player", service, map[string]any{
		"entity_id": m.config.EntityID,
	})
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to control media", err)
		return
	}
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

func (m *Module) handleGetVolume(w http.ResponseWriter, r *http.Request) {
	if level, muted, fresh := m.volumes.Get(m.config.EntityID); fresh {
		m.writeJSON(w, http.StatusOK, homie.VolumeStatus{Level: level, Muted: muted, Source: "cache"})
		return
	}

	level, muted, err := m.players.Volume(r.Context(), m.config.EntityID)
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to get volume", err)
		return
	}
	m.volumes.Put(m.config.EntityID, level, muted)
	m.writeJSON(w, http.StatusOK, homie.VolumeStatus{Level: level, Muted: muted, Source: "player"})
}

func (m *Module) handleSetVolume(w http.ResponseWriter, r *http.Request) {
	var req homie.VolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid volume request", err)
		return
	}
	level := req.Level
	if level < 0 {
		level = 0
	}
	if level > 1 {
		level = 1
	}

	err := m.players.CallService(r.Context(), "media_player", "volume_set", map[string]any{
		"entity_id":    m.config.EntityID,
		"volume_level": level,
	})
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to set volume", err)
		return
	}
	m.volumes.Put(m.config.EntityID, level, false)
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

func (m *Module) handleSeek(w http.ResponseWriter, r *http.Request) {
	var req homie.SeekRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		m.writeError(w, http.StatusBadRequest, "invalid seek request", err)
		return
	}

	err := m.players.CallService(r.Context(), "media_player", "media_seek", map[string]any{
		"entity_id":     m.config.EntityID,
		"seek_position": req.Position,
	})
	if err != nil {
		m.writeError(w, http.StatusInternalServerError, "failed to seek", err)
		return
	}
	m.writeJSON(w, http.StatusOK, homie.StatusResponse{Success: true})
}

// statusFor maps engine errors to HTTP statuses: unresolvable queues and
// indices are 404, session timeouts are 408, unreachable backends are 502,
// anything else is 500.
func statusFor(err error) int {
	var idxErr *queuesync.IndexError
	var timeoutErr *queuesync.TimeoutError
	var netErr *queuesync.NetworkError
	switch {
	case errors.Is(err, queuesync.ErrNoActiveQueue):
		return http.StatusNotFound
	case errors.As(err, &idxErr):
		return http.StatusNotFound
	case errors.As(err, &timeoutErr):
		return http.StatusRequestTimeout
	case errors.As(err, &netErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (m *Module) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		m.log.Error("encode response", zap.Error(err))
	}
}

func (m *Module) writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := homie.ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
		m.log.Warn(msg, zap.Int("status", status), zap.Error(err))
	} else {
		m.log.Warn(msg, zap.Int("status", status))
	}
	m.writeJSON(w, status, resp)
}
