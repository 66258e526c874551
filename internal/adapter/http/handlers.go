package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/storm-alert-dispatch/internal/describe"
	"github.com/couchcryptid/storm-alert-dispatch/internal/domain"
	"github.com/google/uuid"
)

type handlers struct {
	snapshots   SnapshotSource
	describer   Describer
	history     HistoryStore
	subscribers SubscriberStore
	logger      *slog.Logger
}

type indexedAlert struct {
	Index int          `json:"index,omitempty"`
	Alert domain.Alert `json:"alert"`
}

type alertListResponse struct {
	TakenAt time.Time      `json:"taken_at"`
	Count   int            `json:"count"`
	Alerts  []indexedAlert `json:"alerts"`
}

// listAlerts returns the live alerts of the last committed snapshot in
// priority order. The first alerts carry their spoken-menu index; alerts
// past the last index slot are listed without one.
func (h *handlers) listAlerts(w http.ResponseWriter, _ *http.Request) {
	snap := h.snapshots.Current()
	live := snap.Live()

	alerts := make([]indexedAlert, 0, len(live))
	for i, a := range live {
		entry := indexedAlert{Alert: a}
		if i < domain.MaxIndex {
			entry.Index = i + 1
		}
		alerts = append(alerts, entry)
	}

	writeJSON(w, http.StatusOK, alertListResponse{
		TakenAt: snap.TakenAt(),
		Count:   len(alerts),
		Alerts:  alerts,
	})
}

type alertResponse struct {
	Alert domain.Alert          `json:"alert"`
	State domain.LifecycleState `json:"state"`
}

func (h *handlers) getAlert(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	alert, state, err := h.snapshots.Current().ByIdentity(identity)
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such alert")
		return
	}
	writeJSON(w, http.StatusOK, alertResponse{Alert: alert, State: state})
}

func (h *handlers) describeAlert(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	desc, err := h.describer.Describe(identity)
	if err != nil {
		h.writeDescribeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *handlers) speakAlert(w http.ResponseWriter, r *http.Request) {
	identity := r.PathValue("identity")

	ref, err := h.describer.Speak(r.Context(), identity)
	if err != nil {
		h.writeDescribeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ref)
}

func (h *handlers) getByIndex(w http.ResponseWriter, r *http.Request) {
	n, err := strconv.Atoi(r.PathValue("n"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "index must be an integer")
		return
	}

	desc, err := h.describer.DescribeIndex(n)
	if err != nil {
		h.writeDescribeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, desc)
}

func (h *handlers) writeDescribeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, "no alert at that index")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "no such alert")
	case errors.Is(err, domain.ErrNotCurrentlyActive):
		writeError(w, http.StatusGone, "alert is no longer active")
	case errors.Is(err, describe.ErrSynthesisFailed):
		writeError(w, http.StatusBadGateway, "speech synthesis failed")
	default:
		h.logger.Error("describe failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *handlers) searchAlerts(w http.ResponseWriter, r *http.Request) {
	title := r.URL.Query().Get("title")
	if title == "" {
		writeError(w, http.StatusBadRequest, "title query parameter is required")
		return
	}

	matches := h.snapshots.Current().MatchTitle(title)
	writeJSON(w, http.StatusOK, map[string]any{
		"count":  len(matches),
		"alerts": matches,
	})
}

// getHistory returns transitions in [from, to]. Both bounds are optional
// RFC 3339 timestamps; the window defaults to the last 24 hours.
func (h *handlers) getHistory(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	from, to := now.Add(-24*time.Hour), now

	if v := r.URL.Query().Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "from must be RFC 3339")
			return
		}
		from = t
	}
	if v := r.URL.Query().Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "to must be RFC 3339")
			return
		}
		to = t
	}
	if to.Before(from) {
		writeError(w, http.StatusBadRequest, "to must not precede from")
		return
	}

	transitions, err := h.history.History(r.Context(), from, to)
	if err != nil {
		h.logger.Error("history query failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"from":        from,
		"to":          to,
		"count":       len(transitions),
		"transitions": transitions,
	})
}

func (h *handlers) listSubscribers(w http.ResponseWriter, r *http.Request) {
	subs, err := h.subscribers.List(r.Context())
	if err != nil {
		h.logger.Error("listing subscribers failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":       len(subs),
		"subscribers": subs,
	})
}

func (h *handlers) createSubscriber(w http.ResponseWriter, r *http.Request) {
	var sub domain.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscriber body")
		return
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if msg := validateSubscriber(sub); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if err := h.subscribers.Put(r.Context(), sub); err != nil {
		h.logger.Error("creating subscriber failed", "id", sub.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (h *handlers) getSubscriber(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscribers.Get(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such subscriber")
		return
	}
	if err != nil {
		h.logger.Error("getting subscriber failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handlers) updateSubscriber(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var sub domain.Subscriber
	if err := json.NewDecoder(r.Body).Decode(&sub); err != nil {
		writeError(w, http.StatusBadRequest, "invalid subscriber body")
		return
	}
	// The path is authoritative for the identifier.
	sub.ID = id
	if msg := validateSubscriber(sub); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	if _, err := h.subscribers.Get(r.Context(), id); errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such subscriber")
		return
	} else if err != nil {
		h.logger.Error("getting subscriber failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := h.subscribers.Put(r.Context(), sub); err != nil {
		h.logger.Error("updating subscriber failed", "id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *handlers) deleteSubscriber(w http.ResponseWriter, r *http.Request) {
	err := h.subscribers.Delete(r.Context(), r.PathValue("id"))
	if errors.Is(err, domain.ErrNotFound) {
		writeError(w, http.StatusNotFound, "no such subscriber")
		return
	}
	if err != nil {
		h.logger.Error("deleting subscriber failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// validateSubscriber returns an empty string when the subscriber is
// acceptable, or a client-facing message describing the first problem.
func validateSubscriber(sub domain.Subscriber) string {
	channels := sub.EnabledChannels()
	if len(channels) == 0 {
		return "subscriber has no usable channel: set an email address, webhook URL, or push token and enable the matching channel"
	}
	for _, ch := range sub.Preferences.Channels {
		switch ch {
		case domain.ChannelEmail, domain.ChannelWebhook, domain.ChannelPush:
		default:
			return "unknown channel " + strconv.Quote(string(ch))
		}
	}
	if len(sub.Preferences.Zones) == 0 {
		return "subscriber must select at least one zone"
	}
	return ""
}
