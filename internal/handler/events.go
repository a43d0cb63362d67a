package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	apperrors "github.com/loqui/chat-server-go/internal/errors"
	"github.com/loqui/chat-server-go/internal/middleware"
	"github.com/loqui/chat-server-go/internal/service"
	"github.com/loqui/chat-server-go/internal/sse"
)

// EventsHandler streams live channel events over SSE. A connection is only
// granted to channel members.
type EventsHandler struct {
	broker   *sse.Broker
	channels *service.ChannelService
}

func NewEventsHandler(broker *sse.Broker, channels *service.ChannelService) *EventsHandler {
	return &EventsHandler{broker: broker, channels: channels}
}

// GET /channels/{channelID}/events
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	id, err := channelID(r)
	if err != nil {
		writeError(w, err)
		return
	}

	if _, err := h.channels.Membership(r.Context(), id, user.ID); err != nil {
		writeError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, apperrors.Internal("Streaming not supported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	listener := h.broker.Subscribe(id.String())
	defer h.broker.Unsubscribe(listener)

	log.Info().
		Str("channelId", id.String()).
		Str("userId", user.ID.String()).
		Msg("sse connection established")

	if err := h.sendEvent(w, flusher, "connected", map[string]any{
		"channelId": id.String(),
	}); err != nil {
		return
	}

	ctx := r.Context()

	heartbeat := time.NewTicker(sse.HeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().
				Str("channelId", id.String()).
				Msg("sse connection closed by client")
			return

		case <-listener.Done:
			log.Info().
				Str("channelId", id.String()).
				Msg("sse connection closed by broker")
			return

		case event := <-listener.Events:
			if err := h.sendRawEvent(w, flusher, event); err != nil {
				log.Error().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().
					Str("channelId", id.String()).
					Msg("heartbeat failed, closing connection")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.sendRawEvent(w, flusher, sse.Event{Type: eventType, Data: jsonData})
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, event sse.Event) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event.Type); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", event.Data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
