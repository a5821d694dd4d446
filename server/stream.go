package server

import (
	"context"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/metrics"
)

const writeWait = 10 * time.Second

// Stream message types.
const (
	MessageEvent     = "event"
	MessageItinerary = "itinerary"
	MessageError     = "error"
)

// StreamMessage is sent by the server on /plan/stream.
type StreamMessage struct {
	Type       string      `json:"type"`
	Event      *core.Event `json:"event,omitempty"`
	Itinerary  string      `json:"itinerary,omitempty"`
	ArtifactID string      `json:"artifact_id,omitempty"`
	Error      string      `json:"error,omitempty"`
	Status     int         `json:"status,omitempty"`
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || len(s.opts.AllowedOrigins) == 0 {
		return true
	}

	return slices.Contains(s.opts.AllowedOrigins, "*") || slices.Contains(s.opts.AllowedOrigins, origin)
}

// handleStream reads one TripRequest, forwards every intermediate event and
// finishes with the itinerary or an error before closing.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.originAllowed,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.opts.Logger.Warn("http.stream.upgrade_failed", "error", err.Error())
		return
	}
	defer conn.Close()

	start := time.Now()

	conn.SetReadLimit(maxBodyBytes)

	_, body, err := conn.ReadMessage()
	if err != nil {
		return
	}

	send := func(msg StreamMessage) error {
		if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
			return err
		}

		return conn.WriteJSON(msg)
	}

	closeWith := func(code int, text string) {
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(writeWait))
	}

	req, err := s.schema.decode(body)
	if err != nil {
		s.observePlan(metrics.OutcomeInvalid, start)
		_ = send(StreamMessage{Type: MessageError, Error: err.Error(), Status: http.StatusUnprocessableEntity})
		closeWith(websocket.CloseNormalClosure, "invalid request")

		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// A client that goes away cancels the run.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	var writeErr error

	resp, err := s.gateway.Stream(ctx, req, func(ev core.Event) {
		if s.opts.Metrics != nil {
			s.opts.Metrics.ObserveEvent(ev)
		}

		if writeErr != nil {
			return
		}

		if writeErr = send(StreamMessage{Type: MessageEvent, Event: &ev}); writeErr != nil {
			cancel()
		}
	})
	if err != nil {
		status, msg, outcome := planStatus(err)

		switch {
		case ctx.Err() != nil:
			s.opts.Logger.Info("http.stream.cancelled", "error", err.Error())
		case status == http.StatusInternalServerError:
			s.opts.Logger.Error("http.stream.failed", "error", err.Error())
		}

		s.observePlan(outcome, start)
		_ = send(StreamMessage{Type: MessageError, Error: msg, Status: status})
		closeWith(websocket.CloseInternalServerErr, msg)

		return
	}

	outcome := metrics.OutcomeSuccess
	if resp.Escalated {
		outcome = metrics.OutcomeEscalated
	}

	s.observePlan(outcome, start)

	_ = send(StreamMessage{Type: MessageItinerary, Itinerary: resp.Itinerary, ArtifactID: resp.ArtifactID})
	closeWith(websocket.CloseNormalClosure, "")
}
