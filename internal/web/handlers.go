package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/MrWong99/fabula/internal/nav"
	"github.com/MrWong99/fabula/pkg/story"
)

// scenePayload is the rendered form of a scene: markup resolved to HTML,
// choices reduced to their labels, ending metadata included when relevant.
type scenePayload struct {
	HTML        string          `json:"html"`
	Image       string          `json:"image,omitempty"`
	Choices     []choicePayload `json:"choices"`
	IsEnding    bool            `json:"isEnding"`
	EndingType  string          `json:"endingType,omitempty"`
	EndingTitle string          `json:"endingTitle,omitempty"`
}

type choicePayload struct {
	Text string `json:"text"`
}

// sessionPayload pairs a session snapshot with its rendered current scene.
type sessionPayload struct {
	State nav.State    `json:"state"`
	Scene scenePayload `json:"scene"`
}

func renderScene(sc story.Scene) scenePayload {
	p := scenePayload{
		HTML:     story.FormatHTML(sc.Text),
		Image:    sc.Image,
		Choices:  make([]choicePayload, 0, len(sc.Choices)),
		IsEnding: sc.IsEnding,
	}
	for _, ch := range sc.Choices {
		p.Choices = append(p.Choices, choicePayload{Text: ch.Text})
	}
	if sc.IsEnding {
		p.EndingType = string(sc.EndingType)
		p.EndingTitle = sc.EndingHeading()
	}
	return p
}

func (s *Server) sessionPayload() (sessionPayload, error) {
	state, err := s.manager.Snapshot()
	if err != nil {
		return sessionPayload{}, err
	}
	sc, err := s.manager.Scene()
	if err != nil {
		return sessionPayload{}, err
	}
	return sessionPayload{State: state, Scene: renderScene(sc)}, nil
}

// ── JSON plumbing ────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to encode response", "err", err)
	}
}

type errorPayload struct {
	Error      string `json:"error"`
	Suggestion string `json:"suggestion,omitempty"`
}

// writeError maps the error taxonomy onto HTTP statuses: unknown stories
// and scenes are 404, unusable story documents are 422, unreachable
// backends are 502, session-order violations are 409, and everything else
// is treated as a bad request.
func writeError(w http.ResponseWriter, err error) {
	payload := errorPayload{Error: err.Error()}
	status := http.StatusBadRequest

	var (
		notFound  *story.NotFoundError
		navErr    *story.NavigationError
		parseErr  *story.ParseError
		valErr    *story.ValidationError
		transport *story.TransportError
	)
	switch {
	case errors.As(err, &notFound):
		status = http.StatusNotFound
		payload.Suggestion = notFound.Suggestion
	case errors.As(err, &navErr):
		status = http.StatusNotFound
	case errors.As(err, &parseErr), errors.As(err, &valErr):
		status = http.StatusUnprocessableEntity
	case errors.As(err, &transport):
		status = http.StatusBadGateway
	case errors.Is(err, nav.ErrNoSession):
		status = http.StatusConflict
	}
	writeJSON(w, status, payload)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorPayload{Error: "invalid request body: " + err.Error()})
		return false
	}
	return true
}

// ── Handlers ─────────────────────────────────────────────────────────────────

func (s *Server) handleListStories(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.store.ListMetadata(r.Context()))
}

func (s *Server) handleGetStory(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LoadByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Metadata())
}

func (s *Server) handleAnalyzeStory(w http.ResponseWriter, r *http.Request) {
	st, err := s.store.LoadByID(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st.Analyze())
}

func (s *Server) handleStartStory(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.StartStory(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(state)

	payload, err := s.sessionPayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	payload, err := s.sessionPayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleAbandonSession(w http.ResponseWriter, r *http.Request) {
	s.manager.Abandon(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleChoose(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Choice int `json:"choice"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := s.manager.Choose(r.Context(), req.Choice)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(state)

	payload, err := s.sessionPayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	state, err := s.manager.Restart(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(state)

	payload, err := s.sessionPayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleGoTo(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Scene string `json:"scene"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	state, err := s.manager.GoTo(r.Context(), req.Scene)
	if err != nil {
		writeError(w, err)
		return
	}
	s.hub.publish(state)

	payload, err := s.sessionPayload()
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// handleWatch streams session snapshots over a websocket. The current state
// is sent immediately when a session exists; afterwards every transition
// produces one message.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "err", err)
		return
	}
	defer conn.Close(websocket.StatusInternalError, "stream ended")

	updates, unsubscribe := s.hub.subscribe()
	defer unsubscribe()

	ctx := r.Context()
	if state, err := s.manager.Snapshot(); err == nil {
		if err := wsjson.Write(ctx, conn, state); err != nil {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case state := <-updates:
			if err := wsjson.Write(ctx, conn, state); err != nil {
				return
			}
		}
	}
}

func (s *Server) handleClearCache(w http.ResponseWriter, r *http.Request) {
	s.store.ClearCache()
	slog.Info("story cache cleared via API")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.store.Stats()
	writeJSON(w, http.StatusOK, map[string]int{
		"registered": stats.Registered,
		"cached":     stats.Cached,
		"inFlight":   stats.InFlight,
		"watchers":   s.hub.subscribers(),
	})
}
