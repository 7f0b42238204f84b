package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/sirupsen/logrus"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// HostVerifier checks host bearer tokens against the identity collaborator.
type HostVerifier interface {
	VerifyHost(token string) (string, error)
}

// API exposes the session engine operations over HTTP. Host routes live
// under /admin behind bearer auth; player routes under /play are keyed by
// the opaque player ID issued at join time.
type API struct {
	service *app.SessionService
	hosts   HostVerifier
	ws      *WSHandler
	log     *logrus.Logger
}

func NewAPI(service *app.SessionService, hosts HostVerifier, log *logrus.Logger) *API {
	if log == nil {
		log = logrus.New()
	}
	return &API{
		service: service,
		hosts:   hosts,
		ws:      NewWSHandler(service, log),
		log:     log,
	}
}

func (a *API) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Route("/admin", func(r chi.Router) {
		r.Use(a.requireHost)
		r.Post("/game/{gameID}/mutate", a.mutateGame)
		r.Get("/session/{sessionID}/status", a.sessionStatus)
		r.Get("/session/{sessionID}/results", a.sessionResults)
	})

	r.Route("/play", func(r chi.Router) {
		r.With(httprate.LimitByIP(30, time.Minute)).Post("/join/{sessionID}", a.join)
		r.Get("/{playerID}/status", a.playerStatus)
		r.Get("/{playerID}/question", a.playerQuestion)
		r.Put("/{playerID}/answer", a.submitAnswer)
		r.Get("/{playerID}/answer", a.correctAnswer)
		r.Get("/{playerID}/results", a.playerResults)
		r.Get("/{playerID}/ws", a.ws.ServeWS)
	})

	return r
}

type ctxKey int

const hostIDKey ctxKey = iota

// requireHost authenticates the Authorization bearer token and stores the
// host ID in the request context.
func (a *API) requireHost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token := strings.TrimPrefix(header, "Bearer ")
		if token == "" || token == header {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing bearer token"})
			return
		}
		hostID, err := a.hosts.VerifyHost(token)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), hostIDKey, hostID)))
	})
}

func hostID(ctx context.Context) string {
	id, _ := ctx.Value(hostIDKey).(string)
	return id
}

type mutateRequest struct {
	MutationType string `json:"mutationType"`
}

type errorBody struct {
	Error string `json:"error"`
}

// mutateGame applies a host mutation (START/ADVANCE/END) addressed by game.
// ADVANCE and END resolve the game's live session first, matching how host
// dashboards drive a game rather than a session ID.
func (a *API) mutateGame(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	var req mutateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid mutation payload"})
		return
	}

	switch strings.ToUpper(req.MutationType) {
	case "START":
		session, created, err := a.service.Start(r.Context(), hostID(r.Context()), gameID)
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"sessionId": session.ID(),
			"created":   created,
			"status":    session.Status(),
		})
	case "ADVANCE", "END":
		session, err := a.service.ActiveSession(gameID)
		if err != nil {
			a.writeError(w, err)
			return
		}
		var st domain.Status
		if strings.ToUpper(req.MutationType) == "ADVANCE" {
			st, err = a.service.Advance(r.Context(), hostID(r.Context()), session.ID())
		} else {
			st, err = a.service.End(r.Context(), hostID(r.Context()), session.ID())
		}
		if err != nil {
			a.writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": st})
	default:
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "unknown mutation type"})
	}
}

func (a *API) sessionStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.service.Status(chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": st})
}

func (a *API) sessionResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.Results(chi.URLParam(r, "sessionID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type joinRequest struct {
	Name string `json:"name"`
}

func (a *API) join(w http.ResponseWriter, r *http.Request) {
	var req joinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "display name required"})
		return
	}
	playerID, st, err := a.service.Join(chi.URLParam(r, "sessionID"), strings.TrimSpace(req.Name))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"playerId": playerID, "status": st})
}

func (a *API) playerStatus(w http.ResponseWriter, r *http.Request) {
	st, err := a.service.StatusByPlayer(chi.URLParam(r, "playerID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) playerQuestion(w http.ResponseWriter, r *http.Request) {
	q, err := a.service.Question(chi.URLParam(r, "playerID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"question": q, "duration": q.DurationSec})
}

type answerRequest struct {
	Answers []int `json:"answers"`
}

func (a *API) submitAnswer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid answer payload"})
		return
	}
	if err := a.service.SubmitAnswer(chi.URLParam(r, "playerID"), req.Answers); err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"accepted": true})
}

func (a *API) correctAnswer(w http.ResponseWriter, r *http.Request) {
	answers, err := a.service.CorrectAnswer(chi.URLParam(r, "playerID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"answer": answers})
}

func (a *API) playerResults(w http.ResponseWriter, r *http.Request) {
	results, err := a.service.ResultsByPlayer(chi.URLParam(r, "playerID"))
	if err != nil {
		a.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrGameNotFound),
		errors.Is(err, domain.ErrSessionNotFound),
		errors.Is(err, domain.ErrPlayerNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrNotOwner):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrEmptyGame),
		errors.Is(err, domain.ErrInvalidQuestion),
		errors.Is(err, domain.ErrInvalidAnswer),
		errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrWindowClosed),
		errors.Is(err, domain.ErrSessionClosed),
		errors.Is(err, domain.ErrQuestionNotStarted),
		errors.Is(err, domain.ErrAnswerNotReady),
		errors.Is(err, domain.ErrResultsNotReady):
		status = http.StatusBadRequest
	default:
		a.log.WithError(err).Error("request failed")
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
