package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/match-bet-platform/internal/discovery"
	"github.com/radieske/match-bet-platform/internal/discovery-service/dto"
	"github.com/radieske/match-bet-platform/internal/shared/httpjson"
	"github.com/radieske/match-bet-platform/pkg/models"
)

// Discovery é o que o serviço de descoberta expõe para o HTTP
type Discovery interface {
	GetDiscoveryFeed(ctx context.Context, userID string, opts discovery.FeedOptions) ([]discovery.RankedCandidate, error)
	HandleSwipe(ctx context.Context, swiperID, targetID string, action discovery.Action) (discovery.SwipeResult, error)
	GetActiveMatches(ctx context.Context, userID string) ([]discovery.ActiveMatch, error)
	SaveProfile(ctx context.Context, u models.UserProfile) (models.UserProfile, error)
	SendMessage(ctx context.Context, matchID, senderID, text string) (models.Message, error)
	ScheduleDate(ctx context.Context, matchID, userID string, at *time.Time) (models.Match, error)
}

type Users interface {
	GetUser(ctx context.Context, id string) (models.UserProfile, error)
}

// erros de validação do domínio que viram 400
var invalid = []error{
	discovery.ErrSelfSwipe,
	discovery.ErrInvalidAction,
	discovery.ErrInvalidProfile,
	discovery.ErrInvalidMessage,
}

type Server struct {
	log   *zap.Logger
	svc   Discovery
	users Users
}

func NewServer(log *zap.Logger, svc Discovery, users Users) *Server {
	return &Server{log: log, svc: svc, users: users}
}

// Router monta as rotas; mw entra antes do roteamento (métricas, etc.)
func (s *Server) Router(mw ...func(http.Handler) http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.Recoverer)
	r.Use(mw...)

	r.Route("/v1/users/{id}", func(r chi.Router) {
		r.Get("/", s.getProfile)
		r.Put("/", s.saveProfile)
		r.Get("/feed", s.feed)       // ?limit=&maxDistance=&ageMin=&ageMax=&skip=a,b
		r.Get("/matches", s.matches) // matches mútuos ativos
	})
	r.Post("/v1/swipes", s.swipe)
	r.Post("/v1/matches/{id}/messages", s.sendMessage)
	r.Post("/v1/matches/{id}/schedule-date", s.scheduleDate)
	return r
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if httpjson.Status(err, invalid...) >= http.StatusInternalServerError {
		s.log.Error(op, zap.String("requestId", middleware.GetReqID(r.Context())), zap.Error(err))
	}
	httpjson.Error(w, err, invalid...)
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	u, err := s.users.GetUser(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "get profile", err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (s *Server) saveProfile(w http.ResponseWriter, r *http.Request) {
	var req dto.ProfileRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	u, err := s.svc.SaveProfile(r.Context(), req.ToProfile(chi.URLParam(r, "id")))
	if err != nil {
		s.fail(w, r, "save profile", err)
		return
	}
	httpjson.Write(w, http.StatusOK, u)
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	opts, err := feedOptions(r)
	if err != nil {
		httpjson.BadRequest(w, err.Error())
		return
	}
	feed, err := s.svc.GetDiscoveryFeed(r.Context(), chi.URLParam(r, "id"), opts)
	if err != nil {
		s.fail(w, r, "discovery feed", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.FeedResponse{Candidates: feed, Count: len(feed)})
}

func feedOptions(r *http.Request) (discovery.FeedOptions, error) {
	q := r.URL.Query()
	var opts discovery.FeedOptions
	var err error

	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil || opts.Limit < 0 {
			return opts, errParam("limit")
		}
	}
	if v := q.Get("maxDistance"); v != "" {
		if opts.MaxDistance, err = strconv.ParseFloat(v, 64); err != nil || opts.MaxDistance < 0 {
			return opts, errParam("maxDistance")
		}
	}
	minV, maxV := q.Get("ageMin"), q.Get("ageMax")
	if minV != "" || maxV != "" {
		rng := models.AgeRange{Min: 18, Max: 120}
		if minV != "" {
			if rng.Min, err = strconv.Atoi(minV); err != nil {
				return opts, errParam("ageMin")
			}
		}
		if maxV != "" {
			if rng.Max, err = strconv.Atoi(maxV); err != nil {
				return opts, errParam("ageMax")
			}
		}
		if rng.Min > rng.Max {
			return opts, errParam("ageMin")
		}
		opts.AgeRange = &rng
	}
	if v := q.Get("skip"); v != "" {
		for _, id := range strings.Split(v, ",") {
			if id = strings.TrimSpace(id); id != "" {
				opts.SkipUserIDs = append(opts.SkipUserIDs, id)
			}
		}
	}
	return opts, nil
}

type errParam string

func (e errParam) Error() string { return "invalid query param " + string(e) }

func (s *Server) matches(w http.ResponseWriter, r *http.Request) {
	ms, err := s.svc.GetActiveMatches(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, "active matches", err)
		return
	}
	httpjson.Write(w, http.StatusOK, dto.MatchesResponse{Matches: ms, Count: len(ms)})
}

func (s *Server) swipe(w http.ResponseWriter, r *http.Request) {
	var req dto.SwipeRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.SwiperID == "" || req.TargetID == "" {
		httpjson.BadRequest(w, "swiperId and targetId required")
		return
	}
	res, err := s.svc.HandleSwipe(r.Context(), req.SwiperID, req.TargetID, discovery.Action(req.Action))
	if err != nil {
		s.fail(w, r, "swipe", err)
		return
	}
	status := http.StatusOK
	if res.Matched {
		status = http.StatusCreated
	}
	httpjson.Write(w, status, res)
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req dto.MessageRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.SenderID == "" {
		httpjson.BadRequest(w, "senderId required")
		return
	}
	msg, err := s.svc.SendMessage(r.Context(), chi.URLParam(r, "id"), req.SenderID, req.Text)
	if err != nil {
		s.fail(w, r, "send message", err)
		return
	}
	httpjson.Write(w, http.StatusCreated, msg)
}

func (s *Server) scheduleDate(w http.ResponseWriter, r *http.Request) {
	var req dto.ScheduleDateRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.BadRequest(w, "bad json")
		return
	}
	if req.UserID == "" {
		httpjson.BadRequest(w, "userId required")
		return
	}
	m, err := s.svc.ScheduleDate(r.Context(), chi.URLParam(r, "id"), req.UserID, req.Date)
	if err != nil {
		s.fail(w, r, "schedule date", err)
		return
	}
	httpjson.Write(w, http.StatusOK, m)
}
