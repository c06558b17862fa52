package routes

import (
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"club-ratings/handlers"
	"club-ratings/middleware"
)

// SetupRoutes mounts the API. Reads are public; everything that appends to
// or rewrites the match log requires an authenticated operator token.
func SetupRoutes(
	router *chi.Mux,
	playerHandler *handlers.PlayerHandler,
	sessionHandler *handlers.SessionHandler,
	matchHandler *handlers.MatchHandler,
	ratingHandler *handlers.RatingHandler,
	webSocketHandler *handlers.WebSocketHandler,
	jwtSecret string,
) {
	router.Use(chiMiddleware.Logger)
	router.Use(chiMiddleware.Recoverer)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	authenticate := middleware.Authenticate(jwtSecret)

	router.Route("/players", func(r chi.Router) {
		r.Get("/", playerHandler.ListHandler)
		r.Get("/{playerID}", playerHandler.GetByIDHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", playerHandler.CreateHandler)
		})
	})

	router.Route("/sessions", func(r chi.Router) {
		r.Get("/", sessionHandler.ListHandler)
		r.Get("/{sessionID}", sessionHandler.GetByIDHandler)
		r.Get("/{sessionID}/matches", matchHandler.ListBySessionHandler)
		r.Get("/{sessionID}/summary", sessionHandler.SummaryHandler)
		r.Get("/{sessionID}/highlights", sessionHandler.HighlightsHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/", sessionHandler.CreateHandler)
			r.Post("/{sessionID}/complete", sessionHandler.CompleteHandler)
			r.Delete("/{sessionID}", sessionHandler.DeleteHandler)
			r.Post("/{sessionID}/matches", matchHandler.CreateHandler)
			r.Post("/{sessionID}/rounds", matchHandler.GenerateRoundRobinHandler)
			r.Put("/{sessionID}/matches/{matchID}/score", matchHandler.CorrectScoreHandler)
		})
	})

	router.Route("/matches", func(r chi.Router) {
		r.Get("/{matchID}/history", matchHandler.HistoryHandler)

		r.Group(func(r chi.Router) {
			r.Use(authenticate)
			r.Post("/{matchID}/result", matchHandler.RecordResultHandler)
		})
	})

	router.Route("/ratings", func(r chi.Router) {
		r.Get("/", ratingHandler.LeaderboardHandler)
		r.Get("/{kind}/{participantID}", ratingHandler.GetParticipantHandler)
	})

	router.Get("/ws/sessions/{sessionID}", webSocketHandler.ServeWs)
}
