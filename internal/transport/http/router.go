package http

import (
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/parkwise/reservation-api/internal/logging"
)

// AuthService signs users in and checks their tokens.
type AuthService interface {
	Authenticator
	LoginService
}

// RouterDeps are the services behind the HTTP surface.
type RouterDeps struct {
	Spots        SpotService
	Reservations ReservationService
	Sweeper      RetentionSweeper
	Auth         AuthService
	// Store is pinged by /health when set.
	Store  Pinger
	Logger *slog.Logger
}

// NewRouter registers every route. Mutations of the catalogue, cancellations and manual sweeps
// require an administrator token.
func NewRouter(deps RouterDeps) *httprouter.Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	router := httprouter.New()
	router.NotFound = NotFoundHandler()
	router.MethodNotAllowed = MethodNotAllowedHandler()
	router.HandleOPTIONS = false
	router.PanicHandler = func(w http.ResponseWriter, r *http.Request, v any) {
		logging.FromContext(r.Context(), logger).ErrorContext(r.Context(), "handler panic",
			"method", r.Method,
			"path", r.URL.Path,
			"panic", v,
		)
		writeError(w, http.StatusInternalServerError, codeInternalError, "internal error")
	}

	admin := func(h httprouter.Handle) httprouter.Handle {
		return RequireAdmin(deps.Auth, h)
	}

	router.Handler(http.MethodGet, "/health", HealthHandler(deps.Store))
	router.POST("/auth/login", HandleLogin(deps.Auth))

	router.GET("/spots", HandleListSpots(deps.Spots))
	router.POST("/spots", admin(HandleCreateSpot(deps.Spots)))
	router.PATCH("/spots/:id", admin(HandleUpdateSpot(deps.Spots)))
	router.DELETE("/spots/:id", admin(HandleDeleteSpot(deps.Spots)))

	router.GET("/reservations", HandleListReservations(deps.Reservations, deps.Sweeper))
	router.POST("/reservations", HandleCreateReservation(deps.Reservations, deps.Sweeper))
	router.DELETE("/reservations/:id", admin(HandleCancelReservation(deps.Reservations)))

	if deps.Sweeper != nil {
		router.POST("/admin/sweep", admin(HandleSweep(deps.Sweeper)))
	}

	return router
}
