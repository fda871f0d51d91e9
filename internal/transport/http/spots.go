package http

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/domain"
)

// SpotService is the spot catalogue as seen by the HTTP layer.
type SpotService interface {
	ListSpots(ctx context.Context, includeInactive bool) ([]domain.Spot, error)
	CreateSpot(ctx context.Context, in app.CreateSpotInput) (domain.Spot, error)
	UpdateSpot(ctx context.Context, in app.UpdateSpotInput) (domain.Spot, error)
	DeleteSpot(ctx context.Context, id string) error
}

type createSpotRequest struct {
	Number string `json:"spot_number"`
	Active *bool  `json:"active,omitempty"`
}

type updateSpotRequest struct {
	Number *string `json:"spot_number,omitempty"`
	Active *bool   `json:"active,omitempty"`
}

type spotResponse struct {
	ID        string    `json:"id"`
	Number    string    `json:"spot_number"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func newSpotResponse(spot domain.Spot) spotResponse {
	return spotResponse{
		ID:        spot.ID,
		Number:    spot.Number,
		Active:    spot.Active,
		CreatedAt: spot.CreatedAt,
	}
}

// HandleListSpots lists active spots, or every spot with include_inactive=true.
func HandleListSpots(svc SpotService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		includeInactive := false
		if raw := r.URL.Query().Get("include_inactive"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				writeServiceError(w, domain.NewValidationError("include_inactive", "must be a boolean"))
				return
			}
			includeInactive = parsed
		}

		spots, err := svc.ListSpots(r.Context(), includeInactive)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]spotResponse, 0, len(spots))
		for _, spot := range spots {
			resp = append(resp, newSpotResponse(spot))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func HandleCreateSpot(svc SpotService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createSpotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		spot, err := svc.CreateSpot(r.Context(), app.CreateSpotInput{
			Number: req.Number,
			Active: req.Active,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newSpotResponse(spot))
	}
}

func HandleUpdateSpot(svc SpotService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		var req updateSpotRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		spot, err := svc.UpdateSpot(r.Context(), app.UpdateSpotInput{
			ID:     ps.ByName("id"),
			Number: req.Number,
			Active: req.Active,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, newSpotResponse(spot))
	}
}

// HandleDeleteSpot removes a spot and every reservation on it.
func HandleDeleteSpot(svc SpotService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := svc.DeleteSpot(r.Context(), ps.ByName("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
