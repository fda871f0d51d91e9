package http

import (
	"context"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/domain"
)

// ReservationService is the admission core as seen by the HTTP layer.
type ReservationService interface {
	Admit(ctx context.Context, in app.AdmitInput) (domain.Reservation, error)
	Cancel(ctx context.Context, reservationID string) error
	List(ctx context.Context, in app.ListReservationsInput) ([]domain.Reservation, error)
}

// Presweeper drops expired reservations before reads and admissions. Failures must not surface
// to the caller. Handlers built with a nil Presweeper skip the sweep.
type Presweeper interface {
	SweepBestEffort(ctx context.Context)
}

type createReservationRequest struct {
	SpotID     string `json:"spot_id"`
	HolderName string `json:"name"`
	Household  string `json:"household"`
	Phone      string `json:"phone"`
	StartTime  string `json:"start_time"`
	EndTime    string `json:"end_time"`
}

type reservationResponse struct {
	ID         string    `json:"id"`
	SpotID     string    `json:"spot_id"`
	HolderName string    `json:"name"`
	Household  string    `json:"household"`
	Phone      string    `json:"phone"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	CreatedAt  time.Time `json:"created_at"`
}

func newReservationResponse(res domain.Reservation) reservationResponse {
	return reservationResponse{
		ID:         res.ID,
		SpotID:     res.SpotID,
		HolderName: res.HolderName,
		Household:  res.Household,
		Phone:      res.Phone,
		StartTime:  res.StartTime,
		EndTime:    res.EndTime,
		CreatedAt:  res.CreatedAt,
	}
}

// HandleListReservations lists reservations ordered by start time, optionally for one spot.
func HandleListReservations(svc ReservationService, sweeper Presweeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		if sweeper != nil {
			sweeper.SweepBestEffort(r.Context())
		}

		items, err := svc.List(r.Context(), app.ListReservationsInput{
			SpotID: r.URL.Query().Get("spot_id"),
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}

		resp := make([]reservationResponse, 0, len(items))
		for _, res := range items {
			resp = append(resp, newReservationResponse(res))
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// HandleCreateReservation admits a reservation. Overlaps answer 409 with the conflicting window.
func HandleCreateReservation(svc ReservationService, sweeper Presweeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		var req createReservationRequest
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid request body")
			return
		}

		start, err := parseTimestamp("start_time", req.StartTime)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		end, err := parseTimestamp("end_time", req.EndTime)
		if err != nil {
			writeServiceError(w, err)
			return
		}

		if sweeper != nil {
			sweeper.SweepBestEffort(r.Context())
		}

		res, err := svc.Admit(r.Context(), app.AdmitInput{
			SpotID:     req.SpotID,
			HolderName: req.HolderName,
			Household:  req.Household,
			Phone:      req.Phone,
			StartTime:  start,
			EndTime:    end,
		})
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, newReservationResponse(res))
	}
}

func HandleCancelReservation(svc ReservationService) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if err := svc.Cancel(r.Context(), ps.ByName("id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// parseTimestamp parses an RFC 3339 value. An empty value is left zero for the service to reject.
func parseTimestamp(field, raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, domain.NewValidationError(field, "must be an RFC 3339 timestamp")
	}
	return t, nil
}
