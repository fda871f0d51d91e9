package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/parkwise/reservation-api/internal/app"
	"github.com/parkwise/reservation-api/internal/clock"
	"github.com/parkwise/reservation-api/internal/logging"
	"github.com/parkwise/reservation-api/internal/storage/postgres"
	"github.com/parkwise/reservation-api/internal/testutil"
)

func TestCreateReservation_HTTPIntegration(t *testing.T) {
	pool := testutil.NewTestPool(t)
	testutil.ApplyMigrations(t, context.Background(), pool)
	repo := postgres.NewReservationRepository(pool)
	now := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc := app.NewReservationService(repo, clock.NewFixed(now), app.WithReservationLogger(logging.Discard()))
	sweeper := app.NewSweeper(repo, clock.NewFixed(now), app.WithSweeperLogger(logging.Discard()))

	ctx := context.Background()
	testutil.TruncateAll(t, ctx, pool)
	spotID := testutil.InsertSpot(t, ctx, pool, "A-01", true)

	post := func(start, end string) *httptest.ResponseRecorder {
		body := `{"spot_id":"` + spotID + `","name":"Ana","household":"4B","phone":"555-0101",` +
			`"start_time":"` + start + `","end_time":"` + end + `"}`
		req := httptest.NewRequest(http.MethodPost, "/reservations", strings.NewReader(body))
		rec := httptest.NewRecorder()
		HandleCreateReservation(svc, sweeper)(rec, req, nil)
		return rec
	}

	first := post("2025-03-10T09:00:00Z", "2025-03-10T11:00:00Z")
	if first.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d (%s)", first.Code, first.Body.String())
	}

	overlap := post("2025-03-10T10:00:00Z", "2025-03-10T12:00:00Z")
	if overlap.Code != http.StatusConflict {
		t.Fatalf("expected status 409, got %d", overlap.Code)
	}
	var resp errorResponse
	if err := json.NewDecoder(overlap.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Conflict == nil || !resp.Conflict.StartTime.Equal(time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)) {
		t.Fatalf("expected conflicting window in response, got %+v", resp.Conflict)
	}

	touching := post("2025-03-10T11:00:00Z", "2025-03-10T12:00:00Z")
	if touching.Code != http.StatusCreated {
		t.Fatalf("expected touching window to be admitted, got %d", touching.Code)
	}

	if count := testutil.CountReservations(t, ctx, pool, spotID); count != 2 {
		t.Fatalf("expected 2 reservations, got %d", count)
	}
}
