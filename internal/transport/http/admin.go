package http

import (
	"context"
	"net/http"

	"github.com/julienschmidt/httprouter"
)

// RetentionSweeper runs an on-demand retention pass.
type RetentionSweeper interface {
	Presweeper
	SweepNow(ctx context.Context) (int64, error)
}

type sweepResponse struct {
	Deleted int64 `json:"deleted"`
}

// HandleSweep deletes reservations past the retention grace and reports how many went.
func HandleSweep(svc RetentionSweeper) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		deleted, err := svc.SweepNow(r.Context())
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sweepResponse{Deleted: deleted})
	}
}
