package app

import (
	"context"
	"net/http"
	"time"

	"github.com/accountd/accountd/internal/pkg/ctxlog"
	"github.com/accountd/accountd/internal/pkg/httputil"
	"github.com/accountd/accountd/internal/pkg/postgres"
	"github.com/accountd/accountd/internal/version"
)

// HealthResponse is the liveness payload.
type HealthResponse struct {
	OK      bool      `json:"ok"`
	Service string    `json:"service"`
	TS      time.Time `json:"ts"`
}

// DBHealthResponse is the database probe payload. The mongooseState key
// predates the Postgres store and is kept for existing clients.
type DBHealthResponse struct {
	OK            bool   `json:"ok"`
	MongooseState string `json:"mongooseState"`
	DB            string `json:"db"`
	Host          string `json:"host"`
}

func (a *App) healthHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, HealthResponse{
		OK:      true,
		Service: serviceName,
		TS:      time.Now().UTC(),
	})
}

func (a *App) healthDBHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := postgres.Probe(ctx, a.db)
	if !status.OK {
		ctxlog.FromContext(r.Context()).Warn("database probe failed", "host", status.Host)
	}

	httputil.JSON(w, http.StatusOK, DBHealthResponse{
		OK:            status.OK,
		MongooseState: status.State,
		DB:            status.Database,
		Host:          status.Host,
	})
}

func (a *App) versionHandler(w http.ResponseWriter, _ *http.Request) {
	httputil.JSON(w, http.StatusOK, version.Info())
}
