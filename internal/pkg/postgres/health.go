package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connection states reported by Probe.
const (
	StateConnected    = "connected"
	StateDisconnected = "disconnected"
)

// Status describes the database connection as seen by the pool.
type Status struct {
	OK       bool
	State    string
	Database string
	Host     string
}

// Probe pings the database and reports the connection target.
func Probe(ctx context.Context, pool *pgxpool.Pool) Status {
	connCfg := pool.Config().ConnConfig

	status := Status{
		OK:       true,
		State:    StateConnected,
		Database: connCfg.Database,
		Host:     connCfg.Host,
	}

	if err := pool.Ping(ctx); err != nil {
		status.OK = false
		status.State = StateDisconnected
	}

	return status
}
