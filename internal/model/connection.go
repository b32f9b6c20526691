package model

import (
	"time"
)

// Connection is a directed management edge: the agent may act on behalf
// of the standard user. At most one edge exists per (agent, user) pair.
type Connection struct {
	AgentID   int64     `db:"agent_id" json:"agentId"`
	UserID    int64     `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// ConnectionCode is a short-lived, single-use pairing code issued by a
// standard user. Expiry is evaluated at read time; only the used flag is
// ever written.
type ConnectionCode struct {
	ID        int64     `db:"id" json:"-"`
	Code      string    `db:"code" json:"code"`
	UserID    int64     `db:"user_id" json:"userId"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	ExpiresAt time.Time `db:"expires_at" json:"expiresAt"`
	Used      bool      `db:"used" json:"-"`
}

type CreateConnectionCodeParams struct {
	Code      string
	UserID    int64
	ExpiresAt time.Time
}
