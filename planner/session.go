package planner

import (
	"context"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
)

// AppName scopes the process session.
const AppName = "city_short_trip_planner"

// DefaultUserID is used when no user id is configured.
const DefaultUserID = "user"

// InitSession creates the single session the process serves from. It is
// called once before traffic is accepted; an error means the process cannot
// serve.
func InitSession(ctx context.Context, store core.SessionStore, appName, userID, sessionID string) (*core.Session, error) {
	if userID == "" {
		userID = DefaultUserID
	}

	if sessionID == "" {
		sessionID = core.NewID()
	}

	sess, err := store.Create(ctx, appName, userID, sessionID)
	if err != nil {
		return nil, fmt.Errorf("create session %s: %w", sessionID, err)
	}

	return sess, nil
}
