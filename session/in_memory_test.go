package session_test

import (
	"testing"

	"github.com/hupe1980/tripmesh/session"
	"github.com/hupe1980/tripmesh/session/sessiontest"
)

func TestInMemoryStore_Contract(t *testing.T) {
	sessiontest.RunStoreContract(t, session.NewInMemoryStore())
}
