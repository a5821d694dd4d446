// Package session houses concrete implementations of core.SessionStore.
// The interface itself (and the Session struct) live in core so higher level
// packages (agents, runner, planner) never depend on concrete storage.
//
// InMemoryStore is the default backend. The redis sub-package persists
// sessions in Redis; sessiontest holds the behavioural contract every backend
// must satisfy.
package session
