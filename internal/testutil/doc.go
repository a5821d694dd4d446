// Package testutil holds builders for events, sessions and scripted event
// streams shared by the package tests. It is not intended for production use.
package testutil
