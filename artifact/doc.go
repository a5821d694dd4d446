// Package artifact contains concrete implementations of core.ArtifactStore.
//
// The ArtifactStore interface lives in core to keep domain contracts central.
// The planner uses an artifact store to keep every generated itinerary so it
// can be downloaded again by id. InMemoryStore is the default; the s3
// sub-package persists artifacts in an S3 bucket.
package artifact
