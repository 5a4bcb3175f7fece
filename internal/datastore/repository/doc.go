// Package repository provides repository interfaces and GORM implementations
// for the detections, settings and users tables.
//
// # Error Handling
//
// Repositories return sentinel errors (ErrEventNotFound, etc.) instead of
// leaking GORM errors, so callers can map them to API responses without
// depending on the ORM.
//
// # Thread Safety
//
// All repository methods are safe for concurrent use.
package repository
