// Package handler implements the HTTP layer of the fibermap REST API.
//
// All routes hang off a chi router built by Handler.Router. Element routes
// live under /api/v1/elements, the map renderer's state under /api/v1/map
// and /api/v1/layers, and whole-topology transfer under /api/v1/export and
// /api/v1/import.
//
// # Response Format
//
// Success responses return JSON with 200, 201 or 204. Errors return
//
//	{"error": {"code": "parent_at_capacity", "message": "...", "details": {...}}}
//
// where code is the stable domain error code. Unknown request fields are
// rejected.
//
// # Server-Sent Events
//
// The /events endpoint streams service events to the renderer and is exempt
// from the request timeout.
package handler
