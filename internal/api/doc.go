// Package api exposes the review engine over HTTP. Handlers translate
// requests into calls on the review, due, and stats services, and map
// service errors to status codes and client-safe messages.
package api
