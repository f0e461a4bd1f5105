// Package backend is the Sports Social API server: users post pickup games
// on a map, interested players join the game's group chat, and everyone can
// message, follow and review.
//
// The code is organized into subpackages:
//
//   - cmd/server: the HTTP and realtime server
//   - cmd/admin: migrations, seeding and admin promotion
//   - internal/kernel: dependency wiring and shutdown
//   - internal/handlers: HTTP handlers and the router
//   - internal/repository: data access over gorm
//   - internal/models: database schema
//   - internal/auth: OTP registration, sessions and passwords
//   - internal/otp: one-time code issue and verification
//   - internal/messaging: direct and group message delivery
//   - internal/notifications: notification fan-out and preferences
//   - internal/websocket: the realtime hub
//   - internal/email: SES and logging mailers
//   - internal/storage: S3 avatar storage
//   - internal/middleware: rate limiting, request IDs, metrics, tracing
//   - internal/seed: fake data for development
package backend
