// Package notify provides teamauth.Notifier implementations.
//
// [Publisher] publishes invite, password reset and email verification notifications to
// NATS JetStream, one subject per kind, for a separate mail worker to deliver. [Log]
// writes them to a zerolog logger.
package notify
