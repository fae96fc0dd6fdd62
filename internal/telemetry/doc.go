// Package telemetry sets up tracing and logging for the dossier-auth binary.
package telemetry
