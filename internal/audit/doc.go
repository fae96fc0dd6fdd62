// Package audit relays security-relevant events from the engine to sinks without
// blocking or failing the operation that produced them.
//
// # Components
//
//   - [Event]: one audit record (action, user, team, IP, outcome, metadata).
//   - [Sink]: event consumer. Provided: [NoOpSink], [ChannelSink], [LogSink],
//     [MultiSink], [StoreSink] (persists rows to audit_logs).
//   - [BatchSink]: optional extension; the dispatcher hands it whole batches.
//   - [Dispatcher]: buffered async relay that flushes at MaxBatch events or every
//     FlushInterval, dropping or blocking when full.
//
// # What this package must NOT do
//
//   - Decide which events to emit. The Engine does.
//   - Return sink failures to emitters.
package audit
