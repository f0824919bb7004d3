// Package events provides the in-process event bus connecting the sync
// pipeline to its observers.
//
// The bus replaces callback registries with explicit channel queues: one
// dispatcher goroutine per topic delivers events to subscribed handlers in
// publish order. Publish never blocks; when a topic buffer is full the
// event is dropped and counted rather than stalling a sync run.
//
// # Topics
//
// Inbound (core subscribes): validation.requested,
// batch.validation.requested, config.updated, extraction.completed.
//
// Outbound (core publishes): validation.started/progress/completed/failed,
// quality.warning, batch.processed, sync.progress, ready-for-sync.
package events
