// Package pipeline drives one runtime acquisition from request to install.
//
// A run starts by asking the primary provider for a manifest. When one
// exists the file list is materialized; otherwise the platform is mapped to
// secondary provider tokens and a single archive is downloaded and
// extracted:
//
//	idle -> querying-manifest -> materializing-files -> succeeded
//	                          -> querying-fallback -> downloading-archive -> extracting -> succeeded
//
// Any non-terminal state may move to failed or aborted. Each run ends in
// exactly one terminal state and emits exactly one terminal event.
//
// # Concurrency
//
// The run goroutine owns the state. Each stage executes on its own goroutine
// and reports back over a channel, together with the progress it observes,
// so listeners see events in order from a single goroutine. Abort kills the
// run's tomb, which cancels the context every stage receives.
//
// # Compensation
//
// The run's scratch archive is deleted once extraction returns, and on every
// earlier exit after the download started. On failure or abort the install
// directory is also removed if this run created it. A directory that already
// existed is left in place. Callers must not point two concurrent runs at the
// same install root.
package pipeline
