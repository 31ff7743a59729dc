// Package fetch is the download engine used by the acquisition pipeline.
//
// # Operations
//
//   - Get: fetch a provider document into memory
//   - Download: transfer one file to disk
//   - Batch: transfer many files with bounded parallelism
//
// # Transfers
//
// Every file is written to "<path>.part" and renamed into place only after
// its digest has been checked, so a failed or cancelled transfer never leaves
// a file at the final path. Transport errors, 5xx, 408 and 429 responses are
// retried with a doubling delay. Other 4xx responses, digest mismatches and
// local filesystem errors fail immediately.
//
// # Progress
//
// Progress is reported in bytes. Calls for one operation are serialized so
// observers see counts in the order the engine produced them.
package fetch
