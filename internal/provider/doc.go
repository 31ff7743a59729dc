// Package provider talks to the two runtime sources.
//
// The primary provider publishes an index keyed by platform id and channel
// key, each entry pointing at a manifest that lists every file of the runtime
// with its SHA-1 digest. The secondary provider answers a bundle query with
// a list of archives; the first one is used.
//
// Both resolvers take the first candidate they are offered. Documents that
// cannot be parsed yield *MalformedResponseError.
package provider
