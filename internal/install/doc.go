// Package install writes runtimes to disk.
//
// # File lists
//
// Materializer takes the ordered entries of a primary provider manifest,
// creates directories and links as it meets them and hands every regular
// file to one concurrent download batch. Digests are verified by the fetch
// engine before a file is renamed into place.
//
// # Archives
//
// ArchiveInstaller downloads a secondary provider bundle to a scratch file
// named after the run, unpacks the entries under the archive's top-level
// directory, and Cleanup removes the scratch file again. Entries that would land
// outside the install directory abort the extraction.
package install
