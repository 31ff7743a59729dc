// Package jre holds the domain types shared by the acquisition pipeline:
// channels, requests, file-list entries, archive bundles and the platform
// token mapping for the secondary provider.
//
// # Channels
//
// Two runtime lines exist. Legacy is Java 8 and Current is Java 17. Each
// channel knows how the primary and secondary providers spell it and which
// directory under <root>/java it installs into:
//
//	legacy   jre-legacy          8.0   java-legacy
//	current  java-runtime-gamma  17.0  java-current
//
// # Platform mapping
//
// MapPlatform is a pure lookup. An unmapped id yields ok=false so that the
// pipeline can fail with a descriptive reason before any network call.
package jre
