// Package cli implements steamctl, the command-line client of the
// SteamCity API.
//
// Read commands go through a client.Provider so that --fallback-demo can
// substitute generated demo data when the server is down. The seed command
// is the exception: it opens the configured database directly.
package cli
