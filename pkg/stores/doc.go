// Package stores archives plan requests, their variant results and the
// generation event log in SQLite. Migrations are embedded and applied with
// golang-migrate; the driver is the pure Go modernc.org/sqlite.
package stores
