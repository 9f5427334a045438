// Package database connects an application to its PostgreSQL database. It
// validates the connection configuration, creates the database through a
// bootstrap database when it does not exist yet, opens a bun session and
// applies migrations.
package database
