// Package testdb opens the PostgreSQL database used by integration tests and
// resets the library tables between them. Tests using it carry the
// integration build tag and skip when no database URL is configured.
package testdb
