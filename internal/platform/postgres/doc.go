// Package postgres implements the library store on PostgreSQL through the pgx
// database/sql driver. The schema lives in the embedded migrations directory
// and is applied with goose by Migrate.
package postgres
