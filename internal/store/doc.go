// Package store defines the persistence interfaces background tasks use to
// read and update the library, together with the sentinel errors every
// implementation maps its failures to.
package store
