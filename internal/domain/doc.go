// Package domain contains the library entities the background tasks operate
// on: books, their stored formats, series and cover thumbnails. It has no
// dependency on storage or transport.
package domain
