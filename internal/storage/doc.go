// Package storage persists the notification log.
//
// Two drivers are available:
//   - "json": a single UTF-8 JSON array, compatible with the legacy
//     lancamentos_notificados.json file
//   - "sqlite": a SQLite database (modernc.org/sqlite, no cgo)
//
// Every Save writes the full log and is durable when it returns. An exclusive
// lock on <path>.lock keeps a second process from writing the same log.
package storage
