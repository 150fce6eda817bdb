// Package database provides SQLite connectivity for SkyLink Relay.
//
// The relay persists only one kind of data: Iridium MT deliveries that
// exhausted their retry budget (the dead-letter store, see internal/store).
// Everything else the relay handles is in-flight traffic with no storage
// requirement, so this package is deliberately thin.
//
// SQLite is configured with WAL mode and a busy timeout, and the pool is
// capped at a single connection because SQLite allows only one writer.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
package database
