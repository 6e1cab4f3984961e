// Package database provides SQLite connectivity for Nebula Core.
//
// It opens the database with WAL mode and a busy timeout, runs versioned
// migrations from any fs.FS (the migrations package embeds the shipped set)
// and offers a small transaction helper. The robot registry's SQLite
// repository is built on it.
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true, BusyTimeout: 5})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//	if err := db.Migrate(ctx, migrations.FS); err != nil {
//	    return err
//	}
package database
