// Package database provides SQLite-based run history for spider.
//
// This package implements the HistoryDB, which stores:
//   - One row per recorded crawl run with its totals
//   - The pages visited by each run
//   - The image downloads attempted by each run, with content digests
//
// Design decision: We use SQLite (via modernc.org/sqlite) instead of other
// databases because:
// 1. No external dependencies - the database is a single file
// 2. CGO-free implementation allows easy cross-compilation
// 3. WAL mode lets the history command read while a crawl records
//
// Recording is opt-in. A crawl never touches the database unless the
// caller asks for it.
package database
