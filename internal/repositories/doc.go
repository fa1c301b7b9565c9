// Package repositories implements the key-value cache that holds sync state, and run history.
//
// Key Implementations:
//   - [Cache] : the connect/get/set/has/delete/keys contract used by the sync engine
//   - [SQLiteCache] : durable store on the cache_entries table, TTLs kept as unix-millisecond deadlines
//   - [MemoryCache] : volatile store on an unbounded expirable LRU, made durable by snapshots
//   - [SyncRunRepository] : history of sync invocations in the sync_runs table
//
// Values are kept as raw JSON so that snapshot round trips reproduce them exactly, including JSON null.
package repositories
