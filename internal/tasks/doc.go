// Package tasks mirrors bookmarks into the knowledge graph with real-time progress reporting.
//
// # Core Operations
//
// The [SyncEngine] interface defines three sync entry points sharing one per-bookmark step:
//
//  1. [SyncEngine.FullSync] : Page from the beginning until caught up
//     - Fetches pages of the configured batch size
//     - Syncs each bookmark in order; the first failure aborts the page
//     - Persists the next cursor (JSON null when caught up), then backs up the cache
//
//  2. [SyncEngine.IncrementalSync] : Resume from the saved cursor
//     - Processes exactly one page
//     - Delegates to a full sync when no cursor is saved or the last run was caught up
//
//  3. [SyncEngine.TestSync] : Push a small first page
//     - Submits every bookmark regardless of dedup state
//     - Records successes so later syncs skip them
//     - A failing bookmark is logged and the batch continues
//
// The per-bookmark step skips synced bookmarks, otherwise builds the article document with [BuildDocument],
// submits it, and records it with [Deduper.MarkSynced].
//
// # Deduplication
//
// [Deduper] checks bookmark_<id> first, then url_<normalized URL>. Both keys hold the JSON value true.
// URLs are normalized with [shared.NormalizeURL]; a bookmark without a URL is deduplicated by identity only.
//
// # Snapshots
//
// [BackupManager] writes every cache entry to cache-backup.json and loads it back at startup. Backup and
// restore failures are logged, never returned. Periodic backups run on a handle joined by [BackupManager.Stop].
//
// # Progress Reporting
//
// All operations use non-blocking channels for progress updates.
//
// The [ProgressUpdate] struct contains phase, step counters, messages, and optional data for advanced UI rendering.
// Updates use select with default to prevent blocking.
//
// # Run History
//
// The optional [RunRecorder] interface persists a [models.SyncRun] per call (repositories.SyncRunRepository).
// Recorder errors are logged and ignored to avoid disrupting syncs.
package tasks
