package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Upstream service errors
	ErrSourceRequest      = fmt.Errorf("source request failed")
	ErrTargetRequest      = fmt.Errorf("target request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Cache errors
	ErrCacheUnavailable = fmt.Errorf("cache unavailable")
	ErrCacheClosed      = fmt.Errorf("cache connection closed")
	ErrCacheMiss        = fmt.Errorf("cache key not found")

	// Sync lifecycle errors
	ErrNotInitialized  = fmt.Errorf("sync engine not initialized")
	ErrCleanupTimeout  = fmt.Errorf("cleanup timed out")
	ErrSnapshotCorrupt = fmt.Errorf("cache snapshot is corrupt")

	// Data errors
	ErrInvalidBookmark = fmt.Errorf("invalid bookmark")
	ErrInvalidNode     = fmt.Errorf("invalid node")
	ErrInvalidURL      = fmt.Errorf("invalid URL")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
