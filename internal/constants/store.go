package constants

type Ordering string

// Listing constants
const (
	AscendingOrdering  Ordering = "asc"
	DescendingOrdering Ordering = "desc"
	DefaultOrdering    Ordering = DescendingOrdering
)

// StorageKey is the single key the whole state blob lives under.
const StorageKey = "feedstash"

// Retention policy
const (
	MaxTotalItems   = 500
	MaxHistoryItems = 100
	MaxBookmarks    = 500
	MaxSources      = 100
	// MaxStorageBytes mirrors the practical ceiling of browser local storage.
	MaxStorageBytes = 5 * 1024 * 1024
)

const FetchErrorMessage = "failed to update feed"
