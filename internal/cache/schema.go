package cache

// SQL schemas for cache tables

// SearchCacheSchema stores destination search results as JSON.
const SearchCacheSchema = `
CREATE TABLE IF NOT EXISTS search_cache (
	cache_key TEXT PRIMARY KEY NOT NULL,
	data TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_search_expires_at ON search_cache(expires_at);
`

// MatchMappingSchema stores confirmed source record -> destination entry
// mappings. Mappings do not expire.
const MatchMappingSchema = `
CREATE TABLE IF NOT EXISTS match_mapping_cache (
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	destination TEXT NOT NULL,
	target_id TEXT NOT NULL,
	cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (source, source_id, destination)
);
`

const (
	SearchTable  = "search_cache"
	MappingTable = "match_mapping_cache"
)

// AllCacheSchemas contains all cache table schemas for easy initialization
var AllCacheSchemas = []string{
	SearchCacheSchema,
	MatchMappingSchema,
}

// ValidCacheTableNames is the whitelist of allowed cache table names
// Used to prevent SQL injection when interpolating table names
var ValidCacheTableNames = map[string]bool{
	SearchTable:  true,
	MappingTable: true,
}
