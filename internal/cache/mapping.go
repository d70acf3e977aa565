package cache

import (
	"database/sql"
	"errors"
	"fmt"
)

// Mappings stores confirmed matches between source records and destination
// entries.
type Mappings struct {
	c *CacheDB
}

// NewMappings returns a mapping store backed by c.
func NewMappings(c *CacheDB) *Mappings {
	return &Mappings{c: c}
}

// Lookup returns the destination entry previously matched to a source record.
func (m *Mappings) Lookup(source, sourceID, destination string) (string, bool, error) {
	m.c.mu.RLock()
	defer m.c.mu.RUnlock()

	var targetID string
	err := m.c.db.QueryRow(`
		SELECT target_id FROM match_mapping_cache
		WHERE source = ? AND source_id = ? AND destination = ?
	`, source, sourceID, destination).Scan(&targetID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to query mapping: %w", err)
	}
	return targetID, true, nil
}

// Remember stores or replaces the mapping for a source record.
func (m *Mappings) Remember(source, sourceID, destination, targetID string) error {
	m.c.mu.Lock()
	defer m.c.mu.Unlock()

	_, err := m.c.db.Exec(`
		INSERT OR REPLACE INTO match_mapping_cache (source, source_id, destination, target_id, cached_at)
		VALUES (?, ?, ?, ?, ?)
	`, source, sourceID, destination, targetID, m.c.now())
	if err != nil {
		return fmt.Errorf("failed to store mapping: %w", err)
	}
	return nil
}
