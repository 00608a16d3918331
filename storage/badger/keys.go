package badger

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/openlexica/legisport/core"
)

// Key prefixes for different data types. Checkpoint data is sharded by
// (type, year) combination: every identifier outcome lives under its
// own key so concurrent workers never rewrite a shared record.
const (
	checkpointOutcomePrefix = "ckptout"
	checkpointMetaPrefix    = "ckptmeta"
	cachePrefix             = "fetchcache"
)

// makeOutcomeKey generates a key for one identifier outcome.
// Format: prefix:type:year:ident
func makeOutcomeKey(docType core.DocType, year int, ident string) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:%s", checkpointOutcomePrefix, docType, year, ident))
}

// makeOutcomeScanPrefix generates the iteration prefix for one
// combination's outcome log.
func makeOutcomeScanPrefix(docType core.DocType, year int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d:", checkpointOutcomePrefix, docType, year))
}

// makeMetaKey generates the key for a combination's meta record.
func makeMetaKey(docType core.DocType, year int) []byte {
	return []byte(fmt.Sprintf("%s:%s:%d", checkpointMetaPrefix, docType, year))
}

// parseMetaKey recovers (type, year) from a meta key.
func parseMetaKey(key []byte) (core.DocType, int, error) {
	parts := strings.Split(string(key), ":")
	if len(parts) != 3 || parts[0] != checkpointMetaPrefix {
		return "", 0, fmt.Errorf("unexpected meta key %q", key)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return "", 0, fmt.Errorf("unexpected meta key %q: %w", key, err)
	}
	return core.DocType(parts[1]), year, nil
}

// makeCacheKey generates the key for one cached URL response.
func makeCacheKey(url string) []byte {
	return []byte(cachePrefix + ":" + url)
}
