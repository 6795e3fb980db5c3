package extract

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"scribe/internal/media"
)

// Item is one media reference pulled from an ingestion event. Items are
// immutable values; identity is (SourceID, Locator).
type Item struct {
	SourceID     string
	Kind         media.Kind
	Locator      string
	DiscoveredAt time.Time
}

// Key derives the stable dedup ledger key for the item's identity.
func (i Item) Key() string {
	sum := sha256.Sum256([]byte(i.SourceID + "\x00" + i.Locator))
	return hex.EncodeToString(sum[:])
}

// OutputSuffix marks sidecar artifacts produced by the result sink. Files
// carrying it are never extracted, so the watcher cannot feed scribe its own
// output back into the pipeline.
const OutputSuffix = "-scribe"

// locatorPattern matches http(s) locators embedded in message text.
var locatorPattern = regexp.MustCompile(`https?://[^\s<>"'\)\]]+`)

// Extractor turns raw notifications into zero or more work items. Extraction
// never fails: unrecognized or malformed input yields no items.
type Extractor struct {
	table *media.Table
}

// New builds an extractor over the given classification table.
func New(table *media.Table) *Extractor {
	if table == nil {
		table = media.DefaultTable()
	}
	return &Extractor{table: table}
}

// FromPath classifies a filesystem path. It returns false for unrecognized
// extensions and for scribe's own output artifacts.
func (e *Extractor) FromPath(path string) (Item, bool) {
	if isOutputArtifact(path) {
		return Item{}, false
	}
	kind := e.table.KindForPath(path)
	if kind == media.KindUnknown {
		return Item{}, false
	}
	return Item{
		SourceID:     path,
		Kind:         kind,
		Locator:      path,
		DiscoveredAt: time.Now().UTC(),
	}, true
}

// FromMessage extracts media locators from a message's text content and any
// structured reference fields. Each distinct recognized locator becomes one
// item; unmatched messages produce none.
func (e *Extractor) FromMessage(sourceID, content string, refs []string) []Item {
	candidates := locatorPattern.FindAllString(content, -1)
	candidates = append(candidates, refs...)

	seen := make(map[string]struct{}, len(candidates))
	items := make([]Item, 0, len(candidates))
	now := time.Now().UTC()
	for _, locator := range candidates {
		locator = strings.TrimSpace(locator)
		if locator == "" {
			continue
		}
		if _, dup := seen[locator]; dup {
			continue
		}
		seen[locator] = struct{}{}

		kind := e.table.KindForLocator(locator)
		if kind == media.KindUnknown {
			continue
		}
		items = append(items, Item{
			SourceID:     sourceID,
			Kind:         kind,
			Locator:      locator,
			DiscoveredAt: now,
		})
	}
	return items
}

func isOutputArtifact(path string) bool {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(stem, OutputSuffix)
}
