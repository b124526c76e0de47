// Package scrape implements the incremental synchronization engine: the
// per-(user, skapp, category) pagination state machine, page normalization,
// the scatter-gather runner and the outbound rate gate.
package scrape

import (
	"fmt"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// CategorySpec binds a category to the data domain its files live under and
// the entry type its items are recorded as.
type CategorySpec struct {
	Category  model.Category
	Namespace string
	EntryType model.EntryType
}

// Specs returns the four category specs for the configured data domains.
func Specs(contentDomain, feedDomain string) []CategorySpec {
	return []CategorySpec{
		{Category: model.CategoryNewContent, Namespace: contentDomain, EntryType: model.EntryTypeNewContent},
		{Category: model.CategoryInteractions, Namespace: contentDomain, EntryType: model.EntryTypeInteraction},
		{Category: model.CategoryPosts, Namespace: feedDomain, EntryType: model.EntryTypePost},
		{Category: model.CategoryComments, Namespace: feedDomain, EntryType: model.EntryTypeComment},
	}
}

// IndexPath builds the canonical index path for a (skapp, category).
func IndexPath(namespace, skapp string, cat model.Category) string {
	return fmt.Sprintf("%s/%s/%s/index.json", namespace, skapp, cat)
}

// PagePath builds the canonical path of page n for a (skapp, category).
func PagePath(namespace, skapp string, cat model.Category, n int64) string {
	return fmt.Sprintf("%s/%s/%s/page_%d.json", namespace, skapp, cat, n)
}

// SkappsPath builds the path of the per-user skapp dictionary.
func SkappsPath(namespace string) string {
	return fmt.Sprintf("%s/skapps.json", namespace)
}
