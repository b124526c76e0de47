// Package model defines domain entities shared by the scrape engine and repositories.
package model

import (
	"encoding/json"
	"time"

	"github.com/gofrs/uuid/v5"
)

// Category is one of the four content kinds we synchronize. Its string value
// is used verbatim in resource paths and as the sync-state map key.
type Category string

const (
	CategoryNewContent   Category = "newcontent"
	CategoryInteractions Category = "interactions"
	CategoryPosts        Category = "posts"
	CategoryComments     Category = "comments"
)

// Categories lists all synchronized categories in scrape order.
var Categories = []Category{
	CategoryNewContent,
	CategoryInteractions,
	CategoryPosts,
	CategoryComments,
}

// EntryType is the fine-grained kind of a content entry.
type EntryType string

const (
	EntryTypeNewContent  EntryType = "NEWCONTENT"
	EntryTypeInteraction EntryType = "INTERACTION"
	EntryTypePost        EntryType = "POST"
	EntryTypeRepost      EntryType = "REPOST"
	EntryTypeComment     EntryType = "COMMENT"
)

// CoarseType squashes all entry types onto either "newcontent" or
// "interaction" so downstream aggregation can ignore finer kinds.
func (t EntryType) CoarseType() string {
	switch t {
	case EntryTypeNewContent, EntryTypePost:
		return "newcontent"
	default:
		return "interaction"
	}
}

// Cursor marks ingestion progress for one (user, skapp, category).
type Cursor struct {
	CurrPage   int64 `json:"currPage"`
	CurrOffset int64 `json:"currOffset"`

	// EmptyRuns counts consecutive sync attempts that yielded zero new
	// entries; it drives the probabilistic skip.
	EmptyRuns int `json:"emptyRuns"`
}

// Behind reports whether c is strictly behind other in (page, offset) order.
func (c Cursor) Behind(other Cursor) bool {
	if c.CurrPage != other.CurrPage {
		return c.CurrPage < other.CurrPage
	}
	return c.CurrOffset < other.CurrOffset
}

// SyncState holds one cursor per skapp within each category.
type SyncState map[Category]map[string]Cursor

// Cursor returns the stored cursor for (category, skapp), zero if absent.
func (s SyncState) Cursor(cat Category, skapp string) Cursor {
	return s[cat][skapp]
}

// Set stores a cursor, allocating nested maps as needed.
func (s SyncState) Set(cat Category, skapp string, c Cursor) {
	m := s[cat]
	if m == nil {
		m = make(map[string]Cursor)
		s[cat] = m
	}
	m[skapp] = c
}

// User is one discovered identity on the content network.
type User struct {
	UserPK string   // 64-char hex public key, unique
	Skapps []string // application namespaces the user is known to have used

	SyncState   SyncState         // per (category, skapp) cursors
	CachedLinks map[string]string // resource path -> last-seen fingerprint

	// Best-effort profile snapshots, kept opaque.
	MySkyProfile json.RawMessage
	SkyIDProfile json.RawMessage

	CreatedAt    time.Time
	DiscoveredAt *time.Time // set only when discovered through the API
}

// HasSkapp reports whether the skapp is already on the user's list.
func (u *User) HasSkapp(skapp string) bool {
	for _, s := range u.Skapps {
		if s == skapp {
			return true
		}
	}
	return false
}

// ContentEntry is one ingested content record, immutable once written.
type ContentEntry struct {
	ID uuid.UUID

	// Identifier uniquely identifies the entry across the corpus. For
	// reference-addressed entries it equals the sanitized skylink, for
	// identity-addressed entries it is "<pageRef>#<itemID>".
	Identifier string

	// Root identifies the entry this one refers to, so interactions can be
	// aggregated under their parent. An entry without a parent refers to
	// itself, not to an empty root.
	Root string

	Type      string // coarse class: "newcontent" or "interaction"
	EntryType EntryType

	Namespace string // data domain the entry was scraped from
	UserPK    string
	Skapp     string

	Skylink            string
	SkylinkUnsanitized string
	Metadata           json.RawMessage

	CreatedAt time.Time // author-asserted time
	ScrapedAt time.Time // ingestion time
}

// EventType classifies rows in the event log.
type EventType string

const (
	EventIterationSuccess EventType = "ITERATION_SUCCESS"
	EventIterationFailure EventType = "ITERATION_FAILURE"

	EventFetchNewContentError   EventType = "FETCHNEWCONTENT_ERROR"
	EventFetchInteractionsError EventType = "FETCHINTERACTIONS_ERROR"
	EventFetchPostsError        EventType = "FETCHPOSTS_ERROR"
	EventFetchCommentsError     EventType = "FETCHCOMMENTS_ERROR"
	EventFetchSkappsError       EventType = "FETCHSKAPPS_ERROR"
	EventFetchProfilesError     EventType = "FETCHUSERPROFILES_ERROR"

	EventUserDiscovered EventType = "USER_DISCOVERED"
)

// FetchErrorEvent returns the failure event type for a category.
func FetchErrorEvent(cat Category) EventType {
	switch cat {
	case CategoryNewContent:
		return EventFetchNewContentError
	case CategoryInteractions:
		return EventFetchInteractionsError
	case CategoryPosts:
		return EventFetchPostsError
	case CategoryComments:
		return EventFetchCommentsError
	default:
		return EventIterationFailure
	}
}

// Event is a best-effort log record of iteration outcomes and unit failures.
type Event struct {
	ID        uuid.UUID
	Type      EventType
	Context   string
	Error     string
	Metadata  json.RawMessage
	CreatedAt time.Time
}

// Index is the upstream per-(skapp, category) index document.
type Index struct {
	Version            int      `json:"version"`
	CurrPageNumber     int64    `json:"currPageNumber"`
	CurrPageNumEntries int64    `json:"currPageNumEntries"`
	PagePaths          []string `json:"pagePaths"`
	PageSize           int      `json:"pageSize"`
}

// IsValidUserPK reports whether s is a well-formed 64-character hex public key.
func IsValidUserPK(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
