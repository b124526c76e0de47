package scrape

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"

	"github.com/skynetlabs/content-scraper/internal/model"
)

// Two raw page shapes exist upstream. Reference-addressed pages carry plain
// entries with a skylink each; identity-addressed pages (recognizable by the
// $schema marker) carry items with their own ids and a page self-reference.

// ReferenceEntry is one item of a reference-addressed page.
type ReferenceEntry struct {
	Skylink   string          `json:"skylink"`
	Metadata  json.RawMessage `json:"metadata"`
	Timestamp int64           `json:"timestamp"` // unix seconds
}

// ReferencePage is the raw shape of a reference-addressed page.
type ReferencePage struct {
	Version   int              `json:"version"`
	IndexPath string           `json:"indexPath"`
	PagePath  string           `json:"pagePath"`
	Entries   []ReferenceEntry `json:"entries"`
}

// IdentityPage is the raw shape of an identity-addressed page. Items stay raw
// so the full item can be preserved as entry metadata.
type IdentityPage struct {
	Schema string            `json:"$schema"`
	Self   string            `json:"_self"`
	Items  []json.RawMessage `json:"items"`
}

type identityItem struct {
	ID        json.RawMessage `json:"id"`
	RepostOf  string          `json:"repostOf"`
	CommentTo string          `json:"commentTo"`
	TS        int64           `json:"ts"` // unix milliseconds
}

// itemIDText renders an item id to its literal text. Ids appear upstream as
// strings or numbers; anything else (missing, null, composite) is no id.
func itemIDText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), true
	}
	return "", false
}

// RawPage is a tagged union over the two page shapes, decided once at parse
// time. Exactly one of the fields is non-nil.
type RawPage struct {
	Reference *ReferencePage
	Identity  *IdentityPage
}

// ParsePage decodes a raw page document, picking the shape by the presence of
// the schema marker field.
func ParsePage(data []byte) (*RawPage, error) {
	var marker struct {
		Schema *string `json:"$schema"`
	}
	if err := json.Unmarshal(data, &marker); err != nil {
		return nil, err
	}

	if marker.Schema != nil {
		var p IdentityPage
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, err
		}
		return &RawPage{Identity: &p}, nil
	}

	var p ReferencePage
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, err
	}
	return &RawPage{Reference: &p}, nil
}

const skylinkLen = 46

// SanitizeSkylink reduces a raw skylink to its canonical 46-character token,
// stripping URL prefixes, path segments and a trailing slash. ok is false when
// no valid token remains.
func SanitizeSkylink(raw string) (string, bool) {
	s := strings.TrimSuffix(strings.TrimSpace(raw), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		s = s[i+1:]
	}
	s = strings.TrimPrefix(s, "sia:")
	if len(s) != skylinkLen {
		return "", false
	}
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return "", false
		}
	}
	return s, true
}

// NormalizeEntries converts the raw page into canonical content entries,
// skipping the first offset items. Items that fail validation are dropped
// silently; the page is recomputed from raw input on every call.
func NormalizeEntries(page *RawPage, spec CategorySpec, userPK, skapp string, offset int64, now time.Time) []model.ContentEntry {
	if page == nil {
		return nil
	}
	if page.Identity != nil {
		return normalizeIdentity(page.Identity, spec, userPK, skapp, offset, now)
	}
	return normalizeReference(page.Reference, spec, userPK, skapp, offset, now)
}

func normalizeReference(p *ReferencePage, spec CategorySpec, userPK, skapp string, offset int64, now time.Time) []model.ContentEntry {
	if p == nil || offset >= int64(len(p.Entries)) {
		return nil
	}

	out := make([]model.ContentEntry, 0, int64(len(p.Entries))-offset)
	for _, raw := range p.Entries[offset:] {
		skylink, ok := SanitizeSkylink(raw.Skylink)
		if !ok {
			continue
		}
		out = append(out, model.ContentEntry{
			ID:                 uuid.Must(uuid.NewV4()),
			Identifier:         skylink,
			Root:               skylink, // no parent, refers to itself
			Type:               spec.EntryType.CoarseType(),
			EntryType:          spec.EntryType,
			Namespace:          spec.Namespace,
			UserPK:             userPK,
			Skapp:              skapp,
			Skylink:            skylink,
			SkylinkUnsanitized: raw.Skylink,
			Metadata:           raw.Metadata,
			CreatedAt:          time.Unix(raw.Timestamp, 0).UTC(),
			ScrapedAt:          now,
		})
	}
	return out
}

func normalizeIdentity(p *IdentityPage, spec CategorySpec, userPK, skapp string, offset int64, now time.Time) []model.ContentEntry {
	if p == nil || offset >= int64(len(p.Items)) {
		return nil
	}

	out := make([]model.ContentEntry, 0, int64(len(p.Items))-offset)
	for _, raw := range p.Items[offset:] {
		var item identityItem
		if err := json.Unmarshal(raw, &item); err != nil {
			continue
		}
		id, ok := itemIDText(item.ID)
		if !ok {
			continue
		}

		identifier := p.Self + "#" + id
		entryType := spec.EntryType
		root := identifier
		switch {
		case entryType == model.EntryTypePost && item.RepostOf != "":
			entryType = model.EntryTypeRepost
			root = item.RepostOf
		case entryType == model.EntryTypeComment && item.CommentTo != "":
			root = item.CommentTo
		}

		out = append(out, model.ContentEntry{
			ID:         uuid.Must(uuid.NewV4()),
			Identifier: identifier,
			Root:       root,
			Type:       entryType.CoarseType(),
			EntryType:  entryType,
			Namespace:  spec.Namespace,
			UserPK:     userPK,
			Skapp:      skapp,
			Metadata:   raw,
			CreatedAt:  time.UnixMilli(item.TS).UTC(),
			ScrapedAt:  now,
		})
	}
	return out
}
