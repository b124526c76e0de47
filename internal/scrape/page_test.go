package scrape

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/skynetlabs/content-scraper/internal/model"
)

const testSkylink = "AACogzrAimYPG42tDOKhS3lXZD8YvlF8Q8R17afe95iV2Q"

var refSpec = CategorySpec{
	Category:  model.CategoryNewContent,
	Namespace: "crqa.hns",
	EntryType: model.EntryTypeNewContent,
}

var feedSpec = CategorySpec{
	Category:  model.CategoryComments,
	Namespace: "feed-dac.hns",
	EntryType: model.EntryTypeComment,
}

func TestSanitizeSkylink(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{testSkylink, testSkylink, true},
		{"https://siasky.net/" + testSkylink + "/", testSkylink, true},
		{"sia://" + testSkylink, testSkylink, true},
		{"sia:" + testSkylink, testSkylink, true},
		{"https://x/" + testSkylink, testSkylink, true},
		{"", "", false},
		{"too-short", "", false},
		{testSkylink + "extra", "", false},
		{strings.Replace(testSkylink, "A", "!", 1), "", false},
	}
	for _, tc := range cases {
		got, ok := SanitizeSkylink(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("SanitizeSkylink(%q) = (%q, %v), want (%q, %v)", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestParsePage_DetectsShape(t *testing.T) {
	t.Parallel()

	p, err := ParsePage([]byte(`{"version":1,"entries":[]}`))
	if err != nil || p.Reference == nil || p.Identity != nil {
		t.Fatalf("want reference page, got %+v err %v", p, err)
	}

	p, err = ParsePage([]byte(`{"$schema":"https://example.org/page","_self":"ref","items":[]}`))
	if err != nil || p.Identity == nil || p.Reference != nil {
		t.Fatalf("want identity page, got %+v err %v", p, err)
	}

	if _, err = ParsePage([]byte(`not json`)); err == nil {
		t.Fatalf("want error on malformed page")
	}
}

func TestNormalize_ReferencePage(t *testing.T) {
	t.Parallel()

	raw := `{
		"version": 1,
		"entries": [
			{"skylink": "https://x/` + testSkylink + `/", "metadata": {}, "timestamp": 1000}
		]
	}`
	page, err := ParsePage([]byte(raw))
	if err != nil {
		t.Fatalf("ParsePage: %v", err)
	}

	now := time.Now()
	out := NormalizeEntries(page, refSpec, "pk", "skapp", 0, now)
	if len(out) != 1 {
		t.Fatalf("want 1 entry, got %d", len(out))
	}
	e := out[0]
	if e.Identifier != testSkylink || e.Root != e.Identifier {
		t.Fatalf("identifier/root mismatch: %+v", e)
	}
	if e.Skylink != testSkylink || e.SkylinkUnsanitized != "https://x/"+testSkylink+"/" {
		t.Fatalf("skylink mismatch: %+v", e)
	}
	if e.Type != "newcontent" || e.EntryType != model.EntryTypeNewContent {
		t.Fatalf("type mismatch: %+v", e)
	}
	if !e.CreatedAt.Equal(time.Unix(1000, 0)) {
		t.Fatalf("createdAt want unix 1000, got %v", e.CreatedAt)
	}
	if !e.ScrapedAt.Equal(now) {
		t.Fatalf("scrapedAt not propagated")
	}
}

func TestNormalize_ReferencePage_DropsUnsanitizable(t *testing.T) {
	t.Parallel()

	raw := `{
		"entries": [
			{"skylink": "garbage", "metadata": {}, "timestamp": 1},
			{"skylink": "` + testSkylink + `", "metadata": {}, "timestamp": 2}
		]
	}`
	page, _ := ParsePage([]byte(raw))
	out := NormalizeEntries(page, refSpec, "pk", "skapp", 0, time.Now())
	if len(out) != 1 || out[0].Identifier != testSkylink {
		t.Fatalf("want garbage dropped, got %+v", out)
	}
}

func TestNormalize_IdentityPage_Comment(t *testing.T) {
	t.Parallel()

	raw := `{
		"$schema": "https://example.org/page",
		"_self": "pageref",
		"items": [
			{"id": "5", "commentTo": "root-1", "ts": 2000}
		]
	}`
	page, _ := ParsePage([]byte(raw))
	out := NormalizeEntries(page, feedSpec, "pk", "skapp", 0, time.Now())
	if len(out) != 1 {
		t.Fatalf("want 1 entry, got %d", len(out))
	}
	e := out[0]
	if e.Identifier != "pageref#5" {
		t.Fatalf("identifier want pageref#5, got %q", e.Identifier)
	}
	if e.Root != "root-1" {
		t.Fatalf("root want root-1, got %q", e.Root)
	}
	if e.EntryType != model.EntryTypeComment || e.Type != "interaction" {
		t.Fatalf("type mismatch: %+v", e)
	}
	if !e.CreatedAt.Equal(time.UnixMilli(2000)) {
		t.Fatalf("createdAt want unix ms 2000, got %v", e.CreatedAt)
	}
	if !json.Valid(e.Metadata) {
		t.Fatalf("raw item should be preserved as metadata")
	}
}

func TestNormalize_IdentityPage_Repost(t *testing.T) {
	t.Parallel()

	spec := CategorySpec{
		Category:  model.CategoryPosts,
		Namespace: "feed-dac.hns",
		EntryType: model.EntryTypePost,
	}
	raw := `{
		"$schema": "s",
		"_self": "pageref",
		"items": [
			{"id": 1, "ts": 1},
			{"id": 2, "repostOf": "orig-id", "ts": 2}
		]
	}`
	page, _ := ParsePage([]byte(raw))
	out := NormalizeEntries(page, spec, "pk", "skapp", 0, time.Now())
	if len(out) != 2 {
		t.Fatalf("want 2 entries, got %d", len(out))
	}
	if out[0].EntryType != model.EntryTypePost || out[0].Root != "pageref#1" {
		t.Fatalf("plain post mismatch: %+v", out[0])
	}
	if out[1].EntryType != model.EntryTypeRepost || out[1].Root != "orig-id" || out[1].Type != "interaction" {
		t.Fatalf("repost mismatch: %+v", out[1])
	}
}

func TestNormalize_IdentityPage_ItemIDKinds(t *testing.T) {
	t.Parallel()

	// Ids appear as strings or numbers; only missing or null means no id.
	raw := `{
		"$schema": "s",
		"_self": "ref",
		"items": [
			{"ts": 1},
			{"id": null, "ts": 2},
			{"id": "ok", "ts": 3},
			{"id": 7, "ts": 4}
		]
	}`
	page, _ := ParsePage([]byte(raw))
	out := NormalizeEntries(page, feedSpec, "pk", "skapp", 0, time.Now())
	if len(out) != 2 {
		t.Fatalf("want id-less items dropped and the rest kept, got %+v", out)
	}
	if out[0].Identifier != "ref#ok" {
		t.Fatalf("string id identifier want ref#ok, got %q", out[0].Identifier)
	}
	if out[1].Identifier != "ref#7" {
		t.Fatalf("numeric id identifier want ref#7, got %q", out[1].Identifier)
	}
}

func TestNormalize_Offset(t *testing.T) {
	t.Parallel()

	raw := `{
		"entries": [
			{"skylink": "` + strings.Replace(testSkylink, "A", "B", 1) + `", "metadata": {}, "timestamp": 1},
			{"skylink": "` + testSkylink + `", "metadata": {}, "timestamp": 2}
		]
	}`
	page, _ := ParsePage([]byte(raw))

	out := NormalizeEntries(page, refSpec, "pk", "skapp", 1, time.Now())
	if len(out) != 1 || out[0].Identifier != testSkylink {
		t.Fatalf("offset slice wrong: %+v", out)
	}

	if out = NormalizeEntries(page, refSpec, "pk", "skapp", 2, time.Now()); len(out) != 0 {
		t.Fatalf("offset past end should yield nothing, got %+v", out)
	}
	if out = NormalizeEntries(page, refSpec, "pk", "skapp", 99, time.Now()); len(out) != 0 {
		t.Fatalf("offset far past end should yield nothing, got %+v", out)
	}
}
