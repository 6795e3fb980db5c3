package extract_test

import (
	"strings"
	"testing"

	"scribe/internal/extract"
	"scribe/internal/media"
)

func TestFromPathClassifiesSupportedFiles(t *testing.T) {
	ex := extract.New(media.DefaultTable())

	item, ok := ex.FromPath("/inbox/talk.mp3")
	if !ok {
		t.Fatal("expected mp3 to produce a work item")
	}
	if item.Kind != media.KindAudio {
		t.Fatalf("expected audio kind, got %s", item.Kind)
	}
	if item.Locator != "/inbox/talk.mp3" || item.SourceID != "/inbox/talk.mp3" {
		t.Fatalf("unexpected identity: %+v", item)
	}
	if item.DiscoveredAt.IsZero() {
		t.Fatal("expected discovery timestamp")
	}
}

func TestFromPathDropsUnrecognizedExtensions(t *testing.T) {
	ex := extract.New(media.DefaultTable())
	if _, ok := ex.FromPath("/inbox/notes.txt"); ok {
		t.Fatal("txt files must yield zero work items")
	}
	if _, ok := ex.FromPath("/inbox/no-extension"); ok {
		t.Fatal("extensionless files must yield zero work items")
	}
}

func TestFromPathSkipsOwnOutputs(t *testing.T) {
	ex := extract.New(media.DefaultTable())
	// A sidecar name that happens to carry a media extension must never loop
	// back into the pipeline.
	if _, ok := ex.FromPath("/inbox/talk-scribe.webm"); ok {
		t.Fatal("scribe output artifacts must not be extracted")
	}
}

func TestFromMessageExtractsDistinctLocators(t *testing.T) {
	ex := extract.New(media.DefaultTable())

	content := "listen to https://cdn.example.com/a.mp3 and " +
		"watch https://cdn.example.com/b.mp4?quality=hd — " +
		"again https://cdn.example.com/a.mp3"
	refs := []string{"https://cdn.example.com/c.png", ""}

	items := ex.FromMessage("evt-123", content, refs)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d: %+v", len(items), items)
	}
	kinds := map[string]media.Kind{}
	for _, item := range items {
		if item.SourceID != "evt-123" {
			t.Fatalf("expected source id evt-123, got %q", item.SourceID)
		}
		kinds[item.Locator] = item.Kind
	}
	if kinds["https://cdn.example.com/a.mp3"] != media.KindAudio {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if kinds["https://cdn.example.com/b.mp4?quality=hd"] != media.KindVideo {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
	if kinds["https://cdn.example.com/c.png"] != media.KindImage {
		t.Fatalf("unexpected kinds: %v", kinds)
	}
}

func TestFromMessageUnmatchedYieldsNothing(t *testing.T) {
	ex := extract.New(media.DefaultTable())
	if items := ex.FromMessage("evt-1", "no links here", nil); len(items) != 0 {
		t.Fatalf("expected zero items, got %+v", items)
	}
	if items := ex.FromMessage("evt-2", "https://example.com/page.html", nil); len(items) != 0 {
		t.Fatalf("expected zero items for non-media locator, got %+v", items)
	}
}

func TestKeyIsStableAndDistinct(t *testing.T) {
	a := extract.Item{SourceID: "s1", Locator: "l1"}
	b := extract.Item{SourceID: "s1", Locator: "l1"}
	c := extract.Item{SourceID: "s1", Locator: "l2"}

	if a.Key() != b.Key() {
		t.Fatal("identical identities must share a key")
	}
	if a.Key() == c.Key() {
		t.Fatal("distinct locators must not collide")
	}
	if len(a.Key()) != 64 || strings.ToLower(a.Key()) != a.Key() {
		t.Fatalf("expected lowercase hex key, got %q", a.Key())
	}
}
