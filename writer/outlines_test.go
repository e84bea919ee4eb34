package writer

import (
	"bytes"
	"regexp"
	"strconv"
	"testing"

	"github.com/draftmark/pdfgen/ir/semantic"
)

func TestOutlineTree(t *testing.T) {
	doc := &semantic.Document{
		Pages: []*semantic.Page{
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
		},
		Outlines: []semantic.Bookmark{
			{Level: 0, Title: "Chapter 1", Page: 0, Y: 700},
			{Level: 1, Title: "Section 1.1", Page: 0, Y: 500},
			{Level: 1, Title: "Section 1.2", Page: 1, Y: 700},
			{Level: 0, Title: "Chapter 2", Page: 1, Y: 700},
		},
	}
	out := build(t, doc, Config{Deterministic: true})

	m := regexp.MustCompile(`<</Count (\d+)/First (\d+) 0 R/Last (\d+) 0 R/Type /Outlines>>`).FindSubmatch(out)
	if m == nil {
		t.Fatal("no outline root")
	}
	if count, _ := strconv.Atoi(string(m[1])); count != 4 {
		t.Errorf("root count = %d, want 4", count)
	}

	// Chapter 1 carries its two sections.
	ch1 := regexp.MustCompile(`<<[^>]*?/Title \(Chapter 1\)`).Find(out)
	if ch1 == nil {
		t.Fatal("chapter 1 entry not found")
	}
	cm := regexp.MustCompile(`/Count (\d+)`).FindSubmatch(ch1)
	if cm == nil {
		t.Fatal("chapter 1 has no count")
	}
	if count, _ := strconv.Atoi(string(cm[1])); count != 2 {
		t.Errorf("chapter 1 count = %d, want 2", count)
	}

	for _, title := range []string{"Chapter 1", "Section 1.1", "Section 1.2", "Chapter 2"} {
		if !bytes.Contains(out, []byte("/Title ("+title+")")) {
			t.Errorf("missing bookmark %q", title)
		}
	}
	if !bytes.Contains(out, []byte("/Prev ")) || !bytes.Contains(out, []byte("/Next ")) {
		t.Error("sibling links missing")
	}
}

func TestOutlineOrderedByPage(t *testing.T) {
	doc := &semantic.Document{
		Pages: []*semantic.Page{
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
			{MediaBox: semantic.Rectangle{URX: 500, URY: 500}, Contents: []byte("BT ET")},
		},
		Outlines: []semantic.Bookmark{
			{Level: 0, Title: "Later", Page: 1},
			{Level: 0, Title: "Earlier", Page: 0},
		},
	}
	out := build(t, doc, Config{Deterministic: true})
	earlier := bytes.Index(out, []byte("/Title (Earlier)"))
	later := bytes.Index(out, []byte("/Title (Later)"))
	if earlier < 0 || later < 0 {
		t.Fatal("bookmarks missing")
	}
	if earlier > later {
		t.Error("bookmark on the first page sorted after the second-page one")
	}
	entry := regexp.MustCompile(`<<[^>]*?/Title \(Earlier\)[^>]*?>>`).Find(out)
	if entry == nil || !bytes.Contains(entry, []byte("/Next ")) {
		t.Error("first-page bookmark lost its sibling link")
	}
}

func TestOutlineLevelClamp(t *testing.T) {
	doc := onePageDoc()
	doc.Outlines = []semantic.Bookmark{
		{Level: 0, Title: "Top", Page: 0},
		{Level: 5, Title: "Deep jump", Page: 0}, // clamps to level 1
	}
	out := build(t, doc, Config{Deterministic: true})
	if !bytes.Contains(out, []byte("/Title (Deep jump)")) {
		t.Fatal("clamped bookmark dropped")
	}
	// The jumped entry must hang off Top, not off a phantom chain.
	m := regexp.MustCompile(`/First (\d+) 0 R/Last (\d+) 0 R(?:/\w+ [^/]*)*/Title \(Top\)`).Find(out)
	if m == nil {
		t.Error("Top did not become the parent of the clamped entry")
	}
}

func TestOutlineInvalidPage(t *testing.T) {
	doc := onePageDoc()
	doc.Outlines = []semantic.Bookmark{{Level: 0, Title: "Ghost", Page: 99}}
	out := build(t, doc, Config{Deterministic: true})
	if !bytes.Contains(out, []byte("/Title (Ghost)")) {
		t.Fatal("entry with bad page vanished entirely")
	}
	ghost := regexp.MustCompile(`<<[^>]*?/Title \(Ghost\)[^>]*?>>`).Find(out)
	if ghost == nil {
		t.Fatal("ghost entry not found")
	}
	if bytes.Contains(ghost, []byte("/Dest")) {
		t.Error("bad page still produced a destination")
	}
}
