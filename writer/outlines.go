package writer

import (
	"sort"

	"github.com/draftmark/pdfgen/ir/raw"
	"github.com/draftmark/pdfgen/ir/semantic"
	"github.com/draftmark/pdfgen/observability"
)

// outlineItem is one arena slot during outline tree construction.
type outlineItem struct {
	num     int
	parent  int // arena index, -1 for the root
	prev    int
	next    int
	first   int
	last    int
	count   int
	title   string
	page    int
	y       float64
	invalid bool
}

// writeOutlines links the flat bookmark list into the outline tree. The
// list is first ordered by target page, ties broken by insertion order,
// then a pass over it allocates numbers and resolves parent/sibling
// structure from the nesting levels; a second pass renders the items.
// An entry whose level skips ahead is clamped to one deeper than its
// predecessor.
func (a *assembler) writeOutlines() error {
	if len(a.doc.Outlines) == 0 {
		return nil
	}
	a.ids.set(roleOutlines, a.alloc.Next())
	rootNum := a.ids.get(roleOutlines)

	ordered := make([]semantic.Bookmark, len(a.doc.Outlines))
	copy(ordered, a.doc.Outlines)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Page < ordered[j].Page
	})

	items := make([]*outlineItem, len(ordered))
	levels := make([]int, len(ordered))
	// Arena indexes of the most recent item at each level.
	lastAt := map[int]int{}
	prevLevel := -1
	for i, bm := range ordered {
		level := bm.Level
		if level < 0 {
			level = 0
		}
		if level > prevLevel+1 {
			level = prevLevel + 1
		}
		levels[i] = level
		prevLevel = level

		it := &outlineItem{
			num:    a.alloc.Next(),
			parent: -1,
			prev:   -1, next: -1, first: -1, last: -1,
			title: bm.Title,
			page:  bm.Page,
			y:     bm.Y,
		}
		if bm.Page < 0 || bm.Page >= len(a.doc.Pages) {
			it.invalid = true
			a.log.Warn("bookmark points past the last page",
				observability.String("title", bm.Title), observability.Int("page", bm.Page))
		}
		items[i] = it

		if level > 0 {
			p := lastAt[level-1]
			it.parent = p
			if items[p].first < 0 {
				items[p].first = i
			} else {
				sib := items[p].last
				items[sib].next = i
				it.prev = sib
			}
			items[p].last = i
		} else if prev, ok := lastAt[0]; ok {
			items[prev].next = i
			it.prev = prev
		}
		lastAt[level] = i
	}

	// Counts propagate up: every open ancestor counts its whole
	// visible subtree.
	for i := len(items) - 1; i >= 0; i-- {
		it := items[i]
		it.count++
		for p := it.parent; p >= 0; p = items[p].parent {
			items[p].count++
		}
	}

	var firstTop, lastTop, topCount int
	firstTop, lastTop = -1, -1
	for i := range items {
		if levels[i] == 0 {
			if firstTop < 0 {
				firstTop = i
			}
			lastTop = i
			topCount += items[i].count
		}
	}

	for _, it := range items {
		d := raw.Dict()
		d.Set(raw.NameLiteral("Title"), pdfString(it.title))
		if it.parent >= 0 {
			d.Set(raw.NameLiteral("Parent"), raw.Ref(items[it.parent].num, 0))
		} else {
			d.Set(raw.NameLiteral("Parent"), raw.Ref(rootNum, 0))
		}
		if it.prev >= 0 {
			d.Set(raw.NameLiteral("Prev"), raw.Ref(items[it.prev].num, 0))
		}
		if it.next >= 0 {
			d.Set(raw.NameLiteral("Next"), raw.Ref(items[it.next].num, 0))
		}
		if it.first >= 0 {
			d.Set(raw.NameLiteral("First"), raw.Ref(items[it.first].num, 0))
			d.Set(raw.NameLiteral("Last"), raw.Ref(items[it.last].num, 0))
			d.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(it.count-1)))
		}
		if !it.invalid {
			d.Set(raw.NameLiteral("Dest"), raw.NewArray(
				raw.Ref(a.pageNums[it.page], 0),
				raw.NameLiteral("XYZ"), raw.NullObj{}, raw.NumberFloat(it.y), raw.NullObj{}))
		}
		if err := a.emit(it.num, d); err != nil {
			return err
		}
	}

	root := raw.Dict()
	root.Set(raw.NameLiteral("Type"), raw.NameLiteral("Outlines"))
	if firstTop >= 0 {
		root.Set(raw.NameLiteral("First"), raw.Ref(items[firstTop].num, 0))
		root.Set(raw.NameLiteral("Last"), raw.Ref(items[lastTop].num, 0))
	}
	root.Set(raw.NameLiteral("Count"), raw.NumberInt(int64(topCount)))
	return a.emit(rootNum, root)
}
