// Package xref builds and renders the classic cross-reference table.
// The indexer scans an assembled body buffer for "N G obj" markers; the
// encoder emits the fixed 20-byte entry format, chaining any object
// numbers that were allocated but never written into the free list.
package xref

import (
	"bytes"
	"fmt"
	"regexp"
	"sort"
)

var objMarker = regexp.MustCompile(`(?m)^(\d+) (\d+) obj\r?\n`)

// Table maps object numbers to byte offsets within one file. MaxObj is
// the highest allocated object number, including numbers that were
// reserved but never written.
type Table struct {
	Offsets map[int]int64
	MaxObj  int
}

// Lookup returns the recorded offset for an object number.
func (t *Table) Lookup(objNum int) (int64, bool) {
	off, ok := t.Offsets[objNum]
	return off, ok
}

// Free returns the allocated object numbers with no offset, ascending.
func (t *Table) Free() []int {
	var free []int
	for n := 1; n <= t.MaxObj; n++ {
		if _, ok := t.Offsets[n]; !ok {
			free = append(free, n)
		}
	}
	return free
}

// Index scans an assembled header+body buffer and records, for every
// object written into it, the byte offset where the object-number
// digits begin. maxObj is the allocator's final counter value; numbers
// in [1, maxObj] absent from the buffer stay unmapped and later render
// as free entries.
func Index(buf []byte, maxObj int) (*Table, error) {
	t := &Table{Offsets: make(map[int]int64), MaxObj: maxObj}
	for _, m := range objMarker.FindAllSubmatchIndex(buf, -1) {
		num := 0
		for _, c := range buf[m[2]:m[3]] {
			num = num*10 + int(c-'0')
		}
		if num == 0 || num > maxObj {
			return nil, fmt.Errorf("object %d outside allocated range [1, %d]", num, maxObj)
		}
		if prev, ok := t.Offsets[num]; ok {
			return nil, fmt.Errorf("object %d written twice (offsets %d and %d)", num, prev, m[0])
		}
		t.Offsets[num] = int64(m[0])
	}
	return t, nil
}

// Encode renders a single-section xref table. Object 0 heads the free
// list; missing numbers become free entries whose generation numbers
// increment from maxObj+2 and whose offset field links to the next free
// object (0 terminates the chain).
func (t *Table) Encode() []byte {
	var b bytes.Buffer
	free := t.Free()
	fmt.Fprintf(&b, "xref\n0 %d\n", t.MaxObj+1)

	next := 0
	if len(free) > 0 {
		next = free[0]
	}
	fmt.Fprintf(&b, "%010d 65535 f \n", next)

	freeIdx := make(map[int]int, len(free))
	for i, n := range free {
		freeIdx[n] = i
	}
	for n := 1; n <= t.MaxObj; n++ {
		if off, ok := t.Offsets[n]; ok {
			fmt.Fprintf(&b, "%010d 00000 n \n", off)
			continue
		}
		i := freeIdx[n]
		link := 0
		if i+1 < len(free) {
			link = free[i+1]
		}
		fmt.Fprintf(&b, "%010d %05d f \n", link, t.MaxObj+2+i)
	}
	return b.Bytes()
}

// Entry is one decoded cross-reference line.
type Entry struct {
	Offset int64
	Gen    int
	InUse  bool
}

// Decode parses a classic xref section starting at the "xref" keyword.
// It exists for round-trip verification of Encode's output.
func Decode(data []byte) (map[int]Entry, error) {
	lines := bytes.Split(data, []byte("\n"))
	if len(lines) == 0 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("xref")) {
		return nil, fmt.Errorf("xref keyword not found")
	}
	entries := make(map[int]Entry)
	i := 1
	for i < len(lines) {
		line := bytes.TrimSpace(lines[i])
		if len(line) == 0 {
			i++
			continue
		}
		if bytes.HasPrefix(line, []byte("trailer")) {
			break
		}
		var start, count int
		if _, err := fmt.Sscanf(string(line), "%d %d", &start, &count); err != nil {
			return nil, fmt.Errorf("invalid xref subsection header %q: %w", line, err)
		}
		i++
		for j := 0; j < count; j++ {
			if i >= len(lines) {
				return nil, fmt.Errorf("unexpected end of xref section")
			}
			var off int64
			var gen int
			var kind string
			if _, err := fmt.Sscanf(string(bytes.TrimSpace(lines[i])), "%d %d %s", &off, &gen, &kind); err != nil {
				return nil, fmt.Errorf("invalid xref entry %q: %w", lines[i], err)
			}
			entries[start+j] = Entry{Offset: off, Gen: gen, InUse: kind == "n"}
			i++
		}
	}
	return entries, nil
}

// SortedObjects returns the in-use object numbers ascending.
func SortedObjects(entries map[int]Entry) []int {
	out := make([]int, 0, len(entries))
	for n, e := range entries {
		if e.InUse {
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
