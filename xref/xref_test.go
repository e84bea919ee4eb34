package xref

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func body(objs ...int) []byte {
	var b bytes.Buffer
	b.WriteString("%PDF-1.7\n")
	for _, n := range objs {
		fmt.Fprintf(&b, "%d 0 obj\n<</X %d>>\nendobj\n", n, n)
	}
	return b.Bytes()
}

func TestIndexFindsOffsets(t *testing.T) {
	buf := body(1, 2, 3)
	table, err := Index(buf, 3)
	if err != nil {
		t.Fatal(err)
	}
	for n := 1; n <= 3; n++ {
		off, ok := table.Lookup(n)
		if !ok {
			t.Fatalf("object %d not indexed", n)
		}
		if !bytes.HasPrefix(buf[off:], []byte(fmt.Sprintf("%d 0 obj", n))) {
			t.Errorf("object %d offset %d wrong", n, off)
		}
	}
	if len(table.Free()) != 0 {
		t.Errorf("free = %v, want none", table.Free())
	}
}

func TestIndexRejectsOutOfRange(t *testing.T) {
	if _, err := Index(body(1, 5), 3); err == nil {
		t.Error("object beyond the allocator accepted")
	}
}

func TestIndexRejectsDuplicates(t *testing.T) {
	if _, err := Index(body(2, 2), 3); err == nil {
		t.Error("duplicate object accepted")
	}
}

func TestEncodeFreeListChain(t *testing.T) {
	// Objects 2 and 4 were reserved but never written.
	buf := body(1, 3, 5)
	table, err := Index(buf, 5)
	if err != nil {
		t.Fatal(err)
	}
	enc := string(table.Encode())

	lines := strings.Split(enc, "\n")
	if lines[0] != "xref" || lines[1] != "0 6" {
		t.Fatalf("section header = %q %q", lines[0], lines[1])
	}
	// Head links to the first free object, then 2 links to 4, and 4
	// terminates the chain. Generations follow from the allocator high
	// water mark.
	if lines[2] != "0000000002 65535 f " {
		t.Errorf("head entry = %q", lines[2])
	}
	if lines[4] != "0000000004 00007 f " {
		t.Errorf("entry 2 = %q", lines[4])
	}
	if lines[6] != "0000000000 00008 f " {
		t.Errorf("entry 4 = %q", lines[6])
	}
	for _, i := range []int{3, 5, 7} {
		if !strings.HasSuffix(lines[i], " 00000 n ") {
			t.Errorf("entry %d = %q, want in use", i-2, lines[i])
		}
		if len(lines[i]) != 19 {
			t.Errorf("entry %d is %d chars before newline, want 19", i-2, len(lines[i]))
		}
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	buf := body(1, 2, 4)
	table, err := Index(buf, 4)
	if err != nil {
		t.Fatal(err)
	}
	entries, err := Decode(table.Encode())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 5 {
		t.Fatalf("entries = %d, want 5", len(entries))
	}
	for _, n := range []int{1, 2, 4} {
		e := entries[n]
		if !e.InUse {
			t.Errorf("object %d decoded as free", n)
		}
		if off, _ := table.Lookup(n); off != e.Offset {
			t.Errorf("object %d offset %d != %d", n, e.Offset, off)
		}
	}
	if entries[3].InUse {
		t.Error("object 3 decoded as in use")
	}
	got := SortedObjects(entries)
	want := []int{1, 2, 4}
	if len(got) != len(want) {
		t.Fatalf("sorted = %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sorted = %v, want %v", got, want)
		}
	}
}
