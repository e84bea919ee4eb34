package writer

// Allocator hands out indirect object numbers. Numbers start at 1 and
// only ever grow; a number, once reserved, belongs to its owner for the
// life of the build whether or not a body is eventually written for it.
type Allocator struct {
	next int
}

func newAllocator() *Allocator { return &Allocator{next: 1} }

// Next reserves and returns one object number.
func (a *Allocator) Next() int {
	n := a.next
	a.next++
	return n
}

// Reserve reserves n consecutive numbers and returns the first.
func (a *Allocator) Reserve(n int) int {
	first := a.next
	a.next += n
	return first
}

// Max returns the highest number handed out so far, zero when none.
func (a *Allocator) Max() int { return a.next - 1 }

// Peek returns the number Next would hand out without reserving it.
func (a *Allocator) Peek() int { return a.next }

// Well-known roles an id table tracks across stages. Stages that run
// early reserve numbers under a role; stages that run later reference
// them before the body exists.
const (
	roleCatalog     = "catalog"
	rolePageTree    = "pages"
	roleResources   = "resources"
	roleInfo        = "info"
	roleMetadata    = "metadata"
	roleOutputICC   = "icc"
	roleOutlines    = "outlines"
	roleNames       = "names"
	roleAcroForm    = "acroform"
	roleSigField    = "sigfield"
	roleSigValue    = "sigvalue"
	roleOCProps     = "ocproperties"
	roleIntent      = "outputintent"
	roleDestsTree   = "dests"
	roleJSTree      = "javascript"
	roleEFTree      = "embeddedfiles"
	roleEncryptDict = "encrypt"
)

// IDTable binds roles to reserved object numbers. Zero means the role
// was never reserved.
type IDTable map[string]int

func (t IDTable) set(role string, num int) { t[role] = num }
func (t IDTable) get(role string) int      { return t[role] }
func (t IDTable) has(role string) bool     { return t[role] != 0 }
