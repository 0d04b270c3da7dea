package vm

// Interner deduplicates string objects by content so that equal strings
// are always the same pointer within one heap. The table holds weak
// references: the sweep removes entries whose object was not marked.
type Interner struct {
	entries map[string]*ObjString
}

func NewInterner() *Interner {
	return &Interner{entries: make(map[string]*ObjString)}
}

func (in *Interner) Lookup(s string) *ObjString {
	return in.entries[s]
}

func (in *Interner) Insert(obj *ObjString) {
	in.entries[obj.Chars] = obj
}

// removeUnmarked drops entries about to be swept. Must run before the
// sweep clears mark bits.
func (in *Interner) removeUnmarked() {
	for content, obj := range in.entries {
		if !obj.marked {
			delete(in.entries, content)
		}
	}
}

// Count reports the number of distinct interned strings.
func (in *Interner) Count() int {
	return len(in.entries)
}
