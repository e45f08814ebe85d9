// Package diff computes structural differences between JSON value trees.
//
// Trees are the values produced by encoding/json when decoding into an
// interface{}: nil, bool, float64, string, []interface{} and
// map[string]interface{}. Paths are dot separated; array elements are
// addressed by index and the root is the empty path.
package diff

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
)

type Kind int

const (
	Added Kind = iota
	Changed
	Deleted
)

func (k Kind) String() string {
	switch k {
	case Added:
		return "added"
	case Changed:
		return "changed"
	case Deleted:
		return "deleted"
	default:
		return "unknown"
	}
}

type Change struct {
	Kind Kind
	Old  interface{}
	New  interface{}
}

// Changes maps paths to the change found there.
type Changes map[string]Change

type valueKind int

const (
	kindNull valueKind = iota
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
	kindFunc
	kindOther
)

func kindOf(v interface{}) valueKind {
	switch v.(type) {
	case nil:
		return kindNull
	case bool:
		return kindBool
	case float64, json.Number, int, int64:
		return kindNumber
	case string:
		return kindString
	case []interface{}:
		return kindArray
	case map[string]interface{}:
		return kindObject
	}
	if reflect.ValueOf(v).Kind() == reflect.Func {
		return kindFunc
	}
	return kindOther
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Diff returns the changes that turn a into b. A key whose value is nil
// counts as absent. Values of different kinds are reported as Changed
// without descending further. Functions always compare equal.
func Diff(a, b interface{}) Changes {
	changes := Changes{}
	walk(changes, "", a, b)
	return changes
}

func walk(changes Changes, path string, a, b interface{}) {
	ka, kb := kindOf(a), kindOf(b)
	if ka == kindFunc && kb == kindFunc {
		return
	}
	if ka != kb {
		changes[path] = Change{Kind: Changed, Old: a, New: b}
		return
	}
	switch ka {
	case kindNull:
	case kindObject:
		am, bm := a.(map[string]interface{}), b.(map[string]interface{})
		keys := make([]string, 0, len(am)+len(bm))
		for k := range am {
			keys = append(keys, k)
		}
		for k := range bm {
			if _, ok := am[k]; !ok {
				keys = append(keys, k)
			}
		}
		for _, k := range keys {
			child(changes, join(path, k), am[k], bm[k])
		}
	case kindArray:
		as, bs := a.([]interface{}), b.([]interface{})
		n := len(as)
		if len(bs) > n {
			n = len(bs)
		}
		for i := 0; i < n; i++ {
			var av, bv interface{}
			if i < len(as) {
				av = as[i]
			}
			if i < len(bs) {
				bv = bs[i]
			}
			child(changes, join(path, strconv.Itoa(i)), av, bv)
		}
	case kindOther:
		if !reflect.DeepEqual(a, b) {
			changes[path] = Change{Kind: Changed, Old: a, New: b}
		}
	default:
		if a != b {
			changes[path] = Change{Kind: Changed, Old: a, New: b}
		}
	}
}

func child(changes Changes, path string, a, b interface{}) {
	switch {
	case a == nil && b == nil:
	case a == nil:
		changes[path] = Change{Kind: Added, New: b}
	case b == nil:
		changes[path] = Change{Kind: Deleted, Old: a}
	default:
		walk(changes, path, a, b)
	}
}

func (c Changes) Empty() bool {
	return len(c) == 0
}

// Paths returns the changed paths in sorted order.
func (c Changes) Paths() []string {
	paths := make([]string, 0, len(c))
	for p := range c {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Has reports whether path or anything below it changed.
func (c Changes) Has(path string) bool {
	for p := range c {
		if p == path || path == "" || strings.HasPrefix(p, path+".") {
			return true
		}
	}
	return false
}

// ChildKeys returns the distinct path segments directly below prefix that
// carry a change of one of the selected kinds. Numeric segments sort
// numerically.
func (c Changes) ChildKeys(prefix string, added, changed, deleted bool) []string {
	seen := map[string]bool{}
	for p, ch := range c {
		switch ch.Kind {
		case Added:
			if !added {
				continue
			}
		case Changed:
			if !changed {
				continue
			}
		case Deleted:
			if !deleted {
				continue
			}
		}
		rest := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+".") {
				continue
			}
			rest = p[len(prefix)+1:]
		}
		if rest == "" {
			continue
		}
		if i := strings.IndexByte(rest, '.'); i >= 0 {
			rest = rest[:i]
		}
		seen[rest] = true
	}
	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ni, erri := strconv.Atoi(keys[i])
		nj, errj := strconv.Atoi(keys[j])
		if erri == nil && errj == nil {
			return ni < nj
		}
		return keys[i] < keys[j]
	})
	return keys
}

type node struct {
	change   *Change
	children map[string]*node
}

// Apply returns a copy of tree with changes applied. Applying Diff(a, b)
// to a yields a tree equal to b, provided arrays hold no nil elements.
func Apply(changes Changes, tree interface{}) interface{} {
	root := &node{}
	for p, ch := range changes {
		ch := ch
		n := root
		if p != "" {
			for _, seg := range strings.Split(p, ".") {
				if n.children == nil {
					n.children = map[string]*node{}
				}
				next, ok := n.children[seg]
				if !ok {
					next = &node{}
					n.children[seg] = next
				}
				n = next
			}
		}
		n.change = &ch
	}
	out, _ := apply(Copy(tree), root)
	return out
}

func apply(v interface{}, n *node) (interface{}, bool) {
	if n.change != nil {
		if n.change.Kind == Deleted {
			return nil, false
		}
		return Copy(n.change.New), true
	}
	if len(n.children) == 0 {
		return v, true
	}
	switch t := v.(type) {
	case map[string]interface{}:
		for seg, c := range n.children {
			nv, ok := apply(t[seg], c)
			if ok {
				t[seg] = nv
			} else {
				delete(t, seg)
			}
		}
		return t, true
	case []interface{}:
		removed := map[int]bool{}
		for seg, c := range n.children {
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 {
				continue
			}
			for len(t) <= i {
				t = append(t, nil)
			}
			nv, ok := apply(t[i], c)
			t[i] = nv
			if !ok {
				removed[i] = true
			}
		}
		for len(t) > 0 && removed[len(t)-1] {
			t = t[:len(t)-1]
		}
		return t, true
	}
	return v, true
}

// Copy deep-copies a tree.
func Copy(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		m := make(map[string]interface{}, len(t))
		for k, e := range t {
			m[k] = Copy(e)
		}
		return m
	case []interface{}:
		s := make([]interface{}, len(t))
		for i, e := range t {
			s[i] = Copy(e)
		}
		return s
	default:
		return v
	}
}

// ToTree converts a JSON serialisable value into a tree.
func ToTree(v interface{}) (interface{}, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %v", err)
	}
	var tree interface{}
	if err := json.Unmarshal(b, &tree); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tree: %v", err)
	}
	return tree, nil
}

// FromTree decodes a tree into out.
func FromTree(tree interface{}, out interface{}) error {
	b, err := json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("failed to marshal tree: %v", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return fmt.Errorf("failed to unmarshal value: %v", err)
	}
	return nil
}

// Values diffs two JSON serialisable values.
func Values(a, b interface{}) (Changes, error) {
	ta, err := ToTree(a)
	if err != nil {
		return nil, err
	}
	tb, err := ToTree(b)
	if err != nil {
		return nil, err
	}
	return Diff(ta, tb), nil
}
