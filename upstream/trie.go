package upstream

import "strings"

const segmentSeparator = '.'

// trie maps "."-delimited prefixes to values with longest-prefix lookup.
// It is built once and read concurrently afterwards.
type trie[V any] struct {
	root *trieNode[V]
}

type trieNode[V any] struct {
	children map[string]*trieNode[V]
	value    V
	set      bool
}

func newTrie[V any]() *trie[V] {
	return &trie[V]{root: &trieNode[V]{}}
}

// insert stores v under prefix. The empty prefix is the default value.
// Inserting the same prefix twice keeps the last value.
func (t *trie[V]) insert(prefix string, v V) {
	n := t.root
	if prefix != "" {
		for _, seg := range strings.Split(prefix, string(segmentSeparator)) {
			if n.children == nil {
				n.children = make(map[string]*trieNode[V])
			}
			child, ok := n.children[seg]
			if !ok {
				child = &trieNode[V]{}
				n.children[seg] = child
			}
			n = child
		}
	}
	n.value = v
	n.set = true
}

// longestPrefix returns the value of the longest inserted prefix of key,
// matching whole segments only.
func (t *trie[V]) longestPrefix(key string) (V, bool) {
	var (
		best  V
		found bool
	)
	n := t.root
	if n.set {
		best, found = n.value, true
	}

	rest := key
	for rest != "" && n.children != nil {
		seg := rest
		if i := strings.IndexByte(rest, segmentSeparator); i >= 0 {
			seg, rest = rest[:i], rest[i+1:]
		} else {
			rest = ""
		}

		child, ok := n.children[seg]
		if !ok {
			break
		}
		n = child
		if n.set {
			best, found = n.value, true
		}
	}
	return best, found
}

// walk calls fn for every stored prefix.
func (t *trie[V]) walk(fn func(prefix string, v V)) {
	var visit func(prefix string, n *trieNode[V])
	visit = func(prefix string, n *trieNode[V]) {
		if n.set {
			fn(prefix, n.value)
		}
		for seg, child := range n.children {
			next := seg
			if prefix != "" {
				next = prefix + string(segmentSeparator) + seg
			}
			visit(next, child)
		}
	}
	visit("", t.root)
}
