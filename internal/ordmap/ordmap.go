// Package ordmap implements an intrusive height-balanced ordered map.
// Nodes are allocated by the caller and linked into the tree; the map
// itself never allocates, so entries can live inside larger structures
// (process table entries, device preference records) without extra
// indirection.
package ordmap

// Node is one tree entry. Embed it or allocate it alongside the value it
// carries; the zero Node is ready for Insert. A Node must not be linked
// into more than one Map at a time.
type Node[T any] struct {
	parent, left, right *Node[T]

	// balance is height(right) - height(left), in {-1, 0, +1} at rest
	// and touching ±2 only inside rebalancing.
	balance int8

	Value T
}

// Map is an ordered map over caller-owned nodes. The comparator defines
// a total order over values; two values comparing equal are the same key.
type Map[T any] struct {
	root *Node[T]
	cmp  func(a, b T) int
	size int
}

func New[T any](cmp func(a, b T) int) *Map[T] {
	return &Map[T]{cmp: cmp}
}

func (m *Map[T]) Len() int { return m.size }

// Insert links n into the tree. If an equal value is already present the
// tree is unchanged and the existing node is returned with false.
func (m *Map[T]) Insert(n *Node[T]) (*Node[T], bool) {
	if m.root == nil {
		n.parent, n.left, n.right, n.balance = nil, nil, nil, 0
		m.root = n
		m.size++
		return n, true
	}

	cur := m.root
	for {
		c := m.cmp(n.Value, cur.Value)
		if c == 0 {
			return cur, false
		}
		if c < 0 {
			if cur.left == nil {
				cur.left = n
				break
			}
			cur = cur.left
		} else {
			if cur.right == nil {
				cur.right = n
				break
			}
			cur = cur.right
		}
	}
	n.parent, n.left, n.right, n.balance = cur, nil, nil, 0
	m.size++

	// Retrace: stop at the first ancestor whose subtree height did not
	// change, or after one rebalancing rotation.
	child := n
	for p := n.parent; p != nil; p = child.parent {
		if child == p.left {
			p.balance--
		} else {
			p.balance++
		}
		switch p.balance {
		case 0:
			return n, true
		case -2:
			m.fixLeftHeavy(p)
			return n, true
		case 2:
			m.fixRightHeavy(p)
			return n, true
		}
		child = p
	}
	return n, true
}

// Remove unlinks n. n must be a node currently held by this map.
func (m *Map[T]) Remove(n *Node[T]) {
	var (
		p        *Node[T]
		fromLeft bool
	)

	switch {
	case n.left == nil || n.right == nil:
		c := n.left
		if c == nil {
			c = n.right
		}
		p = n.parent
		fromLeft = p != nil && p.left == n
		m.replaceChild(p, n, c)

	case n.right.left == nil:
		// Successor is the right child: it inherits n's place, losing
		// height on its own right side.
		s := n.right
		s.left = n.left
		s.left.parent = s
		m.replaceChild(n.parent, n, s)
		s.balance = n.balance
		p = s
		fromLeft = false

	default:
		s := minNode(n.right)
		sp := s.parent
		sp.left = s.right
		if s.right != nil {
			s.right.parent = sp
		}
		s.left = n.left
		s.left.parent = s
		s.right = n.right
		s.right.parent = s
		m.replaceChild(n.parent, n, s)
		s.balance = n.balance
		p = sp
		fromLeft = true
	}

	// Retrace: stop at the first ancestor whose balance lands on ±1,
	// meaning its subtree height is unchanged.
	for p != nil {
		if fromLeft {
			p.balance++
		} else {
			p.balance--
		}
		pp := p.parent
		wasLeft := pp != nil && pp.left == p

		switch p.balance {
		case -1, 1:
			p = nil
			continue
		case 2:
			if _, shrank := m.fixRightHeavy(p); !shrank {
				p = nil
				continue
			}
		case -2:
			if _, shrank := m.fixLeftHeavy(p); !shrank {
				p = nil
				continue
			}
		}

		p = pp
		fromLeft = wasLeft
	}

	n.parent, n.left, n.right, n.balance = nil, nil, nil, 0
	m.size--
}

// Find returns the node whose value compares equal to probe, or nil.
func (m *Map[T]) Find(probe T) *Node[T] {
	cur := m.root
	for cur != nil {
		c := m.cmp(probe, cur.Value)
		if c == 0 {
			return cur
		}
		if c < 0 {
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	return nil
}

// LowerBound returns the first node whose value is >= probe, or nil.
func (m *Map[T]) LowerBound(probe T) *Node[T] {
	var best *Node[T]
	cur := m.root
	for cur != nil {
		if m.cmp(cur.Value, probe) >= 0 {
			best = cur
			cur = cur.left
		} else {
			cur = cur.right
		}
	}
	return best
}

func (m *Map[T]) Min() *Node[T] {
	if m.root == nil {
		return nil
	}
	return minNode(m.root)
}

func (m *Map[T]) Max() *Node[T] {
	cur := m.root
	if cur == nil {
		return nil
	}
	for cur.right != nil {
		cur = cur.right
	}
	return cur
}

// Next returns the in-order successor, or nil at the maximum.
func (n *Node[T]) Next() *Node[T] {
	if n.right != nil {
		return minNode(n.right)
	}
	cur := n
	for cur.parent != nil && cur.parent.right == cur {
		cur = cur.parent
	}
	return cur.parent
}

// Prev returns the in-order predecessor, or nil at the minimum.
func (n *Node[T]) Prev() *Node[T] {
	if n.left != nil {
		cur := n.left
		for cur.right != nil {
			cur = cur.right
		}
		return cur
	}
	cur := n
	for cur.parent != nil && cur.parent.left == cur {
		cur = cur.parent
	}
	return cur.parent
}

func minNode[T any](n *Node[T]) *Node[T] {
	for n.left != nil {
		n = n.left
	}
	return n
}

func (m *Map[T]) replaceChild(parent, old, repl *Node[T]) {
	switch {
	case parent == nil:
		m.root = repl
	case parent.left == old:
		parent.left = repl
	default:
		parent.right = repl
	}
	if repl != nil {
		repl.parent = parent
	}
}

func (m *Map[T]) rotateLeft(p *Node[T]) *Node[T] {
	pp := p.parent
	r := p.right
	p.right = r.left
	if r.left != nil {
		r.left.parent = p
	}
	r.left = p
	p.parent = r
	m.replaceChild(pp, p, r)
	return r
}

func (m *Map[T]) rotateRight(p *Node[T]) *Node[T] {
	pp := p.parent
	l := p.left
	p.left = l.right
	if l.right != nil {
		l.right.parent = p
	}
	l.right = p
	p.parent = l
	m.replaceChild(pp, p, l)
	return l
}

// fixRightHeavy restores a node whose balance reached +2. It reports the
// new subtree root and whether the subtree lost height, which only the
// removal retrace cares about.
func (m *Map[T]) fixRightHeavy(p *Node[T]) (*Node[T], bool) {
	r := p.right
	if r.balance >= 0 {
		sub := m.rotateLeft(p)
		if r.balance == 0 {
			p.balance = 1
			r.balance = -1
			return sub, false
		}
		p.balance = 0
		r.balance = 0
		return sub, true
	}

	l := r.left
	m.rotateRight(r)
	sub := m.rotateLeft(p)
	switch l.balance {
	case 1:
		p.balance = -1
		r.balance = 0
	case 0:
		p.balance = 0
		r.balance = 0
	default:
		p.balance = 0
		r.balance = 1
	}
	l.balance = 0
	return sub, true
}

// fixLeftHeavy mirrors fixRightHeavy for balance -2.
func (m *Map[T]) fixLeftHeavy(p *Node[T]) (*Node[T], bool) {
	l := p.left
	if l.balance <= 0 {
		sub := m.rotateRight(p)
		if l.balance == 0 {
			p.balance = -1
			l.balance = 1
			return sub, false
		}
		p.balance = 0
		l.balance = 0
		return sub, true
	}

	r := l.right
	m.rotateLeft(l)
	sub := m.rotateRight(p)
	switch r.balance {
	case -1:
		p.balance = 1
		l.balance = 0
	case 0:
		p.balance = 0
		l.balance = 0
	default:
		p.balance = 0
		l.balance = -1
	}
	r.balance = 0
	return sub, true
}
