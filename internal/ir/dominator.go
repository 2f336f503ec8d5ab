package ir

// DomTree is the immediate-dominator tree of one function, with
// preorder/postorder numbering over the tree for O(1) descendant tests.
// It is valid only for the CFG it was computed from; passes that mutate
// the CFG must drop it from the AnalysisCache.
type DomTree struct {
	Entry BlockID
	// Idom maps each reachable block to its immediate dominator. The
	// entry maps to itself.
	Idom map[BlockID]BlockID
	// Children is the dominator tree adjacency, deterministic order.
	Children map[BlockID][]BlockID

	pre  map[BlockID]uint32
	post map[BlockID]uint32
}

// Dominates reports whether a dominates b (reflexively).
func (d *DomTree) Dominates(a, b BlockID) bool {
	pa, oka := d.pre[a]
	pb, okb := d.pre[b]
	if !oka || !okb {
		return false
	}
	return pa <= pb && d.post[b] <= d.post[a]
}

// ComputeDominators builds the dominator tree of fn with the standard
// iterative algorithm over a reverse-postorder worklist.
func (c *Context) ComputeDominators(fn FuncID) *DomTree {
	f := c.Func(fn)
	if f == nil || !f.Entry.IsValid() {
		return &DomTree{}
	}

	// Reverse postorder over the CFG.
	rpo := c.reversePostorder(f)
	index := make(map[BlockID]int, len(rpo))
	for i, b := range rpo {
		index[b] = i
	}
	preds := make(map[BlockID][]BlockID, len(rpo))
	for _, b := range rpo {
		for _, s := range c.Successors(c.Block(b)) {
			if _, reachable := index[s]; reachable {
				preds[s] = append(preds[s], b)
			}
		}
	}

	idom := make(map[BlockID]BlockID, len(rpo))
	idom[f.Entry] = f.Entry

	intersect := func(a, b BlockID) BlockID {
		for a != b {
			for index[a] > index[b] {
				a = idom[a]
			}
			for index[b] > index[a] {
				b = idom[b]
			}
		}
		return a
	}

	changed := true
	for changed {
		changed = false
		for _, b := range rpo {
			if b == f.Entry {
				continue
			}
			var newIdom BlockID
			for _, p := range preds[b] {
				if _, processed := idom[p]; !processed {
					continue
				}
				if !newIdom.IsValid() {
					newIdom = p
				} else {
					newIdom = intersect(newIdom, p)
				}
			}
			if !newIdom.IsValid() {
				continue
			}
			if idom[b] != newIdom {
				idom[b] = newIdom
				changed = true
			}
		}
	}

	tree := &DomTree{
		Entry:    f.Entry,
		Idom:     idom,
		Children: make(map[BlockID][]BlockID),
		pre:      make(map[BlockID]uint32, len(rpo)),
		post:     make(map[BlockID]uint32, len(rpo)),
	}
	for _, b := range rpo {
		if b == f.Entry {
			continue
		}
		parent := idom[b]
		tree.Children[parent] = append(tree.Children[parent], b)
	}
	tree.number()
	return tree
}

// number assigns preorder/postorder indices with an explicit stack.
func (d *DomTree) number() {
	type frame struct {
		block BlockID
		child int
	}
	var counter uint32
	stack := []frame{{block: d.Entry}}
	d.pre[d.Entry] = counter
	counter++
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		kids := d.Children[top.block]
		if top.child < len(kids) {
			next := kids[top.child]
			top.child++
			d.pre[next] = counter
			counter++
			stack = append(stack, frame{block: next})
			continue
		}
		d.post[top.block] = counter
		counter++
		stack = stack[:len(stack)-1]
	}
}

// reversePostorder returns the reachable blocks of f in reverse postorder,
// computed with an explicit DFS stack.
func (c *Context) reversePostorder(f *Function) []BlockID {
	type frame struct {
		block BlockID
		next  int
	}
	seen := map[BlockID]bool{f.Entry: true}
	var post []BlockID
	stack := []frame{{block: f.Entry}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		succs := c.Successors(c.Block(top.block))
		if top.next < len(succs) {
			s := succs[top.next]
			top.next++
			if !seen[s] {
				seen[s] = true
				stack = append(stack, frame{block: s})
			}
			continue
		}
		post = append(post, top.block)
		stack = stack[:len(stack)-1]
	}
	for i, j := 0, len(post)-1; i < j; i, j = i+1, j-1 {
		post[i], post[j] = post[j], post[i]
	}
	return post
}

// AnalysisCache memoizes per-function analysis results. It is not kept
// incrementally valid: passes that mutate a CFG call Invalidate and the
// next user recomputes.
type AnalysisCache struct {
	domTrees map[FuncID]*DomTree
}

// NewAnalysisCache creates an empty cache.
func NewAnalysisCache() *AnalysisCache {
	return &AnalysisCache{domTrees: make(map[FuncID]*DomTree)}
}

// Dominators returns the cached dominator tree for fn, computing it on
// first request.
func (a *AnalysisCache) Dominators(c *Context, fn FuncID) *DomTree {
	if t, ok := a.domTrees[fn]; ok {
		return t
	}
	t := c.ComputeDominators(fn)
	a.domTrees[fn] = t
	return t
}

// Invalidate drops cached results for fn.
func (a *AnalysisCache) Invalidate(fn FuncID) {
	delete(a.domTrees, fn)
}
