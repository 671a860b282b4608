package rendergraph

// LoadAction is what a pass does with an attachment's contents when it begins.
type LoadAction int

const (
	LoadActionLoad LoadAction = iota
	LoadActionClear
)

// StoreAction is what a pass does with an attachment's contents when it ends.
type StoreAction int

const (
	StoreActionStore StoreAction = iota
	StoreActionDiscard
)

// Attachment is a compiled color or depth attachment.
type Attachment struct {
	Slot     int
	Resource Resource
	Load     LoadAction
	Store    StoreAction

	// ReadOnly is set for depth attachments bound for testing only.
	ReadOnly bool
}

// CompiledPass is a pass that survived culling, with its resolved resources.
type CompiledPass struct {
	Name  string
	Index int

	// Level is the dependency level. Passes of the same level do not depend on each other.
	Level int

	Reads  []Resource
	Colors []Attachment
	Depth  *Attachment

	record func(*RasterContext)
	reads  []TextureHandle
}

// Read returns the read resource with handle h.
func (p CompiledPass) Read(h TextureHandle) (Resource, bool) {
	for _, r := range p.Reads {
		if r.Handle == h {
			return r, true
		}
	}
	return Resource{}, false
}

// CompiledGraph is the executable form of a Graph.
type CompiledGraph struct {
	Frame  uint64
	Passes []CompiledPass

	// Transients are the graph-owned textures used by the surviving passes.
	Transients []Resource

	// Culled names the passes removed because nothing consumed their output.
	Culled []string
}

// Levels groups the compiled passes by dependency level, in level order.
func (c *CompiledGraph) Levels() [][]CompiledPass {
	var levels [][]CompiledPass
	for _, p := range c.Passes {
		for len(levels) <= p.Level {
			levels = append(levels, nil)
		}
		levels[p.Level] = append(levels[p.Level], p)
	}
	return levels
}

// Compile culls unused passes, assigns dependency levels and resolves attachment load and
// store actions.
//
// A pass survives when culling is disabled for it, when it writes an imported texture, or when a
// surviving later pass reads something it writes. Transient attachments are cleared on their
// first write and discarded when no later surviving pass reads them.
//
// Returns:
//   - *CompiledGraph: the compiled graph
func (g *Graph) Compile() *CompiledGraph {
	keep := make([]bool, len(g.passes))
	needed := make([]bool, len(g.resources))
	for i, r := range g.resources {
		needed[i] = r.Imported
	}
	for i := len(g.passes) - 1; i >= 0; i-- {
		p := g.passes[i]
		keep[i] = !p.cullable
		for _, w := range p.writes {
			if needed[w.index()] {
				keep[i] = true
			}
		}
		if !keep[i] {
			continue
		}
		for _, r := range p.reads {
			needed[r.index()] = true
		}
		if p.depth.IsValid() && p.depthRW&AccessRead != 0 {
			needed[p.depth.index()] = true
		}
	}

	out := &CompiledGraph{Frame: g.frame}
	lastWrite := make([]int, len(g.resources))
	lastRead := make([]int, len(g.resources))
	written := make([]bool, len(g.resources))
	used := make([]bool, len(g.resources))
	for i := range lastWrite {
		lastWrite[i], lastRead[i] = -1, -1
	}

	for i, p := range g.passes {
		if !keep[i] {
			out.Culled = append(out.Culled, p.name)
			continue
		}

		level := 0
		after := func(l int) {
			if l+1 > level {
				level = l + 1
			}
		}
		reads := p.reads
		if p.depth.IsValid() && p.depthRW == AccessRead {
			reads = append(reads[:len(reads):len(reads)], p.depth)
		}
		for _, r := range reads {
			after(lastWrite[r.index()])
		}
		for _, w := range p.writes {
			after(lastWrite[w.index()])
			after(lastRead[w.index()])
		}

		cp := CompiledPass{
			Name:   p.name,
			Index:  p.index,
			Level:  level,
			record: p.record,
			reads:  p.reads,
		}
		for _, r := range p.reads {
			cp.Reads = append(cp.Reads, g.resources[r.index()])
		}
		for slot, h := range p.colors {
			cp.Colors = append(cp.Colors, g.attachment(h, slot, written, i, keep))
		}
		if p.depth.IsValid() {
			a := g.attachment(p.depth, 0, written, i, keep)
			a.ReadOnly = p.depthRW&AccessWrite == 0
			if a.ReadOnly {
				a.Load = LoadActionLoad
			}
			cp.Depth = &a
		}

		for _, r := range reads {
			idx := r.index()
			used[idx] = true
			if level > lastRead[idx] {
				lastRead[idx] = level
			}
		}
		for _, w := range p.writes {
			idx := w.index()
			used[idx] = true
			written[idx] = true
			lastWrite[idx] = level
			lastRead[idx] = -1
		}
		out.Passes = append(out.Passes, cp)
	}

	for i, r := range g.resources {
		if used[i] && !r.Imported {
			out.Transients = append(out.Transients, r)
		}
	}
	return out
}

// attachment resolves the load and store actions of texture h bound by pass index passIdx.
func (g *Graph) attachment(h TextureHandle, slot int, written []bool, passIdx int, keep []bool) Attachment {
	res := g.resources[h.index()]
	a := Attachment{
		Slot:     slot,
		Resource: res,
		Load:     LoadActionLoad,
		Store:    StoreActionStore,
	}
	if res.Imported {
		return a
	}
	if !written[h.index()] {
		a.Load = LoadActionClear
	}
	if !g.readLater(h, passIdx, keep) {
		a.Store = StoreActionDiscard
	}
	return a
}

func (g *Graph) readLater(h TextureHandle, passIdx int, keep []bool) bool {
	for j := passIdx + 1; j < len(g.passes); j++ {
		if !keep[j] {
			continue
		}
		p := g.passes[j]
		for _, r := range p.reads {
			if r == h {
				return true
			}
		}
		if p.depth == h {
			return true
		}
		for _, c := range p.colors {
			if c == h {
				return true
			}
		}
	}
	return false
}
