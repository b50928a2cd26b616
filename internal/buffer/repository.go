// SPDX-License-Identifier: MIT
package buffer

// repository is the indexed history of completed blocks. It is owned by a
// single Buffer and relies on the buffer's lock.
type repository struct {
	blocks    map[int64]Block
	retention int   // 0 keeps every block
	highest   int64 // 0 when empty
	lowest    int64
}

func newRepository(retention int) *repository {
	return &repository{
		blocks:    make(map[int64]Block),
		retention: retention,
	}
}

// put stores b under its index and evicts anything that falls outside the
// retention window.
func (r *repository) put(b Block) {
	r.blocks[b.Index] = b
	if r.highest == 0 || b.Index > r.highest {
		r.highest = b.Index
	}
	if r.lowest == 0 || b.Index < r.lowest {
		r.lowest = b.Index
	}

	if r.retention <= 0 {
		return
	}
	floor := r.highest - int64(r.retention) + 1
	for r.lowest < floor {
		delete(r.blocks, r.lowest)
		r.lowest++
	}
}

func (r *repository) get(index int64) (Block, bool) {
	b, ok := r.blocks[index]
	return b, ok
}

func (r *repository) len() int {
	return len(r.blocks)
}

func (r *repository) reset() {
	clear(r.blocks)
	r.highest = 0
	r.lowest = 0
}
