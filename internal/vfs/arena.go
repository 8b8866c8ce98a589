package vfs

import "sync"

// Arena owns every inode. Ids are assigned from RootID+1 upwards and are
// never reused; inodes are never removed.
type Arena struct {
	mu     sync.RWMutex
	nextID InodeID
	byID   map[InodeID]*Inode
	order  []*Inode
}

func NewArena() *Arena {
	root := &Inode{
		ID:   RootID,
		Kind: KindDirectory,
		FS:   FSNone,
	}

	return &Arena{
		nextID: RootID + 1,
		byID:   map[InodeID]*Inode{RootID: root},
		order:  []*Inode{root},
	}
}

func (a *Arena) Allocate(kind InodeKind, fs FSKind) Inode {
	a.mu.Lock()
	defer a.mu.Unlock()

	node := &Inode{
		ID:   a.nextID,
		Kind: kind,
		FS:   fs,
	}
	a.nextID++

	a.byID[node.ID] = node
	a.order = append(a.order, node)

	return *node
}

func (a *Arena) Get(id InodeID) (Inode, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	node, ok := a.byID[id]
	if !ok {
		return Inode{}, false
	}

	return *node, true
}

func (a *Arena) markMountPoint(id InodeID, fs FSKind) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if node, ok := a.byID[id]; ok {
		node.FS = fs
		node.MountPoint = true
	}
}

// Len returns the number of inodes, root included.
func (a *Arena) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	return len(a.order)
}

// All returns every inode in allocation order.
func (a *Arena) All() []Inode {
	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]Inode, 0, len(a.order))
	for _, node := range a.order {
		out = append(out, *node)
	}

	return out
}
