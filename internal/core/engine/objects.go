package engine

import (
	"sort"
	"time"

	"github.com/puzpuzpuz/xsync/v4"
)

// ObjectInfo describes a live file-like object weirds can be scoped to.
type ObjectInfo struct {
	ID         string    `json:"id"`
	Source     string    `json:"source,omitempty"`
	Registered time.Time `json:"registered"`
}

// ObjectResolver looks up objects referenced by object-scoped weirds.
type ObjectResolver interface {
	ResolveObject(id string) (ObjectInfo, bool)
}

// ObjectIndex is an in-memory ObjectResolver that the analysis pipeline
// keeps current as objects appear and go away.
type ObjectIndex struct {
	objects *xsync.Map[string, ObjectInfo]
}

// NewObjectIndex returns an empty index.
func NewObjectIndex() *ObjectIndex {
	return &ObjectIndex{objects: xsync.NewMap[string, ObjectInfo]()}
}

// Register adds or refreshes an object. The first registration time is
// kept on refresh.
func (x *ObjectIndex) Register(info ObjectInfo) bool {
	if info.ID == "" {
		return false
	}
	if info.Registered.IsZero() {
		info.Registered = time.Now().UTC()
	}
	x.objects.Compute(info.ID, func(old ObjectInfo, loaded bool) (ObjectInfo, xsync.ComputeOp) {
		if loaded {
			info.Registered = old.Registered
		}
		return info, xsync.UpdateOp
	})
	return true
}

// Forget removes an object and reports whether it was present.
func (x *ObjectIndex) Forget(id string) bool {
	_, loaded := x.objects.LoadAndDelete(id)
	return loaded
}

// ResolveObject implements ObjectResolver.
func (x *ObjectIndex) ResolveObject(id string) (ObjectInfo, bool) {
	if id == "" {
		return ObjectInfo{}, false
	}
	return x.objects.Load(id)
}

// Len returns the number of registered objects.
func (x *ObjectIndex) Len() int {
	return x.objects.Size()
}

// List returns registered objects ordered by ID.
func (x *ObjectIndex) List() []ObjectInfo {
	objects := make([]ObjectInfo, 0, x.objects.Size())
	x.objects.Range(func(_ string, info ObjectInfo) bool {
		objects = append(objects, info)
		return true
	})
	sort.Slice(objects, func(i, j int) bool { return objects[i].ID < objects[j].ID })
	return objects
}
