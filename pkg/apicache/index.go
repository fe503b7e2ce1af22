package apicache

import (
	"maps"
	"slices"
)

// Index lists every live key, most recent first, and the keys filed under
// each group. A key is in at most one group and never twice in a list.
type Index struct {
	All    []string            `json:"all"`
	Groups map[string][]string `json:"groups"`
}

func newIndex() Index {
	return Index{
		All:    []string{},
		Groups: map[string][]string{},
	}
}

func (ix *Index) clone() Index {
	c := Index{
		All:    slices.Clone(ix.All),
		Groups: maps.Clone(ix.Groups),
	}
	if c.All == nil {
		c.All = []string{}
	}
	for name, keys := range c.Groups {
		c.Groups[name] = slices.Clone(keys)
	}
	return c
}

func (ix *Index) has(key string) bool {
	return slices.Contains(ix.All, key)
}

// record files key at the front of All and, if group is set, at the front
// of that group. A key that was already present moves. Reports whether the
// key is new.
func (ix *Index) record(key, group string) bool {
	existed := ix.remove(key)
	ix.All = slices.Insert(ix.All, 0, key)
	if group != "" {
		ix.Groups[group] = slices.Insert(ix.Groups[group], 0, key)
	}
	return !existed
}

// remove drops key from All and from every group, deleting groups left
// empty. Reports whether key was present.
func (ix *Index) remove(key string) bool {
	n := len(ix.All)
	ix.All = slices.DeleteFunc(ix.All, func(k string) bool { return k == key })
	for name, keys := range ix.Groups {
		keys = slices.DeleteFunc(keys, func(k string) bool { return k == key })
		if len(keys) == 0 {
			delete(ix.Groups, name)
		} else {
			ix.Groups[name] = keys
		}
	}
	return len(ix.All) != n
}
