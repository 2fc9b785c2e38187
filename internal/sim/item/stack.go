package item

import (
	"maps"
	"slices"
)

// Stack is one inventory slot worth of an item. Two stacks with identical
// fields are still different stacks; callers track them by pointer or index.
type Stack struct {
	Item   string `json:"item"`
	Count  int    `json:"count"`
	Damage int    `json:"damage,omitempty"`

	Name     string            `json:"name,omitempty"`
	Lore     []string          `json:"lore,omitempty"`
	Enchants map[string]int    `json:"enchants,omitempty"`
	Meta     map[string]string `json:"meta,omitempty"`
}

func New(item string, count int) *Stack {
	return &Stack{Item: item, Count: count}
}

// Clone returns a deep copy that shares no slices or maps with s.
func (s *Stack) Clone() *Stack {
	if s == nil {
		return nil
	}
	cp := *s
	cp.Lore = slices.Clone(s.Lore)
	cp.Enchants = maps.Clone(s.Enchants)
	cp.Meta = maps.Clone(s.Meta)
	return &cp
}

// SimilarTo reports whether o can merge into s (same item and metadata,
// count ignored).
func (s *Stack) SimilarTo(o *Stack) bool {
	if s == nil || o == nil {
		return false
	}
	return s.Item == o.Item &&
		s.Damage == o.Damage &&
		s.Name == o.Name &&
		slices.Equal(s.Lore, o.Lore) &&
		maps.Equal(s.Enchants, o.Enchants) &&
		maps.Equal(s.Meta, o.Meta)
}

func (s *Stack) Empty() bool { return s == nil || s.Item == "" || s.Count <= 0 }

func CloneAll(stacks []*Stack) []*Stack {
	if stacks == nil {
		return nil
	}
	out := make([]*Stack, 0, len(stacks))
	for _, s := range stacks {
		out = append(out, s.Clone())
	}
	return out
}

// Total sums counts per item id, skipping empty stacks.
func Total(stacks []*Stack) map[string]int {
	out := map[string]int{}
	for _, s := range stacks {
		if s.Empty() {
			continue
		}
		out[s.Item] += s.Count
	}
	return out
}
