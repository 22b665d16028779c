// Copyright Consensys Software Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with
// the License. You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on
// an "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the License for the
// specific language governing permissions and limitations under the License.
//
// SPDX-License-Identifier: Apache-2.0
package gem

import (
	"fmt"
	"sort"
)

// IndexKey represents any entry of a multiindex: a free index, a fixed
// (integer) index, or a runtime-variable index.
type IndexKey interface {
	indexKey()
}

// Index is a free (summation) index with a known extent.  Two indices are the
// same index only if they are the same object; extent equality is not
// sufficient.  Every index receives a unique identifier on creation, which
// also determines the canonical ordering of free-index sets.
type Index struct {
	id     uint
	extent uint
	name   string
}

var indexCounter uint

// NewIndex creates a fresh free index with the given extent.
func NewIndex(extent uint) *Index {
	return NamedIndex("", extent)
}

// NamedIndex creates a fresh free index with a given name (for printing only)
// and extent.
func NamedIndex(name string, extent uint) *Index {
	indexCounter++
	return &Index{id: indexCounter, extent: extent, name: name}
}

// Extent returns the number of values this index ranges over.
func (p *Index) Extent() uint { return p.extent }

// Cmp returns the canonical ordering of two indices (creation order).
func (p *Index) Cmp(other *Index) int {
	switch {
	case p.id < other.id:
		return -1
	case p.id > other.id:
		return 1
	default:
		return 0
	}
}

func (p *Index) String() string {
	if p.name != "" {
		return p.name
	}
	//
	return fmt.Sprintf("i_%d", p.id)
}

func (p *Index) indexKey() {}

// FixedIndex is a multiindex entry bound to a constant offset.
type FixedIndex uint

func (p FixedIndex) indexKey() {}

// VariableIndex is a multiindex entry standing for a runtime value (e.g. a
// loop variable at the code-emission boundary).  It is identified by the
// expression it wraps, which must not have free indices of its own.
type VariableIndex struct {
	Expr Node
}

func (p VariableIndex) indexKey() {}

// ============================================================================
// Index sets
// ============================================================================

// IndexSet is a set of free indices, stored in canonical (creation) order
// without duplicates.  The merge and lookup algorithms assume this invariant
// and every operation preserves it.
type IndexSet []*Index

// NewIndexSet builds a set from the given indices, sorting and removing
// duplicates.
func NewIndexSet(indices ...*Index) IndexSet {
	set := make(IndexSet, len(indices))
	copy(set, indices)
	sort.Slice(set, func(i, j int) bool { return set[i].Cmp(set[j]) < 0 })
	// Remove duplicates
	n := 0

	for i, ith := range set {
		if i == 0 || ith.Cmp(set[i-1]) != 0 {
			set[n] = ith
			n++
		}
	}
	//
	return set[:n]
}

// Contains checks membership using binary search.
func (p IndexSet) Contains(index *Index) bool {
	i := sort.Search(len(p), func(i int) bool { return index.Cmp(p[i]) <= 0 })
	return i < len(p) && p[i].Cmp(index) == 0
}

// Union merges two sorted sets into a fresh sorted set.
func (p IndexSet) Union(other IndexSet) IndexSet {
	if len(other) == 0 {
		return p
	} else if len(p) == 0 {
		return other
	}
	//
	result := make(IndexSet, 0, len(p)+len(other))
	i, j := 0, 0
	//
	for i < len(p) && j < len(other) {
		c := p[i].Cmp(other[j])
		switch {
		case c < 0:
			result = append(result, p[i])
			i++
		case c > 0:
			result = append(result, other[j])
			j++
		default:
			result = append(result, p[i])
			i++
			j++
		}
	}
	//
	result = append(result, p[i:]...)
	result = append(result, other[j:]...)
	//
	return result
}

// Intersect returns the indices present in both sets.
func (p IndexSet) Intersect(other IndexSet) IndexSet {
	var result IndexSet
	//
	for _, ith := range p {
		if other.Contains(ith) {
			result = append(result, ith)
		}
	}
	//
	return result
}

// Difference returns the indices of this set not present in the other.
func (p IndexSet) Difference(other IndexSet) IndexSet {
	var result IndexSet
	//
	for _, ith := range p {
		if !other.Contains(ith) {
			result = append(result, ith)
		}
	}
	//
	return result
}

// ExtentProduct returns the product of the extents of all indices in this
// set.  The empty set yields one.
func (p IndexSet) ExtentProduct() uint64 {
	product := uint64(1)
	//
	for _, ith := range p {
		product *= uint64(ith.Extent())
	}
	//
	return product
}

// UnionFreeIndices computes the canonically ordered union of the free indices
// of the given nodes.
func UnionFreeIndices(nodes ...Node) IndexSet {
	var set IndexSet
	//
	for _, ith := range nodes {
		set = set.Union(ith.FreeIndices())
	}
	//
	return set
}
