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
package opt

import (
	"fmt"
	"slices"
	"sort"

	"github.com/consensys/go-gem/pkg/cover"
	"github.com/consensys/go-gem/pkg/gem"
)

// coverWeightBase dominates any argument-index extent, so the cover primarily
// minimises the number of factors pulled out and only breaks ties by extent.
const coverWeightBase = 10000000

// FindOptimalAtomics determines which atomic factors to pull out of the
// monomials contracted over a given index group.  The chosen factors form a
// minimum-weight cover: every monomial of the group must contain at least one
// of them, preferring fewer factors and, among those, factors with larger
// argument-index extent (they save more redundant work per use).  Returns the
// chosen and the remaining atomics, each sorted by decreasing argument-index
// extent.
func (p *MonomialSum) FindOptimalAtomics(group SumIndexGroup) ([]gem.Node, []gem.Node) {
	var (
		atomics     []gem.Node
		atomicIndex = make(map[gem.Node]uint)
		connections [][]uint
	)
	//
	for _, entry := range p.order {
		if entry.idxKey != group.Key {
			continue
		}
		//
		connection := make([]uint, len(entry.atomics))
		//
		for i, atomic := range entry.atomics {
			if _, ok := atomicIndex[atomic]; !ok {
				atomicIndex[atomic] = uint(len(atomics))
				atomics = append(atomics, atomic)
			}
			//
			connection[i] = atomicIndex[atomic]
		}
		//
		connections = append(connections, connection)
	}
	// Trivial cases need no search.
	if len(atomics) == 0 {
		return nil, nil
	} else if len(atomics) == 1 {
		return atomics, nil
	}
	//
	problem := cover.NewProblem(uint(len(atomics)))
	//
	for i, atomic := range atomics {
		problem.SetWeight(uint(i), coverWeightBase-int64(p.ArgumentIndicesExtent(atomic)))
	}
	//
	for _, connection := range connections {
		problem.AddConstraint(connection...)
	}
	//
	selected, err := problem.Solve()
	if err != nil {
		// Selecting every atomic is always a valid cover, so failure here is
		// an internal invariant violation.
		panic(fmt.Sprintf("factor cover failed: %v", err))
	}
	//
	var optimal, other []gem.Node
	//
	for i, atomic := range atomics {
		if selected[i] {
			optimal = append(optimal, atomic)
		} else {
			other = append(other, atomic)
		}
	}
	//
	sortByExtent := func(nodes []gem.Node) {
		sort.SliceStable(nodes, func(i, j int) bool {
			return p.ArgumentIndicesExtent(nodes[i]) > p.ArgumentIndicesExtent(nodes[j])
		})
	}
	//
	sortByExtent(optimal)
	sortByExtent(other)
	//
	return optimal, other
}

// FactoriseAtomics groups monomials by a priority-ordered list of factors and
// factors each group, recursively optimising the residual sums.  Every
// monomial is assigned to the first pair whose index group matches and whose
// atomic the monomial contains; monomials matching no pair pass through
// unchanged.
func (p *MonomialSum) FactoriseAtomics(pairs []AtomicPair) *MonomialSum {
	if len(pairs) == 0 || len(p.order) < 2 {
		return p
	}
	//
	result := NewMonomialSum()
	result.argumentIndices = p.argumentIndices
	result.hasArguments = p.hasArguments
	// Group monomials by their first matching pair.
	var (
		matched = make(map[int][]*msEntry)
		order   []int
		grouped uint
	)
	//
	for _, entry := range p.order {
		pair := matchPair(entry, pairs)
		//
		if pair < 0 {
			// No factor applies; pass through unchanged.
			result.Add(entry.sumIndices, entry.atomics, p.rests[entry.key])
			continue
		}
		//
		if _, ok := matched[pair]; !ok {
			order = append(order, pair)
		}
		//
		matched[pair] = append(matched[pair], entry)
		grouped++
	}
	// No monomial may be dropped.
	if grouped+result.Len() != p.Len() {
		panic("monomials lost during factorisation grouping")
	}
	//
	for _, i := range order {
		var (
			pair    = pairs[i]
			entries = matched[i]
		)
		//
		if len(entries) == 1 {
			// Nothing to factor out of a single monomial.
			result.Add(pair.Group.Indices, entries[0].atomics, p.rests[entries[0].key])
			continue
		}
		// Factor the common atomic out of the group, collecting the residuals
		// into a sub-problem at this contraction level only.
		sub := NewMonomialSum()
		sub.argumentIndices = p.argumentIndices
		sub.hasArguments = p.hasArguments
		//
		for _, entry := range entries {
			residual := slices.Clone(entry.atomics)
			j := slices.Index(residual, pair.Atomic)
			residual = slices.Delete(residual, j, j+1)
			//
			sub.Add(nil, residual, p.rests[entry.key])
		}
		//
		sub = sub.Optimise()
		//
		switch {
		case sub.Len() == 0:
			panic("factorised residual sum is empty")
		case sub.Len() == 1:
			// Residual is a single product: splice its parts in directly,
			// avoiding an unnecessary nested contraction.
			entry := sub.order[0]
			atomics := append(slices.Clone(entry.atomics), pair.Atomic)
			result.Add(pair.Group.Indices, atomics, sub.rests[entry.key])
		default:
			// Residual is a sum: materialise it and re-classify against the
			// argument indices.
			var (
				node    = sub.ToExpression()
				atomics = []gem.Node{pair.Atomic}
				rest    = gem.One
			)
			//
			if len(p.argumentIndices.Intersect(node.FreeIndices())) > 0 {
				atomics = append(atomics, node)
			} else {
				rest = node
			}
			//
			result.Add(pair.Group.Indices, atomics, rest)
		}
	}
	//
	return result
}

// matchPair returns the position of the first pair matching a monomial, or -1
// when none does.
func matchPair(entry *msEntry, pairs []AtomicPair) int {
	for i, pair := range pairs {
		if entry.idxKey == pair.Group.Key && slices.Contains(entry.atomics, pair.Atomic) {
			return i
		}
	}
	//
	return -1
}

// Optimise selects the optimal atomic factors of every contraction-index
// group and factorises accordingly.  The factorisation is O(2^N)-ish in the
// number of selected factors, bounded in practice by their small count.
func (p *MonomialSum) Optimise() *MonomialSum {
	var pairs []AtomicPair
	//
	for _, group := range p.UniqueSumIndices() {
		optimal, _ := p.FindOptimalAtomics(group)
		//
		for _, atomic := range optimal {
			pairs = append(pairs, AtomicPair{group, atomic})
		}
	}
	//
	return p.FactoriseAtomics(pairs)
}
