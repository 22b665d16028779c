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
	"strconv"
	"strings"

	"github.com/consensys/go-gem/pkg/gem"
)

// Label classifies a sub-expression for refactorisation.
type Label uint8

const (
	// Atomic expressions need not be broken up into smaller parts.
	Atomic Label = iota
	// Compound expressions must be broken up into smaller parts.
	Compound
	// Other expressions are irrelevant to refactorisation.
	Other
)

// Classifier assigns a refactorisation label to an expression.  It must be
// total over every node kind.
type Classifier func(gem.Node) Label

// Monomial is a structured description of one contracted product term: the
// contraction of atomics[0] * ... * atomics[n] * rest over the sum indices.
// Atomics form a genuine multiset; a repeated factor costs once per
// occurrence.
type Monomial struct {
	SumIndices []*gem.Index
	Atomics    []gem.Node
	Rest       gem.Node
}

// msEntry is the canonical ordered representative of all monomials sharing a
// key (unordered sum-index set, unordered atomic multiset).
type msEntry struct {
	key        string
	idxKey     string
	sumIndices []*gem.Index
	atomics    []gem.Node
}

// MonomialSum represents a sum of monomials.  Monomials sharing both their
// sum-index set and their atomic multiset are merged by summing their rests,
// which is always valid by distributivity.  Insertion order is retained so
// reconstruction is deterministic.
type MonomialSum struct {
	// key -> accumulated rest
	rests map[string]gem.Node
	// insertion-ordered canonical representatives
	order []*msEntry
	index map[string]*msEntry
	// Argument indices rank candidate factors during optimisation; they are
	// configuration, not part of the mathematical content.
	argumentIndices gem.IndexSet
	hasArguments    bool
}

// NewMonomialSum constructs an empty sum of monomials.
func NewMonomialSum() *MonomialSum {
	return &MonomialSum{
		rests: make(map[string]gem.Node),
		index: make(map[string]*msEntry),
	}
}

// SetArgumentIndices attaches the argument-index set used to rank candidate
// factors.
func (p *MonomialSum) SetArgumentIndices(indices gem.IndexSet) {
	p.argumentIndices = indices
	p.hasArguments = true
}

// Len returns the number of distinct monomials.
func (p *MonomialSum) Len() uint {
	return uint(len(p.order))
}

// Add sums another monomial into this collection.
func (p *MonomialSum) Add(sumIndices []*gem.Index, atomics []gem.Node, rest gem.Node) {
	set := gem.NewIndexSet(sumIndices...)
	// Sum indices cannot have duplicates
	if len(set) != len(sumIndices) {
		panic(fmt.Sprintf("duplicate sum index in %v", sumIndices))
	}
	//
	var (
		idxKey = indexSetKey(set)
		key    = idxKey + "|" + atomicsKey(atomics)
	)
	//
	if existing, ok := p.rests[key]; ok {
		p.rests[key] = gem.NewSum(existing, rest)
	} else {
		p.rests[key] = rest
		entry := &msEntry{key, idxKey, slices.Clone(sumIndices), slices.Clone(atomics)}
		p.order = append(p.order, entry)
		p.index[key] = entry
	}
}

// Monomials iterates the distinct monomials in insertion order, with their
// canonical index and atomic orderings.
func (p *MonomialSum) Monomials() []Monomial {
	result := make([]Monomial, len(p.order))
	//
	for i, entry := range p.order {
		result[i] = Monomial{entry.sumIndices, entry.atomics, p.rests[entry.key]}
	}
	//
	return result
}

// SumMonomialSums sums several monomial collections.
func SumMonomialSums(args ...*MonomialSum) *MonomialSum {
	result := NewMonomialSum()
	//
	for _, arg := range args {
		for _, entry := range arg.order {
			result.Add(entry.sumIndices, entry.atomics, arg.rests[entry.key])
		}
	}
	//
	return result
}

// ProductMonomialSums multiplies several monomial collections, distributing
// products over sums.  Every combination of one monomial per operand yields
// one output monomial; all of them are materialised at once.
func ProductMonomialSums(args ...*MonomialSum) *MonomialSum {
	result := NewMonomialSum()
	productInto(result, args, nil, nil, gem.One)
	//
	return result
}

func productInto(result *MonomialSum, args []*MonomialSum, sumIndices []*gem.Index,
	atomics []gem.Node, rest gem.Node) {
	if len(args) == 0 {
		result.Add(sumIndices, atomics, rest)
		return
	}
	//
	for _, m := range args[0].Monomials() {
		productInto(result, args[1:],
			slices.Concat(sumIndices, m.SumIndices),
			slices.Concat(atomics, m.Atomics),
			gem.NewProduct(m.Rest, rest))
	}
}

// ArgumentIndicesExtent returns the product of extents of those free indices
// of a factor which are argument indices.
func (p *MonomialSum) ArgumentIndicesExtent(factor gem.Node) uint64 {
	if !p.hasArguments {
		panic("argument indices not initialised")
	}
	//
	return factor.FreeIndices().Intersect(p.argumentIndices).ExtentProduct()
}

// SumIndexGroup identifies one distinct contraction-index set of a monomial
// sum, with the canonical ordering it was first seen in.
type SumIndexGroup struct {
	Key     string
	Indices []*gem.Index
}

// AtomicPair pairs a contraction-index group with one atomic factor occurring
// under it.
type AtomicPair struct {
	Group  SumIndexGroup
	Atomic gem.Node
}

// UniqueSumIndices returns the distinct contraction-index sets of this
// monomial sum, in first-encountered order.
func (p *MonomialSum) UniqueSumIndices() []SumIndexGroup {
	var (
		seen   = make(map[string]bool)
		result []SumIndexGroup
	)
	//
	for _, entry := range p.order {
		if !seen[entry.idxKey] {
			seen[entry.idxKey] = true
			result = append(result, SumIndexGroup{entry.idxKey, entry.sumIndices})
		}
	}
	//
	return result
}

// ToExpression rebuilds a single expression from this monomial sum, using the
// associativity optimiser throughout to promote hoisting in subsequent code
// generation.  Insertion ordering makes the result deterministic.
func (p *MonomialSum) ToExpression() gem.Node {
	var (
		indexsums []gem.Node
		groupKeys []string
		groups    = make(map[string][]*msEntry)
	)
	// Group monomials according to their ordered sum indices
	for _, entry := range p.order {
		if len(entry.sumIndices) == 0 {
			indexsums = append(indexsums, FastSumFactorise(nil, append(slices.Clone(entry.atomics), p.rests[entry.key])))
			continue
		}
		//
		key := indexOrderKey(entry.sumIndices)
		if _, ok := groups[key]; !ok {
			groupKeys = append(groupKeys, key)
		}
		//
		groups[key] = append(groups[key], entry)
	}
	// Form a contraction from each monomial group
	for _, key := range groupKeys {
		var (
			entries    = groups[key]
			sumIndices = entries[0].sumIndices
		)
		//
		if len(entries) == 1 {
			// Just one term, no summation to associate
			factors := append(slices.Clone(entries[0].atomics), p.rests[entries[0].key])
			indexsums = append(indexsums, FastSumFactorise(sumIndices, factors))
		} else {
			// Form products for each monomial
			products := make([]gem.Node, len(entries))
			//
			for i, entry := range entries {
				products[i], _ = AssociateProduct(append(slices.Clone(entry.atomics), p.rests[entry.key]))
			}
			//
			sum, _ := AssociateSum(products)
			indexsums = append(indexsums, gem.NewIndexSum(sum, sumIndices))
		}
	}
	//
	result, _ := AssociateSum(indexsums)
	//
	return result
}

// ============================================================================
// Monomial collection
// ============================================================================

// FactorisationError indicates that an expression classified as compound
// could not be broken up into two or more summands.  The classifier's
// contract is violated for that expression; callers may catch this and fall
// back to a coarser strategy.
type FactorisationError struct {
	Expression gem.Node
}

// Error implementation for the error interface.
func (p *FactorisationError) Error() string {
	return fmt.Sprintf("cannot break up %s into summands", p.Expression)
}

// CollectMonomials refactorises expressions into sum-of-products form, using
// distributivity rules (i.e. a*(b+c) -> a*b + a*c).  Expansion proceeds until
// every expression the classifier labels compound is broken up.  Returns a
// FactorisationError when some compound expression resists expansion.
func CollectMonomials(expressions []gem.Node, classifier Classifier) ([]*MonomialSum, error) {
	// Get component tensors out of the way
	expressions = RemoveComponentTensors(expressions)
	// Get list tensors out of the way: a list tensor cannot be factorised
	// symbolically, so compound accesses into one force unrolling of the
	// indices involved.
	mustUnroll := make(map[*gem.Index]bool)
	//
	for _, n := range gem.Traversal(expressions) {
		if indexed, ok := n.(*gem.Indexed); ok {
			if _, isList := indexed.Child.(*gem.ListTensor); isList && classifier(n) == Compound {
				for _, key := range indexed.MultiIndex {
					if index, ok := key.(*gem.Index); ok {
						mustUnroll[index] = true
					}
				}
			}
		}
	}
	//
	if len(mustUnroll) > 0 {
		expressions = UnrollIndexSum(expressions, func(index *gem.Index) bool { return mustUnroll[index] })
		expressions = RemoveComponentTensors(expressions)
	}
	// Finally, refactorise expressions
	collector := &monomialCollector{classifier, make(map[gem.Node]*MonomialSum)}
	result := make([]*MonomialSum, len(expressions))
	//
	for i, expression := range expressions {
		var err error
		//
		if result[i], err = collector.collect(expression); err != nil {
			return nil, err
		}
	}
	//
	return result, nil
}

// monomialCollector memoises monomial collection over a shared DAG.
type monomialCollector struct {
	classifier Classifier
	memo       map[gem.Node]*MonomialSum
}

func (p *monomialCollector) collect(expression gem.Node) (*MonomialSum, error) {
	if cached, ok := p.memo[expression]; ok {
		return cached, nil
	}
	// Phase 1: collect and categorise product terms, breaking up compounds
	// only.
	stopAt := func(n gem.Node) bool {
		return p.classifier(n) != Compound
	}
	//
	commonIndices, terms := TraverseProduct(expression, stopAt)
	//
	var commonAtomics, commonOthers, compounds []gem.Node
	//
	for _, term := range terms {
		switch p.classifier(term) {
		case Atomic:
			commonAtomics = append(commonAtomics, term)
		case Compound:
			compounds = append(compounds, term)
		case Other:
			commonOthers = append(commonOthers, term)
		default:
			panic("classifier returned illegal label")
		}
	}
	// Phase 2: attempt to break up compound terms into summands
	sums := make([]*MonomialSum, len(compounds))
	//
	for i, compound := range compounds {
		summands := TraverseSum(compound, stopAt)
		if len(summands) <= 1 {
			// Compound term is not an addition; avoid infinite recursion and
			// fail gracefully.
			return nil, &FactorisationError{compound}
		}
		//
		collected := make([]*MonomialSum, len(summands))
		//
		for j, summand := range summands {
			var err error
			//
			if collected[j], err = p.collect(summand); err != nil {
				return nil, err
			}
		}
		//
		sums[i] = SumMonomialSums(collected...)
	}
	// Phase 3: expand the product of the sums of products.  All the monomials
	// of all the sums of products must fit into memory at once.
	result := NewMonomialSum()
	//
	for _, m := range ProductMonomialSums(sums...).Monomials() {
		var (
			allIndices = slices.Concat(commonIndices, m.SumIndices)
			atomics    = slices.Concat(commonAtomics, m.Atomics)
			// All free indices that appear in atomic terms
			atomicIndices = gem.UnionFreeIndices(atomics...)
			sumIndices    []*gem.Index
			restIndices   []*gem.Index
		)
		// Sum indices absent from every atomic cannot interact with later
		// factor selection, so they are contracted into the rest immediately.
		for _, index := range allIndices {
			if atomicIndices.Contains(index) {
				sumIndices = append(sumIndices, index)
			} else {
				restIndices = append(restIndices, index)
			}
		}
		//
		rest := SumFactorise(restIndices, append(slices.Clone(commonOthers), m.Rest))
		result.Add(sumIndices, atomics, rest)
	}
	//
	p.memo[expression] = result
	//
	return result, nil
}

// ============================================================================
// Keys
// ============================================================================

// atomicsKey renders an atomic multiset into a canonical map key.  Node
// identifiers are sorted, so ordering does not matter while multiplicity
// does.
func atomicsKey(atomics []gem.Node) string {
	ords := make([]uint, len(atomics))
	for i, atomic := range atomics {
		ords[i] = gem.Ord(atomic)
	}
	//
	slices.Sort(ords)
	//
	var builder strings.Builder
	//
	for _, ord := range ords {
		builder.WriteString(strconv.FormatUint(uint64(ord), 10))
		builder.WriteString(",")
	}
	//
	return builder.String()
}

// indexOrderKey renders an ordered index list into a map key, sensitive to
// ordering (unlike indexSetKey).
func indexOrderKey(indices []*gem.Index) string {
	var builder strings.Builder
	//
	for _, index := range indices {
		builder.WriteString(index.String())
		builder.WriteString(",")
	}
	//
	return builder.String()
}
