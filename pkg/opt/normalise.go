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

// Package opt implements DAG-preserving rewrites over tensor-algebra
// expressions: normalisation passes, operation-count-minimising tree
// construction, a sum-factorisation search over contraction orderings, and a
// monomial refactorisation engine backed by an exact factor-cover search.
package opt

import (
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/consensys/go-gem/pkg/gem"
)

// RoundLiterals rounds the values of every constant array in an expression to
// the nearest one-decimal value, within a given tolerance.  This mirrors the
// rounding applied by reference low-level code formatters, so optimised
// output matches their numeric text.
func RoundLiterals(expression gem.Node, epsilon float64) gem.Node {
	mapper := gem.NewMemoizer(func(n gem.Node, mapper *gem.Memoizer) gem.Node {
		if literal, ok := n.(*gem.Literal); ok {
			return gem.NewLiteral(literal.Value().Round(epsilon))
		}
		//
		return gem.ReuseIfUntouched(n, mapper)
	})
	//
	return mapper.Apply(expression)
}

// ReplaceDivision rewrites every division a/b as a*(1/b), so downstream
// passes only reason about products.
func ReplaceDivision(expressions []gem.Node) []gem.Node {
	mapper := gem.NewMemoizer(func(n gem.Node, mapper *gem.Memoizer) gem.Node {
		if division, ok := n.(*gem.Division); ok {
			one := gem.One
			return gem.NewProduct(mapper.Apply(division.X), gem.NewDivision(one, mapper.Apply(division.Y)))
		}
		//
		return gem.ReuseIfUntouched(n, mapper)
	})
	//
	result := make([]gem.Node, len(expressions))
	for i, expression := range expressions {
		result[i] = mapper.Apply(expression)
	}
	//
	return result
}

// ============================================================================
// Index substitution
// ============================================================================

// IndexPair is a single substitution rule: a free index to replace, and the
// index to replace it with.
type IndexPair struct {
	From *gem.Index
	To   gem.IndexKey
}

// Subst is an ordered sequence of substitution rules.  Canonical substitutions
// are sorted by the replaced index, so that structurally equal substitutions
// render identical memo keys.
type Subst []IndexPair

// Lookup resolves a multiindex entry under this substitution, returning the
// entry itself when no rule applies.
func (p Subst) Lookup(key gem.IndexKey) gem.IndexKey {
	if index, ok := key.(*gem.Index); ok {
		for _, pair := range p {
			if pair.From == index {
				return pair.To
			}
		}
	}
	//
	return key
}

// Filter discards rules irrelevant to a given free-index set.  Used before
// recursing both as an optimisation and to keep memo keys small.
func (p Subst) Filter(free gem.IndexSet) Subst {
	filtered := make(Subst, 0, len(p))
	//
	for _, pair := range p {
		if free.Contains(pair.From) {
			filtered = append(filtered, pair)
		}
	}
	//
	return filtered
}

// canonical sorts the rules of this substitution by replaced index.
func (p Subst) canonical() Subst {
	sort.Slice(p, func(i, j int) bool { return p[i].From.Cmp(p[j].From) < 0 })
	return p
}

// substKey renders a substitution into a canonical memo key.
func substKey(subst Subst) string {
	var builder strings.Builder
	//
	for _, pair := range subst {
		builder.WriteString(pair.From.String())
		builder.WriteString("->")
		builder.WriteString(indexKeyString(pair.To))
		builder.WriteString(";")
	}
	//
	return builder.String()
}

func indexKeyString(key gem.IndexKey) string {
	switch k := key.(type) {
	case *gem.Index:
		return k.String()
	case gem.FixedIndex:
		return "#" + strconv.FormatUint(uint64(k), 10)
	case gem.VariableIndex:
		return "@" + strconv.FormatUint(uint64(gem.Ord(k.Expr)), 10)
	default:
		panic("unknown index kind")
	}
}

// replaceIndices rewrites occurrences of free indices according to a pending
// substitution.  Indexing into a component tensor inlines the component
// tensor, merging its bindings into the substitution; leaving the indirection
// in place would let nested substitutions shadow each other incorrectly.
func replaceIndices(n gem.Node, mapper *gem.MemoizerArg[Subst], subst Subst) gem.Node {
	switch t := n.(type) {
	case *gem.Delta:
		i := subst.Lookup(t.I)
		j := subst.Lookup(t.J)
		//
		if i == t.I && j == t.J {
			return n
		}
		//
		return gem.NewDelta(i, j)
	case *gem.Indexed:
		multiindex := make([]gem.IndexKey, len(t.MultiIndex))
		changed := false
		//
		for i, key := range t.MultiIndex {
			multiindex[i] = subst.Lookup(key)
			changed = changed || multiindex[i] != key
		}
		//
		if tensor, ok := t.Child.(*gem.ComponentTensor); ok {
			// Inline the component tensor, augmenting the substitution with
			// its own index bindings.
			merged := make(Subst, 0, len(subst)+len(tensor.MultiIndex))
			merged = append(merged, subst...)
			//
			for i, index := range tensor.MultiIndex {
				merged = overwrite(merged, IndexPair{index, multiindex[i]})
			}
			//
			return mapper.Apply(tensor.Expr, merged.canonical())
		}
		//
		child := mapper.Apply(t.Child, subst)
		if child == t.Child && !changed {
			return n
		}
		//
		return gem.NewIndexed(child, multiindex)
	case *gem.FlexiblyIndexed:
		dims := make([]gem.DimIndex, len(t.Dims))
		changed := false
		//
		for i, dim := range t.Dims {
			terms := make([]gem.StrideTerm, len(dim.Terms))
			//
			for j, term := range dim.Terms {
				terms[j] = gem.StrideTerm{Index: subst.Lookup(term.Index), Stride: term.Stride}
				changed = changed || terms[j].Index != term.Index
			}
			//
			dims[i] = gem.DimIndex{Offset: dim.Offset, Terms: terms}
		}
		//
		if !changed {
			return n
		}
		//
		return gem.NewFlexiblyIndexed(t.Child, dims)
	default:
		return gem.ReuseIfUntouchedArg(n, mapper, subst)
	}
}

// overwrite replaces any existing rule for the same index, otherwise appends.
func overwrite(subst Subst, pair IndexPair) Subst {
	for i, ith := range subst {
		if ith.From == pair.From {
			subst[i] = pair
			return subst
		}
	}
	//
	return append(subst, pair)
}

// filteredReplaceIndices wraps replaceIndices, dropping substitution rules
// that cannot apply to the node at hand.
func filteredReplaceIndices(n gem.Node, mapper *gem.MemoizerArg[Subst], subst Subst) gem.Node {
	return replaceIndices(n, mapper, subst.Filter(n.FreeIndices()))
}

// NewIndexReplacer constructs a memoised rewriter for index substitution over
// a shared DAG.
func NewIndexReplacer() *gem.MemoizerArg[Subst] {
	return gem.NewMemoizerArg(filteredReplaceIndices, substKey)
}

// ReplaceIndices rewrites the free indices of the given expressions according
// to the given rules.
func ReplaceIndices(expressions []gem.Node, subst Subst) []gem.Node {
	var (
		mapper    = NewIndexReplacer()
		canonical = slices.Clone(subst).canonical()
		result    = make([]gem.Node, len(expressions))
	)
	//
	for i, expression := range expressions {
		result[i] = mapper.Apply(expression, canonical)
	}
	//
	return result
}

// RemoveComponentTensors inlines every component tensor in a multi-root
// expression DAG.  A component tensor is only ever consumed through an
// enclosing index access, where index substitution inlines it; applying an
// empty substitution everywhere therefore eliminates them all.
func RemoveComponentTensors(expressions []gem.Node) []gem.Node {
	return ReplaceIndices(expressions, nil)
}
