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
	"math"
	"slices"
	"strings"

	"github.com/consensys/go-gem/pkg/gem"
)

// maxSumFactoriseIndices bounds the exhaustive permutation search over
// contraction orderings, which is O(k!) in the index count.
const maxSumFactoriseIndices = 5

// TraverseProduct flattens a product tree into its factors, descending into
// contractions (collecting their bound indices) and into the dividends of
// divisions, but never into divisors.  The optional stopAt predicate marks
// sub-expressions that must not be broken up further.
func TraverseProduct(expression gem.Node, stopAt func(gem.Node) bool) ([]*gem.Index, []gem.Node) {
	var (
		sumIndices []*gem.Index
		terms      []gem.Node
		stack      = []gem.Node{expression}
	)
	//
	for len(stack) > 0 {
		expr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		//
		if stopAt != nil && stopAt(expr) {
			terms = append(terms, expr)
			continue
		}
		//
		switch t := expr.(type) {
		case *gem.IndexSum:
			stack = append(stack, t.Summand)
			sumIndices = append(sumIndices, t.MultiIndex...)
		case *gem.Product:
			stack = append(stack, t.Y, t.X)
		case *gem.Division:
			// Break up products in the dividend, but not in the divisor.
			if t.X == gem.One {
				terms = append(terms, expr)
			} else {
				stack = append(stack, gem.NewDivision(gem.One, t.Y), t.X)
			}
		default:
			terms = append(terms, expr)
		}
	}
	//
	return sumIndices, terms
}

// TraverseSum flattens a summation tree into its summands.  The optional
// stopAt predicate marks sub-expressions that must not be broken up further.
func TraverseSum(expression gem.Node, stopAt func(gem.Node) bool) []gem.Node {
	var (
		result []gem.Node
		stack  = []gem.Node{expression}
	)
	//
	for len(stack) > 0 {
		expr := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		//
		if stopAt != nil && stopAt(expr) {
			result = append(result, expr)
		} else if sum, ok := expr.(*gem.Sum); ok {
			stack = append(stack, sum.Y, sum.X)
		} else {
			result = append(result, expr)
		}
	}
	//
	return result
}

// SumFactorise builds a single expression equal to the contraction of the
// given factors over the given indices, choosing the elimination order and
// associativity structure with minimal estimated operation count.  Every
// ordering of the contraction indices is simulated; more than 5 indices is
// rejected.
func SumFactorise(sumIndices []*gem.Index, factors []gem.Node) gem.Node {
	if len(factors) == 0 && len(sumIndices) == 0 {
		// Empty product
		return gem.One
	}
	//
	if len(sumIndices) > maxSumFactoriseIndices {
		panic(fmt.Sprintf("too many indices for sum factorisation: %d (max %d)",
			len(sumIndices), maxSumFactoriseIndices))
	}
	// Consolidate factors sharing an exact free-index set.
	var (
		keys   []string
		merged = make(map[string]gem.Node)
	)
	//
	for _, factor := range factors {
		key := indexSetKey(factor.FreeIndices())
		//
		if existing, ok := merged[key]; ok {
			merged[key] = gem.NewProduct(existing, factor)
		} else {
			keys = append(keys, key)
			merged[key] = factor
		}
	}
	//
	groups := make([]gem.Node, len(keys))
	for i, key := range keys {
		groups[i] = merged[key]
	}
	// Consider all orderings of contraction indices.
	var (
		expression gem.Node
		bestFlops  = uint64(math.MaxUint64)
		best       = false
	)
	//
	for _, ordering := range permutations(sumIndices) {
		terms := slices.Clone(groups)
		flops := uint64(0)
		// Eliminate indices one at a time.
		for _, sumIndex := range ordering {
			var contract, deferred []gem.Node
			//
			for _, term := range terms {
				if term.FreeIndices().Contains(sumIndex) {
					contract = append(contract, term)
				} else {
					deferred = append(deferred, term)
				}
			}
			//
			product, productFlops := AssociateProduct(contract)
			term := gem.NewIndexSum(product, []*gem.Index{sumIndex})
			// One operation per summand instance: the product's free indices
			// still include the index being eliminated.
			flops += productFlops + product.FreeIndices().ExtentProduct()
			// Replace the contracted terms with the contraction.
			terms = append(deferred, term)
		}
		// Contraction indices independent of each other may leave several
		// terms at this point.
		expr, exprFlops := AssociateProduct(terms)
		flops += exprFlops
		//
		if !best || flops < bestFlops {
			expression = expr
			bestFlops = flops
			best = true
		}
	}
	//
	return expression
}

// FastSumFactorise composes delta elimination and sum factorisation, taking
// the contraction indices in reverse insertion order.
func FastSumFactorise(sumIndices []*gem.Index, factors []gem.Node) gem.Node {
	reversed := slices.Clone(sumIndices)
	slices.Reverse(reversed)
	//
	return SumFactorise(DeltaElimination(reversed, factors))
}

// Contraction optimises the contraction at the root of an expression:
// component tensors are inlined, the product tree is flattened, deltas are
// cancelled against their contraction indices, and the remaining contraction
// is sum-factorised.
func Contraction(expression gem.Node) gem.Node {
	expression = RemoveComponentTensors([]gem.Node{expression})[0]
	//
	sumIndices, factors := TraverseProduct(expression, nil)
	//
	return SumFactorise(DeltaElimination(sumIndices, factors))
}

// indexSetKey renders a free-index set into a canonical map key.
func indexSetKey(indices gem.IndexSet) string {
	var builder strings.Builder
	//
	for _, index := range indices {
		builder.WriteString(index.String())
		builder.WriteString(",")
	}
	//
	return builder.String()
}

// permutations enumerates every ordering of the given indices, in a
// deterministic (lexicographic by position) order.
func permutations(indices []*gem.Index) [][]*gem.Index {
	if len(indices) == 0 {
		return [][]*gem.Index{nil}
	}
	//
	var result [][]*gem.Index
	//
	for i, ith := range indices {
		rest := make([]*gem.Index, 0, len(indices)-1)
		rest = append(rest, indices[:i]...)
		rest = append(rest, indices[i+1:]...)
		//
		for _, perm := range permutations(rest) {
			result = append(result, append([]*gem.Index{ith}, perm...))
		}
	}
	//
	return result
}
