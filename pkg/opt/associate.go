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

	"github.com/consensys/go-gem/pkg/gem"
)

// maxAssociateOperands bounds the greedy associativity search, which is
// O(n^3) in the operand count.
const maxAssociateOperands = 32

// pairCost is the operation count of combining two expressions: one
// operation per distinct assignment of the union of their free indices.
func pairCost(a gem.Node, b gem.Node) uint64 {
	return a.FreeIndices().Union(b.FreeIndices()).ExtentProduct()
}

// associate greedily builds a binary tree over the given operands: at every
// step the cheapest remaining pair is combined.  Returns the tree and the
// accumulated operation count.  Heuristic, not globally optimal.
func associate(operands []gem.Node, combine func(gem.Node, gem.Node) gem.Node) (gem.Node, uint64) {
	if len(operands) == 0 {
		panic("cannot associate empty operand list")
	} else if len(operands) > maxAssociateOperands {
		panic(fmt.Sprintf("too complex to associate: %d operands (max %d)", len(operands), maxAssociateOperands))
	}
	//
	operands = slices.Clone(operands)
	flops := uint64(0)
	//
	for len(operands) > 1 {
		// Choose the cheapest pair to combine, first found on ties.
		var (
			bestI, bestJ = 0, 1
			bestCost     = pairCost(operands[0], operands[1])
		)
		//
		for i := 0; i < len(operands); i++ {
			for j := i + 1; j < len(operands); j++ {
				if cost := pairCost(operands[i], operands[j]); cost < bestCost {
					bestI, bestJ, bestCost = i, j, cost
				}
			}
		}
		// Replace the chosen pair with their combination.
		combined := combine(operands[bestI], operands[bestJ])
		flops += bestCost
		operands = append(operands[:bestJ], operands[bestJ+1:]...)
		operands[bestI] = combined
	}
	//
	return operands[0], flops
}

// AssociateProduct builds an operation-minimal product tree over the given
// factors, returning the tree and its estimated operation count.  More than
// 32 factors is rejected as too complex.
func AssociateProduct(factors []gem.Node) (gem.Node, uint64) {
	return associate(factors, gem.NewProduct)
}

// AssociateSum builds an operation-minimal summation tree over the given
// summands.  Summands sharing an identical free-index set are pre-summed
// first, since summing same-shape terms involves no associativity choice.
func AssociateSum(summands []gem.Node) (gem.Node, uint64) {
	var (
		keys   []string
		groups = make(map[string][]gem.Node)
	)
	//
	for _, summand := range summands {
		key := indexSetKey(summand.FreeIndices())
		//
		if _, ok := groups[key]; !ok {
			keys = append(keys, key)
		}
		//
		groups[key] = append(groups[key], summand)
	}
	//
	grouped := make([]gem.Node, len(keys))
	for i, key := range keys {
		var sum gem.Node = gem.NewZero()
		//
		for _, summand := range groups[key] {
			sum = gem.NewSum(sum, summand)
		}
		//
		grouped[i] = sum
	}
	//
	return associate(grouped, gem.NewSum)
}

// ReassociateProduct rebuilds every product tree in the given expressions
// with AssociateProduct.  Products referenced from more than one parent are
// left alone, so sharing in the DAG is not broken up.
func ReassociateProduct(expressions []gem.Node) []gem.Node {
	refcount := gem.CollectRefcount(expressions)
	//
	stopAt := func(n gem.Node) bool {
		if _, ok := n.(*gem.Product); !ok {
			return true
		}
		//
		return refcount[n] > 1
	}
	//
	mapper := gem.NewMemoizer(func(n gem.Node, mapper *gem.Memoizer) gem.Node {
		if _, ok := n.(*gem.Product); ok && refcount[n] <= 1 {
			_, factors := TraverseProduct(n, stopAt)
			//
			for i, factor := range factors {
				factors[i] = mapper.Apply(factor)
			}
			//
			product, _ := AssociateProduct(factors)
			//
			return product
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
