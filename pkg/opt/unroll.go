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
	"github.com/consensys/go-gem/pkg/gem"
)

// UnrollIndexSum expands contractions over indices selected by the given
// predicate into explicit summations; contraction indices the predicate
// rejects remain bound.
func UnrollIndexSum(expressions []gem.Node, predicate func(*gem.Index) bool) []gem.Node {
	mapper := gem.NewMemoizer(func(n gem.Node, mapper *gem.Memoizer) gem.Node {
		if sum, ok := n.(*gem.IndexSum); ok {
			var unroll, remain []*gem.Index
			//
			for _, index := range sum.MultiIndex {
				if predicate(index) {
					unroll = append(unroll, index)
				} else {
					remain = append(remain, index)
				}
			}
			//
			if len(unroll) > 0 {
				return unrollSummand(mapper.Apply(sum.Summand), unroll, remain)
			}
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

// unrollSummand expands a contraction summand over every assignment of the
// unrolled indices, then re-binds the remaining ones.
func unrollSummand(summand gem.Node, unroll []*gem.Index, remain []*gem.Index) gem.Node {
	var (
		shape  = make([]uint, len(unroll))
		tensor gem.Node
		result gem.Node = gem.NewZero()
	)
	//
	for i, index := range unroll {
		shape[i] = index.Extent()
	}
	//
	tensor = gem.NewComponentTensor(summand, unroll)
	//
	for _, alpha := range gem.ShapeIndices(shape) {
		multiindex := make([]gem.IndexKey, len(alpha))
		for i, a := range alpha {
			multiindex[i] = gem.FixedIndex(a)
		}
		//
		result = gem.NewSum(result, gem.NewIndexed(tensor, multiindex))
	}
	//
	return gem.NewIndexSum(result, remain)
}

// AggressiveUnroll unrolls every loop structure of an expression: the shape of
// the expression itself becomes an explicit array of scalar entries, and every
// contraction becomes an explicit summation.
func AggressiveUnroll(expression gem.Node) gem.Node {
	// Unroll expression shape
	if shape := expression.Shape(); len(shape) > 0 {
		array := gem.NewNodeArray(shape...)
		//
		for _, alpha := range gem.ShapeIndices(shape) {
			multiindex := make([]gem.IndexKey, len(alpha))
			for i, a := range alpha {
				multiindex[i] = gem.FixedIndex(a)
			}
			//
			array.Set(gem.NewIndexed(expression, multiindex), alpha...)
		}
		//
		expression = RemoveComponentTensors([]gem.Node{gem.NewListTensor(array)})[0]
	}
	// Unroll summation
	expression = UnrollIndexSum([]gem.Node{expression}, func(*gem.Index) bool { return true })[0]
	//
	return RemoveComponentTensors([]gem.Node{expression})[0]
}
