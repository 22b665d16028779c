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
	"reflect"

	"github.com/consensys/go-gem/pkg/gem"
)

// SelectExpression builds an expression selecting, by the value of an index,
// between several alternatives.  Semantically equivalent to indexing a list
// tensor of the alternatives, but pushes the selection down to where the
// alternatives actually differ, so identical structure above the divergence
// point is shared rather than replicated per alternative.
func SelectExpression(expressions []gem.Node, index *gem.Index) gem.Node {
	if uint(len(expressions)) != index.Extent() {
		panic(fmt.Sprintf("selecting between %d expressions with index of extent %d",
			len(expressions), index.Extent()))
	}
	//
	return selectExpression(expressions, index)
}

func selectExpression(expressions []gem.Node, index *gem.Index) gem.Node {
	first := expressions[0]
	//
	if allEqual(expressions) {
		return first
	}
	// Accesses into differing aggregates: share the access, select below it.
	if within(expressions, (*gem.Indexed)(nil), (*gem.Zero)(nil)) {
		var (
			multiindex []gem.IndexKey
			shape      []uint
		)
		//
		for _, expression := range expressions {
			if indexed, ok := expression.(*gem.Indexed); ok {
				if multiindex != nil && !sameMultiIndex(multiindex, indexed.MultiIndex) {
					panic("cannot select between accesses at differing multiindices")
				}
				//
				multiindex = indexed.MultiIndex
				shape = indexed.Child.Shape()
			}
		}
		//
		children := make([]gem.Node, len(expressions))
		for i, expression := range expressions {
			if indexed, ok := expression.(*gem.Indexed); ok {
				children[i] = indexed.Child
			} else {
				children[i] = gem.NewZero(shape...)
			}
		}
		//
		return gem.NewIndexed(selectExpression(children, index), multiindex)
	}
	// Constants: materialise the selection table.
	if within(expressions, (*gem.Literal)(nil), (*gem.Zero)(nil), (*gem.Failure)(nil)) {
		table := gem.NewListTensor(gem.NewNodeArrayFromSlice(expressions, uint(len(expressions))))
		return gem.PartialIndexed(table, []gem.IndexKey{index})
	}
	// A single parameter-free kind: select per operand position.
	if kind, ok := sharedKind(expressions); ok {
		switch kind {
		case "*gem.Sum", "*gem.Product", "*gem.Division", "*gem.Power", "*gem.ListTensor",
			"*gem.Conditional", "*gem.LogicalAnd", "*gem.LogicalOr", "*gem.LogicalNot":
			arity := len(first.Children())
			children := make([]gem.Node, arity)
			//
			for i := range arity {
				nth := make([]gem.Node, len(expressions))
				for j, expression := range expressions {
					nth[j] = expression.Children()[i]
				}
				//
				children[i] = selectExpression(nth, index)
			}
			//
			return first.Reconstruct(children)
		}
	}
	//
	panic(fmt.Sprintf("no rule for selecting between %s and %s", first, expressions[1]))
}

func allEqual(expressions []gem.Node) bool {
	for _, expression := range expressions[1:] {
		if expression != expressions[0] {
			return false
		}
	}
	//
	return true
}

// within checks that every expression is one of the given (nil-typed) kinds.
func within(expressions []gem.Node, kinds ...gem.Node) bool {
	for _, expression := range expressions {
		matched := false
		//
		for _, kind := range kinds {
			if reflect.TypeOf(expression) == reflect.TypeOf(kind) {
				matched = true
				break
			}
		}
		//
		if !matched {
			return false
		}
	}
	//
	return true
}

// sharedKind returns the dynamic type name shared by every expression, if any.
func sharedKind(expressions []gem.Node) (string, bool) {
	kind := reflect.TypeOf(expressions[0])
	//
	for _, expression := range expressions[1:] {
		if reflect.TypeOf(expression) != kind {
			return "", false
		}
	}
	//
	return kind.String(), true
}

func sameMultiIndex(left []gem.IndexKey, right []gem.IndexKey) bool {
	if len(left) != len(right) {
		return false
	}
	//
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	//
	return true
}
