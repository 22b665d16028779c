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

	"github.com/consensys/go-gem/pkg/gem"
)

// NodeFlops estimates the floating-point operations a single node contributes,
// not counting its children.  An arithmetic node costs one operation per
// assignment of its free indices; a contraction additionally iterates its
// bound indices.
func NodeFlops(n gem.Node) uint64 {
	switch t := n.(type) {
	case *gem.IndexSum:
		return gem.NewIndexSet(t.MultiIndex...).ExtentProduct() * n.FreeIndices().ExtentProduct()
	case *gem.Sum, *gem.Product, *gem.Division, *gem.Power, *gem.Comparison, *gem.MathFunction:
		return n.FreeIndices().ExtentProduct()
	case *gem.Literal, *gem.Zero, *gem.Identity, *gem.Failure, *gem.Variable,
		*gem.Indexed, *gem.FlexiblyIndexed, *gem.ListTensor, *gem.Delta,
		*gem.LogicalAnd, *gem.LogicalOr, *gem.LogicalNot, *gem.Conditional:
		// Loads, selections and logical glue are not counted.
		return 0
	default:
		// Component tensors must have been inlined before counting.
		panic(fmt.Sprintf("cannot estimate operation count of %T", n))
	}
}

// CountFlops estimates the floating-point operations needed to evaluate an
// expression DAG, counting each distinct node once.
func CountFlops(expression gem.Node) uint64 {
	flops := uint64(0)
	//
	for _, n := range gem.Traversal([]gem.Node{expression}) {
		flops += NodeFlops(n)
	}
	//
	return flops
}
