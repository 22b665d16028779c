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

// DeltaElimination cancels Kronecker deltas against contraction indices.
// Whenever a delta factor mentions an index being summed over, the other
// operand is substituted for it everywhere, and both the index and the delta
// disappear.  This repeats until no eligible delta remains; termination is
// guaranteed because every round removes one contraction index.  Unit factors
// left behind by the substitutions are dropped.
func DeltaElimination(sumIndices []*gem.Index, factors []gem.Node) ([]*gem.Index, []gem.Node) {
	sumIndices = slices.Clone(sumIndices)
	//
	for {
		delta, from, ok := findDelta(sumIndices, factors)
		if !ok {
			break
		}
		//
		to := delta.I
		if to == gem.IndexKey(from) {
			to = delta.J
		}
		//
		i := slices.Index(sumIndices, from)
		sumIndices = slices.Delete(sumIndices, i, i+1)
		//
		factors = ReplaceIndices(factors, Subst{{From: from, To: to}})
	}
	// Drop ones
	result := make([]gem.Node, 0, len(factors))
	//
	for _, factor := range factors {
		if factor != gem.One {
			result = append(result, factor)
		}
	}
	//
	return sumIndices, result
}

// findDelta locates the first delta factor mentioning a live contraction
// index.
func findDelta(sumIndices []*gem.Index, factors []gem.Node) (*gem.Delta, *gem.Index, bool) {
	for _, factor := range factors {
		delta, ok := factor.(*gem.Delta)
		if !ok {
			continue
		}
		//
		for _, key := range []gem.IndexKey{delta.I, delta.J} {
			if index, ok := key.(*gem.Index); ok && slices.Contains(sumIndices, index) {
				return delta, index, true
			}
		}
	}
	//
	return nil, nil, false
}

// ReplaceDelta lowers every delta in a multi-root expression DAG.  A delta
// over statically-extended indices becomes an access into an identity matrix;
// a delta over fixed or runtime indices becomes a conditional on their
// equality.
func ReplaceDelta(expressions []gem.Node) []gem.Node {
	mapper := gem.NewMemoizer(func(n gem.Node, mapper *gem.Memoizer) gem.Node {
		if delta, ok := n.(*gem.Delta); ok {
			return lowerDelta(delta)
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

func lowerDelta(delta *gem.Delta) gem.Node {
	var (
		i, iFree = delta.I.(*gem.Index)
		j, jFree = delta.J.(*gem.Index)
	)
	//
	if iFree || jFree {
		var size uint
		//
		if iFree && jFree && i.Extent() != j.Extent() {
			panic(fmt.Sprintf("delta over indices of different extents %d and %d", i.Extent(), j.Extent()))
		}
		//
		if iFree {
			size = i.Extent()
		} else {
			size = j.Extent()
		}
		//
		return gem.NewIndexed(gem.NewIdentity(size), []gem.IndexKey{delta.I, delta.J})
	}
	// Fixed or runtime operands: lower to an equality test.
	return gem.NewConditional(
		gem.NewComparison("==", indexExpression(delta.I), indexExpression(delta.J)),
		gem.One, gem.NewZero())
}

func indexExpression(key gem.IndexKey) gem.Node {
	switch k := key.(type) {
	case gem.FixedIndex:
		return gem.NewScalarLiteral(float64(k))
	case gem.VariableIndex:
		return k.Expr
	default:
		panic(fmt.Sprintf("cannot convert index %v to an expression", key))
	}
}
