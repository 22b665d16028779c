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
	log "github.com/sirupsen/logrus"

	"github.com/consensys/go-gem/pkg/gem"
)

// NewArgumentClassifier builds the refactorisation classifier used by the
// optimisation driver.  Expressions are classified by how many argument
// indices (those of the test/trial function spaces, as opposed to quadrature
// indices) they touch: none makes an expression irrelevant; a plain access
// touching exactly one is an indivisible factor; anything else must be broken
// up.  Conditionals are always indivisible, since splitting them changes
// semantics.
func NewArgumentClassifier(argumentIndices gem.IndexSet) Classifier {
	return func(expression gem.Node) Label {
		if _, ok := expression.(*gem.Conditional); ok {
			return Atomic
		}
		//
		switch n := len(argumentIndices.Intersect(expression.FreeIndices())); {
		case n == 0:
			return Other
		case n == 1:
			if _, ok := expression.(*gem.Indexed); ok {
				return Atomic
			}
			//
			return Compound
		default:
			return Compound
		}
	}
}

// Optimise refactorises a single expression relative to a set of argument
// indices: the expression is expanded into a sum of monomials, a factor cover
// determines which atomic factors to pull out per contraction-index group
// (strictly optimal factors first, remaining ones appended at lower
// priority), and the factorised monomials are reassembled.  Returns a
// FactorisationError when the expression resists expansion.
func Optimise(expression gem.Node, argumentIndices gem.IndexSet) (gem.Node, error) {
	collected, err := CollectMonomials([]gem.Node{expression}, NewArgumentClassifier(argumentIndices))
	if err != nil {
		return nil, err
	}
	//
	monomialSum := collected[0]
	monomialSum.SetArgumentIndices(argumentIndices)
	//
	var optimal, other []AtomicPair
	//
	for _, group := range monomialSum.UniqueSumIndices() {
		chosen, remaining := monomialSum.FindOptimalAtomics(group)
		//
		for _, atomic := range chosen {
			optimal = append(optimal, AtomicPair{group, atomic})
		}
		//
		for _, atomic := range remaining {
			other = append(other, AtomicPair{group, atomic})
		}
	}
	//
	monomialSum = monomialSum.FactoriseAtomics(append(optimal, other...))
	//
	return monomialSum.ToExpression(), nil
}

// OptimiseExpressions refactorises every expression relative to a set of
// argument indices.  When any expression contains a failure marker, the
// inputs are returned unchanged: a failure poisons everything depending on
// it, so optimisation would only mask it.
func OptimiseExpressions(expressions []gem.Node, argumentIndices gem.IndexSet) ([]gem.Node, error) {
	if ContainsFailure(expressions...) {
		log.Debug("failure marker present, skipping optimisation")
		return expressions, nil
	}
	//
	result := make([]gem.Node, len(expressions))
	//
	for i, expression := range expressions {
		var err error
		//
		if result[i], err = Optimise(expression, argumentIndices); err != nil {
			return nil, err
		}
		//
		log.Debugf("optimised expression %d: %d flops -> %d flops",
			i, CountFlops(expression), CountFlops(result[i]))
	}
	//
	return result, nil
}

// ContainsFailure checks whether any sub-expression anywhere in the given
// expressions is an unrecoverable-failure marker.
func ContainsFailure(expressions ...gem.Node) bool {
	for _, n := range gem.Traversal(expressions) {
		if _, ok := n.(*gem.Failure); ok {
			return true
		}
	}
	//
	return false
}
