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
	"testing"

	"github.com/consensys/go-gem/pkg/gem"
)

// ============================================================================
// Literal rounding
// ============================================================================

func Test_Round_01(t *testing.T) {
	var (
		noisy    = gem.NewLiteral(gem.NewTensorFromData([]float64{0.09999999, 0.30000001}, 2))
		expected = gem.NewLiteral(gem.NewTensorFromData([]float64{0.1, 0.3}, 2))
	)
	//
	checkNode(t, expected, RoundLiterals(noisy, 1e-3))
}

func Test_Round_02(t *testing.T) {
	// Values outside the tolerance are untouched.
	literal := gem.NewLiteral(gem.NewTensorFromData([]float64{0.14, 0.3}, 2))
	//
	checkNode(t, gem.NewLiteral(gem.NewTensorFromData([]float64{0.14, 0.3}, 2)), RoundLiterals(literal, 1e-3))
}

func Test_Round_03(t *testing.T) {
	// Rounding reaches literals nested inside larger expressions, and
	// canonicalisation applies to the result: an all-zero literal becomes zero,
	// which then folds in the enclosing product.
	var (
		x    = gem.NewVariable("x")
		tiny = gem.NewLiteral(gem.NewTensorFromData([]float64{-1e-9}, 1))
		i    = gem.NewIndex(1)
		expr = gem.NewProduct(x, gem.NewIndexed(tiny, []gem.IndexKey{i}))
	)
	//
	checkNode(t, gem.NewZero(), RoundLiterals(expr, 1e-3))
}

func Test_Round_04(t *testing.T) {
	// An expression without literals is returned as the same object.
	var (
		i    = gem.NewIndex(3)
		A    = gem.NewVariable("A", 3)
		expr = gem.NewIndexSum(gem.NewIndexed(A, []gem.IndexKey{i}), []*gem.Index{i})
	)
	//
	if RoundLiterals(expr, 1e-3) != expr {
		t.Errorf("expected untouched expression to be preserved")
	}
}

// ============================================================================
// Division replacement
// ============================================================================

func Test_ReplaceDivision_01(t *testing.T) {
	var (
		x        = gem.NewVariable("x")
		y        = gem.NewVariable("y")
		division = gem.NewDivision(x, y)
		expected = gem.NewProduct(x, gem.NewDivision(gem.One, y))
	)
	//
	result := ReplaceDivision([]gem.Node{division})[0]
	//
	checkNode(t, expected, result)
	//
	env := gem.NewEnv().BindVariable("x", gem.Scalar(3)).BindVariable("y", gem.Scalar(4))
	checkEquivalent(t, division, result, env)
}

func Test_ReplaceDivision_02(t *testing.T) {
	// Divisions nested under contractions are rewritten too.
	var (
		i        = gem.NewIndex(3)
		A        = gem.NewVariable("A", 3)
		B        = gem.NewVariable("B", 3)
		division = gem.NewDivision(gem.NewIndexed(A, []gem.IndexKey{i}), gem.NewIndexed(B, []gem.IndexKey{i}))
		expr     = gem.NewIndexSum(division, []*gem.Index{i})
	)
	//
	result := ReplaceDivision([]gem.Node{expr})[0]
	//
	if ContainsDivisionOf(result) {
		t.Errorf("division with non-unit dividend remains in %s", result)
	}
	//
	env := gem.NewEnv().
		BindVariable("A", gem.NewTensorFromData([]float64{1, 2, 3}, 3)).
		BindVariable("B", gem.NewTensorFromData([]float64{4, 5, 8}, 3))
	checkEquivalent(t, expr, result, env)
}

// ContainsDivisionOf checks for any division whose dividend is not one.
func ContainsDivisionOf(expression gem.Node) bool {
	for _, n := range gem.Traversal([]gem.Node{expression}) {
		if division, ok := n.(*gem.Division); ok && division.X != gem.One {
			return true
		}
	}
	//
	return false
}

// ============================================================================
// Index substitution
// ============================================================================

func Test_ReplaceIndices_01(t *testing.T) {
	var (
		i = gem.NewIndex(3)
		j = gem.NewIndex(3)
		A = gem.NewVariable("A", 3)
	)
	//
	result := ReplaceIndices(
		[]gem.Node{gem.NewIndexed(A, []gem.IndexKey{i})},
		Subst{{From: i, To: j}})[0]
	//
	checkNode(t, gem.NewIndexed(A, []gem.IndexKey{j}), result)
}

func Test_ReplaceIndices_02(t *testing.T) {
	// Substituting a fixed offset into an access.
	var (
		i = gem.NewIndex(3)
		A = gem.NewVariable("A", 3)
	)
	//
	result := ReplaceIndices(
		[]gem.Node{gem.NewIndexed(A, []gem.IndexKey{i})},
		Subst{{From: i, To: gem.FixedIndex(2)}})[0]
	//
	checkNode(t, gem.NewIndexed(A, []gem.IndexKey{gem.FixedIndex(2)}), result)
}

func Test_ReplaceIndices_03(t *testing.T) {
	// Substitution applies inside deltas.
	var (
		i = gem.NewIndex(3)
		j = gem.NewIndex(3)
	)
	//
	result := ReplaceIndices([]gem.Node{gem.NewDelta(i, j)}, Subst{{From: i, To: j}})[0]
	//
	checkNode(t, gem.One, result)
}

// ============================================================================
// Component tensor removal
// ============================================================================

func Test_RemoveComponentTensors_01(t *testing.T) {
	var (
		i      = gem.NewIndex(3)
		j      = gem.NewIndex(3)
		A      = gem.NewVariable("A", 3)
		B      = gem.NewVariable("B", 3)
		scalar = gem.NewProduct(gem.NewIndexed(A, []gem.IndexKey{i}), gem.NewIndexed(B, []gem.IndexKey{i}))
		tensor = gem.NewComponentTensor(scalar, []*gem.Index{i})
		expr   = gem.NewIndexed(tensor, []gem.IndexKey{j})
	)
	// Accessing the bound tensor at j re-indexes the body at j.
	expected := gem.NewProduct(gem.NewIndexed(A, []gem.IndexKey{j}), gem.NewIndexed(B, []gem.IndexKey{j}))
	//
	checkNode(t, expected, RemoveComponentTensors([]gem.Node{expr})[0])
}

func Test_RemoveComponentTensors_02(t *testing.T) {
	// Expressions without component tensors come back as the same objects.
	var (
		i    = gem.NewIndex(3)
		A    = gem.NewVariable("A", 3)
		expr = gem.NewIndexSum(gem.NewIndexed(A, []gem.IndexKey{i}), []*gem.Index{i})
	)
	//
	if RemoveComponentTensors([]gem.Node{expr})[0] != expr {
		t.Errorf("expected untouched expression to be preserved")
	}
}

func Test_RemoveComponentTensors_03(t *testing.T) {
	// Idempotence: a second application changes nothing.
	var (
		i      = gem.NewIndex(2)
		j      = gem.NewIndex(2)
		A      = gem.NewVariable("A", 2)
		tensor = gem.NewComponentTensor(gem.NewIndexed(A, []gem.IndexKey{i}), []*gem.Index{i})
		expr   = gem.NewIndexSum(gem.NewIndexed(tensor, []gem.IndexKey{j}), []*gem.Index{j})
	)
	//
	once := RemoveComponentTensors([]gem.Node{expr})
	twice := RemoveComponentTensors(once)
	//
	if once[0] != twice[0] {
		t.Errorf("component tensor removal not idempotent")
	}
	//
	env := gem.NewEnv().BindVariable("A", gem.NewTensorFromData([]float64{2, 5}, 2))
	checkEquivalent(t, expr, once[0], env)
}

func Test_RemoveComponentTensors_04(t *testing.T) {
	// Nested component tensors are inlined in a single application.
	var (
		i     = gem.NewIndex(2)
		j     = gem.NewIndex(2)
		k     = gem.NewIndex(2)
		A     = gem.NewVariable("A", 2)
		inner = gem.NewComponentTensor(gem.NewIndexed(A, []gem.IndexKey{i}), []*gem.Index{i})
		outer = gem.NewComponentTensor(gem.NewIndexed(inner, []gem.IndexKey{j}), []*gem.Index{j})
		expr  = gem.NewIndexed(outer, []gem.IndexKey{k})
	)
	//
	checkNode(t, gem.NewIndexed(A, []gem.IndexKey{k}), RemoveComponentTensors([]gem.Node{expr})[0])
}
