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
	"math"
	"testing"

	"github.com/consensys/go-gem/pkg/gem"
)

func Test_Classifier_01(t *testing.T) {
	var (
		i          = gem.NewIndex(3)
		q          = gem.NewIndex(4)
		phi        = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		w          = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		classifier = NewArgumentClassifier(gem.NewIndexSet(i))
	)
	// No argument indices: irrelevant.
	if classifier(w) != Other {
		t.Errorf("expected Other for %s", w)
	}
	// One argument index on a plain access: indivisible.
	if classifier(phi) != Atomic {
		t.Errorf("expected Atomic for %s", phi)
	}
	// One argument index on anything else: must be broken up.
	if classifier(gem.NewSum(phi, phi)) != Compound {
		t.Errorf("expected Compound for a sum")
	}
	// Conditionals are never broken up.
	conditional := gem.NewConditional(gem.NewComparison("<", w, gem.One), phi, gem.NewScalarLiteral(2))
	if classifier(conditional) != Atomic {
		t.Errorf("expected Atomic for a conditional")
	}
}

func Test_Classifier_02(t *testing.T) {
	var (
		i          = gem.NewIndex(3)
		j          = gem.NewIndex(3)
		q          = gem.NewIndex(4)
		phi        = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		psi        = gem.NewIndexed(gem.NewVariable("Psi", 4, 3), []gem.IndexKey{q, j})
		classifier = NewArgumentClassifier(gem.NewIndexSet(i, j))
	)
	// Two argument indices: must be broken up, access or not.
	if classifier(gem.NewProduct(phi, psi)) != Compound {
		t.Errorf("expected Compound for a two-argument product")
	}
	//
	M := gem.NewIndexed(gem.NewVariable("M", 3, 3), []gem.IndexKey{i, j})
	if classifier(M) != Compound {
		t.Errorf("expected Compound for a two-argument access")
	}
}

func Test_Optimise_01(t *testing.T) {
	// A stiffness-like expression: sum_q w(q) * Phi(q,i) * (a(q) + b(q)).
	// The quadrature-only part is hoisted out of the argument-dependent
	// contraction, preserving value.
	var (
		i    = gem.NewIndex(3)
		q    = gem.NewIndex(4)
		w    = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		phi  = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		a    = gem.NewIndexed(gem.NewVariable("a", 4), []gem.IndexKey{q})
		b    = gem.NewIndexed(gem.NewVariable("b", 4), []gem.IndexKey{q})
		body = gem.NewProduct(gem.NewProduct(w, phi), gem.NewSum(a, b))
		expr = gem.NewIndexSum(body, []*gem.Index{q})
	)
	//
	result, err := Optimise(expr, gem.NewIndexSet(i))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	checkEquivalent(t, expr, result, driverEnv())
	//
	if CountFlops(result) > CountFlops(expr) {
		t.Errorf("optimisation increased operations: %d -> %d", CountFlops(expr), CountFlops(result))
	}
}

func Test_Optimise_02(t *testing.T) {
	// A mass-matrix-like expression with two argument indices:
	// sum_q w(q) * Phi(q,i) * Psi(q,j).
	var (
		i    = gem.NewIndex(3)
		j    = gem.NewIndex(3)
		q    = gem.NewIndex(4)
		w    = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		phi  = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		psi  = gem.NewIndexed(gem.NewVariable("Psi", 4, 3), []gem.IndexKey{q, j})
		expr = gem.NewIndexSum(gem.NewProduct(gem.NewProduct(w, phi), psi), []*gem.Index{q})
	)
	//
	result, err := Optimise(expr, gem.NewIndexSet(i, j))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	checkEquivalent(t, expr, result, driverEnv())
}

func Test_Optimise_03(t *testing.T) {
	// Sums of contractions over different index sets survive intact.
	var (
		i     = gem.NewIndex(3)
		q     = gem.NewIndex(4)
		r     = gem.NewIndex(2)
		phi   = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		chi   = gem.NewIndexed(gem.NewVariable("Chi", 2, 3), []gem.IndexKey{r, i})
		w     = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		s     = gem.NewIndexed(gem.NewVariable("s", 2), []gem.IndexKey{r})
		cell  = gem.NewIndexSum(gem.NewProduct(w, phi), []*gem.Index{q})
		facet = gem.NewIndexSum(gem.NewProduct(s, chi), []*gem.Index{r})
		expr  = gem.NewSum(cell, facet)
	)
	//
	result, err := Optimise(expr, gem.NewIndexSet(i))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	checkEquivalent(t, expr, result, driverEnv())
}

func Test_OptimiseExpressions_01(t *testing.T) {
	var (
		i    = gem.NewIndex(3)
		q    = gem.NewIndex(4)
		w    = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		phi  = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		expr = gem.NewIndexSum(gem.NewProduct(w, phi), []*gem.Index{q})
	)
	//
	result, err := OptimiseExpressions([]gem.Node{expr}, gem.NewIndexSet(i))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	checkEquivalent(t, expr, result[0], driverEnv())
}

func Test_OptimiseExpressions_02(t *testing.T) {
	// A failure marker anywhere leaves every expression untouched.
	var (
		i       = gem.NewIndex(3)
		q       = gem.NewIndex(4)
		w       = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		phi     = gem.NewIndexed(gem.NewVariable("Phi", 4, 3), []gem.IndexKey{q, i})
		expr    = gem.NewIndexSum(gem.NewProduct(w, phi), []*gem.Index{q})
		failure = gem.NewFailure("unsupported geometry")
	)
	//
	result, err := OptimiseExpressions([]gem.Node{expr, failure}, gem.NewIndexSet(i))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	if result[0] != expr || result[1] != failure {
		t.Errorf("expected expressions to pass through unchanged")
	}
}

func Test_ContainsFailure_01(t *testing.T) {
	var (
		x       = gem.NewVariable("x")
		failure = gem.NewFailure("unsupported geometry")
	)
	//
	if ContainsFailure(x) {
		t.Errorf("no failure in %s", x)
	}
	//
	if !ContainsFailure(gem.NewSum(x, gem.NewProduct(failure, x))) {
		t.Errorf("failure not detected")
	}
}

// driverEnv binds every variable used by the driver tests.
func driverEnv() *gem.Env {
	return gem.NewEnv().
		BindVariable("w", gem.NewTensorFromData([]float64{0.25, 0.5, 0.75, 1}, 4)).
		BindVariable("s", gem.NewTensorFromData([]float64{0.5, 1.5}, 2)).
		BindVariable("a", gem.NewTensorFromData([]float64{1, 2, 3, 4}, 4)).
		BindVariable("b", gem.NewTensorFromData([]float64{5, 6, 7, 8}, 4)).
		BindVariable("Phi", gem.NewTensorFromData([]float64{
			1, 2, 3,
			4, 5, 6,
			7, 8, 9,
			10, 11, 12,
		}, 4, 3)).
		BindVariable("Psi", gem.NewTensorFromData([]float64{
			2, 4, 6,
			8, 10, 12,
			14, 16, 18,
			20, 22, 24,
		}, 4, 3)).
		BindVariable("Chi", gem.NewTensorFromData([]float64{
			1, 3, 5,
			7, 9, 11,
		}, 2, 3))
}

// ============================================================================
// Helpers
// ============================================================================

// checkNode reports an error unless two expressions are the same object, which
// is what structural equality means for interned nodes.
func checkNode(t *testing.T, expected gem.Node, actual gem.Node) {
	t.Helper()
	//
	if expected != actual {
		t.Errorf("expected %s, got %s", expected, actual)
	}
}

// checkEquivalent evaluates two expressions under every assignment of their
// free indices, reporting any numeric divergence beyond rounding error.
func checkEquivalent(t *testing.T, expected gem.Node, actual gem.Node, env *gem.Env) {
	t.Helper()
	//
	free := expected.FreeIndices().Union(actual.FreeIndices())
	shape := make([]uint, len(free))
	//
	for i, index := range free {
		shape[i] = index.Extent()
	}
	//
	for _, alpha := range gem.ShapeIndices(shape) {
		for i, index := range free {
			env.Indices[index] = alpha[i]
		}
		//
		var (
			lhs = gem.Evaluate(expected, env)
			rhs = gem.Evaluate(actual, env)
		)
		//
		for i, l := range lhs.Data() {
			r := rhs.Data()[i]
			//
			if math.Abs(l-r) > 1e-9*math.Max(1, math.Abs(l)) {
				t.Fatalf("divergence at %v: expected %f, got %f\nexpected: %s\nactual:   %s",
					alpha, l, r, expected, actual)
			}
		}
	}
}

// checkPanics reports an error unless the given function panics.
func checkPanics(t *testing.T, fn func()) {
	t.Helper()
	//
	defer func() {
		if recover() == nil {
			t.Errorf("expected panic")
		}
	}()
	//
	fn()
}
