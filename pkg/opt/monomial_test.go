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
	"errors"
	"testing"

	"github.com/consensys/go-gem/pkg/gem"
)

func Test_MonomialSum_01(t *testing.T) {
	// Monomials sharing their contraction-index set and atomic multiset merge
	// by summing rests, regardless of ordering.
	var (
		i  = gem.NewIndex(3)
		a  = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		b  = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{i})
		r1 = gem.NewVariable("r1")
		r2 = gem.NewVariable("r2")
		ms = NewMonomialSum()
	)
	//
	ms.Add([]*gem.Index{i}, []gem.Node{a, b}, r1)
	ms.Add([]*gem.Index{i}, []gem.Node{b, a}, r2)
	//
	if ms.Len() != 1 {
		t.Fatalf("expected one monomial, got %d", ms.Len())
	}
	//
	monomial := ms.Monomials()[0]
	checkNode(t, gem.NewSum(r1, r2), monomial.Rest)
	// The first-inserted ordering is the canonical representative.
	if len(monomial.Atomics) != 2 || monomial.Atomics[0] != a || monomial.Atomics[1] != b {
		t.Errorf("expected canonical atomics [a b], got %v", monomial.Atomics)
	}
}

func Test_MonomialSum_02(t *testing.T) {
	// Atomics form a multiset: a*a and a are different monomials.
	var (
		i  = gem.NewIndex(3)
		a  = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		ms = NewMonomialSum()
	)
	//
	ms.Add([]*gem.Index{i}, []gem.Node{a, a}, gem.One)
	ms.Add([]*gem.Index{i}, []gem.Node{a}, gem.One)
	//
	if ms.Len() != 2 {
		t.Errorf("expected two monomials, got %d", ms.Len())
	}
}

func Test_MonomialSum_03(t *testing.T) {
	// Duplicate contraction indices are rejected.
	i := gem.NewIndex(3)
	//
	checkPanics(t, func() {
		NewMonomialSum().Add([]*gem.Index{i, i}, nil, gem.One)
	})
}

func Test_MonomialSum_04(t *testing.T) {
	// Summing monomial collections preserves value.
	var (
		i   = gem.NewIndex(3)
		a   = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		b   = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{i})
		ms1 = NewMonomialSum()
		ms2 = NewMonomialSum()
	)
	//
	ms1.Add([]*gem.Index{i}, []gem.Node{a}, gem.One)
	ms2.Add([]*gem.Index{i}, []gem.Node{b}, gem.One)
	//
	combined := SumMonomialSums(ms1, ms2)
	if combined.Len() != 2 {
		t.Fatalf("expected two monomials, got %d", combined.Len())
	}
	//
	env := monomialEnv()
	checkEquivalent(t,
		gem.NewSum(ms1.ToExpression(), ms2.ToExpression()),
		combined.ToExpression(), env)
}

func Test_MonomialSum_05(t *testing.T) {
	// Multiplying monomial collections distributes products over sums.
	var (
		i   = gem.NewIndex(3)
		j   = gem.NewIndex(4)
		a   = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		b   = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{i})
		c   = gem.NewIndexed(gem.NewVariable("c", 4), []gem.IndexKey{j})
		d   = gem.NewIndexed(gem.NewVariable("d", 4), []gem.IndexKey{j})
		ms1 = NewMonomialSum()
		ms2 = NewMonomialSum()
	)
	//
	ms1.Add([]*gem.Index{i}, []gem.Node{a}, gem.One)
	ms1.Add([]*gem.Index{i}, []gem.Node{b}, gem.One)
	ms2.Add([]*gem.Index{j}, []gem.Node{c}, gem.One)
	ms2.Add([]*gem.Index{j}, []gem.Node{d}, gem.One)
	//
	product := ProductMonomialSums(ms1, ms2)
	// (a + b) * (c + d) has four cross terms.
	if product.Len() != 4 {
		t.Fatalf("expected four monomials, got %d", product.Len())
	}
	//
	env := monomialEnv()
	checkEquivalent(t,
		gem.NewProduct(ms1.ToExpression(), ms2.ToExpression()),
		product.ToExpression(), env)
}

func Test_MonomialSum_06(t *testing.T) {
	// Reconstruction contracts each monomial over its own indices and groups
	// monomials sharing an ordered index list under one contraction.
	var (
		i  = gem.NewIndex(3)
		a  = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		b  = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{i})
		ms = NewMonomialSum()
	)
	//
	ms.Add([]*gem.Index{i}, []gem.Node{a}, gem.One)
	ms.Add([]*gem.Index{i}, []gem.Node{b}, gem.One)
	//
	result := ms.ToExpression()
	//
	sum, ok := result.(*gem.IndexSum)
	if !ok {
		t.Fatalf("expected a single contraction, got %s", result)
	} else if len(sum.MultiIndex) != 1 || sum.MultiIndex[0] != i {
		t.Errorf("expected contraction over i, got %v", sum.MultiIndex)
	}
	//
	naive := gem.NewIndexSum(gem.NewSum(a, b), []*gem.Index{i})
	checkEquivalent(t, naive, result, monomialEnv())
}

func Test_MonomialSum_07(t *testing.T) {
	// UniqueSumIndices reports distinct contraction-index sets in
	// first-encountered order.
	var (
		i  = gem.NewIndex(3)
		j  = gem.NewIndex(4)
		a  = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		c  = gem.NewIndexed(gem.NewVariable("c", 4), []gem.IndexKey{j})
		ms = NewMonomialSum()
	)
	//
	ms.Add([]*gem.Index{i}, []gem.Node{a}, gem.One)
	ms.Add([]*gem.Index{j}, []gem.Node{c}, gem.One)
	ms.Add([]*gem.Index{i}, []gem.Node{a}, gem.NewScalarLiteral(2))
	//
	groups := ms.UniqueSumIndices()
	//
	if len(groups) != 2 {
		t.Fatalf("expected two index groups, got %d", len(groups))
	} else if len(groups[0].Indices) != 1 || groups[0].Indices[0] != i {
		t.Errorf("expected first group over i, got %v", groups[0].Indices)
	} else if len(groups[1].Indices) != 1 || groups[1].Indices[0] != j {
		t.Errorf("expected second group over j, got %v", groups[1].Indices)
	}
}

// ============================================================================
// Monomial collection
// ============================================================================

func Test_CollectMonomials_01(t *testing.T) {
	// a(k) * (b(k) + c(k)) expands into two monomials.
	var (
		k          = gem.NewIndex(3)
		a          = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{k})
		b          = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{k})
		c          = gem.NewIndexed(gem.NewVariable("c", 3), []gem.IndexKey{k})
		expr       = gem.NewProduct(a, gem.NewSum(b, c))
		classifier = NewArgumentClassifier(gem.NewIndexSet(k))
	)
	//
	collected, err := CollectMonomials([]gem.Node{expr}, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	if collected[0].Len() != 2 {
		t.Fatalf("expected two monomials, got %d", collected[0].Len())
	}
	//
	checkEquivalent(t, expr, collected[0].ToExpression(), monomialEnv())
}

func Test_CollectMonomials_02(t *testing.T) {
	// Contraction indices absent from every atomic factor are contracted into
	// the rest immediately.
	var (
		k          = gem.NewIndex(3)
		q          = gem.NewIndex(4)
		a          = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{k})
		w          = gem.NewIndexed(gem.NewVariable("w", 4), []gem.IndexKey{q})
		expr       = gem.NewIndexSum(gem.NewProduct(a, w), []*gem.Index{q})
		classifier = NewArgumentClassifier(gem.NewIndexSet(k))
	)
	//
	collected, err := CollectMonomials([]gem.Node{expr}, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	if collected[0].Len() != 1 {
		t.Fatalf("expected one monomial, got %d", collected[0].Len())
	}
	//
	monomial := collected[0].Monomials()[0]
	//
	if len(monomial.SumIndices) != 0 {
		t.Errorf("expected contraction over q to move into the rest, got %v", monomial.SumIndices)
	} else if len(monomial.Atomics) != 1 || monomial.Atomics[0] != a {
		t.Errorf("expected atomics [a], got %v", monomial.Atomics)
	}
	//
	checkEquivalent(t, expr, collected[0].ToExpression(), monomialEnv())
}

func Test_CollectMonomials_03(t *testing.T) {
	// Compound accesses into explicit tables force unrolling of the indices
	// involved, since a table cannot be factorised symbolically.
	var (
		k     = gem.NewIndex(3)
		l     = gem.NewIndex(3)
		i     = gem.NewIndex(2)
		a     = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{k})
		b     = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{l})
		u     = gem.NewIndexed(gem.NewVariable("u", 3), []gem.IndexKey{k})
		v     = gem.NewIndexed(gem.NewVariable("v", 3), []gem.IndexKey{l})
		table = gem.NewListTensor(gem.NewNodeArrayFromSlice(
			[]gem.Node{gem.NewProduct(a, b), gem.NewProduct(u, v)}, 2))
		expr       = gem.NewIndexSum(gem.NewIndexed(table, []gem.IndexKey{i}), []*gem.Index{i})
		classifier = NewArgumentClassifier(gem.NewIndexSet(k, l))
	)
	//
	collected, err := CollectMonomials([]gem.Node{expr}, classifier)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	//
	env := monomialEnv().
		BindVariable("u", gem.NewTensorFromData([]float64{2, 4, 8}, 3)).
		BindVariable("v", gem.NewTensorFromData([]float64{3, 5, 7}, 3))
	checkEquivalent(t, expr, collected[0].ToExpression(), env)
}

func Test_CollectMonomials_Err1(t *testing.T) {
	// A compound expression which is not an addition cannot be expanded.
	var (
		k          = gem.NewIndex(3)
		a          = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{k})
		expr       = gem.NewMathFunction("sin", a)
		classifier = NewArgumentClassifier(gem.NewIndexSet(k))
	)
	//
	_, err := CollectMonomials([]gem.Node{expr}, classifier)
	//
	var failure *FactorisationError
	if !errors.As(err, &failure) {
		t.Fatalf("expected factorisation error, got %v", err)
	} else if failure.Expression != expr {
		t.Errorf("expected offending expression %s, got %s", expr, failure.Expression)
	}
}

// monomialEnv binds every variable used by the monomial tests.
func monomialEnv() *gem.Env {
	return gem.NewEnv().
		BindVariable("a", gem.NewTensorFromData([]float64{1, 2, 3}, 3)).
		BindVariable("b", gem.NewTensorFromData([]float64{4, 5, 6}, 3)).
		BindVariable("c", gem.NewTensorFromData([]float64{7, 8, 9, 10}, 4)).
		BindVariable("d", gem.NewTensorFromData([]float64{11, 12, 13, 14}, 4)).
		BindVariable("r1", gem.Scalar(2)).
		BindVariable("r2", gem.Scalar(5)).
		BindVariable("w", gem.NewTensorFromData([]float64{0.5, 1, 1.5, 2}, 4))
}
