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

func Test_AssociateProduct_01(t *testing.T) {
	// Factors over independent indices of extents 2, 3 and 5: combining the
	// cheapest pair first gives 2*3 + 2*3*5 = 36 operations, beating any other
	// tree shape.
	var (
		i = gem.NewIndex(2)
		j = gem.NewIndex(3)
		k = gem.NewIndex(5)
		a = gem.NewIndexed(gem.NewVariable("a", 2), []gem.IndexKey{i})
		b = gem.NewIndexed(gem.NewVariable("b", 3), []gem.IndexKey{j})
		c = gem.NewIndexed(gem.NewVariable("c", 5), []gem.IndexKey{k})
	)
	//
	product, flops := AssociateProduct([]gem.Node{a, b, c})
	//
	if flops != 36 {
		t.Errorf("expected 36 operations, got %d", flops)
	}
	//
	checkNode(t, gem.NewProduct(gem.NewProduct(a, b), c), product)
}

func Test_AssociateProduct_02(t *testing.T) {
	// A single factor involves no operations.
	x := gem.NewVariable("x")
	//
	product, flops := AssociateProduct([]gem.Node{x})
	//
	if flops != 0 {
		t.Errorf("expected 0 operations, got %d", flops)
	}
	//
	checkNode(t, x, product)
}

func Test_AssociateProduct_03(t *testing.T) {
	// The operand limit is inclusive.
	operands := make([]gem.Node, 32)
	for i := range operands {
		operands[i] = gem.NewScalarLiteral(float64(i + 2))
	}
	//
	if _, flops := AssociateProduct(operands); flops != 31 {
		t.Errorf("expected 31 operations for 32 scalars, got %d", flops)
	}
}

func Test_AssociateProduct_Err1(t *testing.T) {
	checkPanics(t, func() {
		AssociateProduct(nil)
	})
}

func Test_AssociateProduct_Err2(t *testing.T) {
	operands := make([]gem.Node, 33)
	for i := range operands {
		operands[i] = gem.NewScalarLiteral(float64(i + 2))
	}
	//
	checkPanics(t, func() {
		AssociateProduct(operands)
	})
}

func Test_AssociateSum_01(t *testing.T) {
	// Summands sharing a free-index set are summed before any associativity
	// choice is made.
	var (
		i = gem.NewIndex(4)
		j = gem.NewIndex(5)
		x = gem.NewIndexed(gem.NewVariable("x", 4), []gem.IndexKey{i})
		y = gem.NewIndexed(gem.NewVariable("y", 4), []gem.IndexKey{i})
		z = gem.NewIndexed(gem.NewVariable("z", 5), []gem.IndexKey{j})
	)
	//
	sum, flops := AssociateSum([]gem.Node{x, y, z})
	//
	checkNode(t, gem.NewSum(gem.NewSum(x, y), z), sum)
	// Combining the two groups costs one operation per assignment of {i,j}.
	if flops != 20 {
		t.Errorf("expected 20 operations, got %d", flops)
	}
}

func Test_ReassociateProduct_01(t *testing.T) {
	// A left-leaning product tree is rebuilt so the cheap factors combine
	// first.
	var (
		i    = gem.NewIndex(5)
		j    = gem.NewIndex(2)
		k    = gem.NewIndex(3)
		a    = gem.NewIndexed(gem.NewVariable("a", 5), []gem.IndexKey{i})
		b    = gem.NewIndexed(gem.NewVariable("b", 2), []gem.IndexKey{j})
		c    = gem.NewIndexed(gem.NewVariable("c", 3), []gem.IndexKey{k})
		expr = gem.NewProduct(gem.NewProduct(a, b), c)
	)
	//
	result := ReassociateProduct([]gem.Node{expr})[0]
	//
	checkNode(t, gem.NewProduct(a, gem.NewProduct(b, c)), result)
}

func Test_ReassociateProduct_02(t *testing.T) {
	// A product referenced from more than one parent is not broken up.
	var (
		i      = gem.NewIndex(5)
		j      = gem.NewIndex(2)
		k      = gem.NewIndex(3)
		a      = gem.NewIndexed(gem.NewVariable("a", 5), []gem.IndexKey{i})
		b      = gem.NewIndexed(gem.NewVariable("b", 2), []gem.IndexKey{j})
		c      = gem.NewIndexed(gem.NewVariable("c", 3), []gem.IndexKey{k})
		shared = gem.NewProduct(a, b)
		expr   = gem.NewSum(gem.NewProduct(shared, c), shared)
	)
	//
	result := ReassociateProduct([]gem.Node{expr})[0]
	//
	found := false
	for _, n := range gem.Traversal([]gem.Node{result}) {
		found = found || n == shared
	}
	//
	if !found {
		t.Errorf("shared product was broken up in %s", result)
	}
}
