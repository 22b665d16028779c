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

func Test_Flops_01(t *testing.T) {
	// A scalar addition is a single operation; its operands are free loads.
	var (
		x = gem.NewVariable("x")
		y = gem.NewVariable("y")
	)
	//
	if flops := CountFlops(gem.NewSum(x, y)); flops != 1 {
		t.Errorf("expected 1 operation, got %d", flops)
	}
}

func Test_Flops_02(t *testing.T) {
	// An operation under free indices is counted once per assignment.
	var (
		i = gem.NewIndex(4)
		a = gem.NewIndexed(gem.NewVariable("a", 4), []gem.IndexKey{i})
		b = gem.NewIndexed(gem.NewVariable("b", 4), []gem.IndexKey{i})
	)
	// 4 multiplications, then 4 additions into the accumulator.
	if flops := CountFlops(gem.NewIndexSum(gem.NewProduct(a, b), []*gem.Index{i})); flops != 8 {
		t.Errorf("expected 8 operations, got %d", flops)
	}
}

func Test_Flops_03(t *testing.T) {
	// Shared sub-expressions are counted once.
	var (
		x      = gem.NewVariable("x")
		y      = gem.NewVariable("y")
		shared = gem.NewProduct(x, y)
	)
	//
	if flops := CountFlops(gem.NewSum(shared, shared)); flops != 2 {
		t.Errorf("expected 2 operations, got %d", flops)
	}
}

func Test_Flops_04(t *testing.T) {
	// Loads, selections and logical glue are free.
	var (
		i    = gem.NewIndex(3)
		j    = gem.NewIndex(3)
		a    = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		expr = gem.NewConditional(gem.NewLogicalNot(gem.NewVariable("p")), a, gem.NewDelta(i, j))
	)
	//
	if flops := CountFlops(expr); flops != 0 {
		t.Errorf("expected 0 operations, got %d", flops)
	}
}

func Test_Flops_Err1(t *testing.T) {
	// Component tensors must be inlined before counting.
	var (
		i      = gem.NewIndex(3)
		a      = gem.NewIndexed(gem.NewVariable("a", 3), []gem.IndexKey{i})
		tensor = gem.NewComponentTensor(a, []*gem.Index{i})
	)
	//
	checkPanics(t, func() {
		CountFlops(tensor)
	})
}
