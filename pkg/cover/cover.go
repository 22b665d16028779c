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

// Package cover provides an exact solver for small weighted set-cover
// problems: given binary variables with non-negative weights and a list of
// constraints each requiring at least one of its variables to be selected,
// find a selection of minimal total weight.  Instances are expected to be
// small (tens of variables), so the solver searches exhaustively with
// branch-and-bound pruning rather than delegating to an external program
// solver.
package cover

import (
	"errors"
	"fmt"
	"math"

	"github.com/bits-and-blooms/bitset"
)

// Problem is a weighted set-cover instance under construction.
type Problem struct {
	weights     []int64
	constraints []*bitset.BitSet
}

// NewProblem creates an empty problem over a given number of binary
// variables, all initially of weight one.
func NewProblem(variables uint) *Problem {
	weights := make([]int64, variables)
	for i := range weights {
		weights[i] = 1
	}
	//
	return &Problem{weights: weights}
}

// Variables returns the number of variables of this problem.
func (p *Problem) Variables() uint {
	return uint(len(p.weights))
}

// SetWeight assigns the selection cost of a variable.  Weights must be
// non-negative, otherwise pruning during the search is unsound.
func (p *Problem) SetWeight(variable uint, weight int64) {
	if weight < 0 {
		panic(fmt.Sprintf("negative weight %d for variable %d", weight, variable))
	}
	//
	p.weights[variable] = weight
}

// AddConstraint requires that at least one of the given variables be
// selected.
func (p *Problem) AddConstraint(variables ...uint) {
	constraint := bitset.New(p.Variables())
	//
	for _, variable := range variables {
		if variable >= p.Variables() {
			panic(fmt.Sprintf("variable %d out of range", variable))
		}
		//
		constraint.Set(variable)
	}
	//
	p.constraints = append(p.constraints, constraint)
}

// Solve determines a minimum-weight selection satisfying every constraint,
// returning one boolean per variable.  Ties are broken arbitrarily.  An
// infeasible instance (i.e. one with an empty constraint) yields an error.
func (p *Problem) Solve() ([]bool, error) {
	for i, constraint := range p.constraints {
		if constraint.Count() == 0 {
			return nil, fmt.Errorf("constraint %d covers no variables", i)
		}
	}
	//
	s := &solver{
		problem:  p,
		selected: bitset.New(p.Variables()),
		best:     math.MaxInt64,
	}
	//
	s.search(0)
	//
	if s.solution == nil {
		// Unreachable given non-empty constraints, since selecting every
		// variable satisfies them all.
		return nil, errors.New("exhausted search without a feasible cover")
	}
	//
	result := make([]bool, p.Variables())
	for i := range result {
		result[i] = s.solution.Test(uint(i))
	}
	//
	return result, nil
}

// solver holds the branch-and-bound search state.
type solver struct {
	problem *Problem
	// selected is the partial selection along the current branch.
	selected *bitset.BitSet
	// solution is the best complete selection found so far, if any.
	solution *bitset.BitSet
	best     int64
}

// search extends the current partial selection to satisfy the first violated
// constraint, branching on each of that constraint's variables.  Branches
// whose weight cannot beat the incumbent are pruned.
func (p *solver) search(weight int64) {
	violated := p.violatedConstraint()
	//
	if violated == nil {
		if weight < p.best {
			p.best = weight
			p.solution = p.selected.Clone()
		}
		//
		return
	}
	//
	for i, ok := violated.NextSet(0); ok; i, ok = violated.NextSet(i + 1) {
		branch := weight + p.problem.weights[i]
		//
		if branch >= p.best {
			continue
		}
		//
		p.selected.Set(i)
		p.search(branch)
		p.selected.Clear(i)
	}
}

// violatedConstraint returns some constraint sharing no variable with the
// current selection, or nil when the selection is a cover.
func (p *solver) violatedConstraint() *bitset.BitSet {
	for _, constraint := range p.problem.constraints {
		if constraint.IntersectionCardinality(p.selected) == 0 {
			return constraint
		}
	}
	//
	return nil
}
