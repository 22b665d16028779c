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
package gem

import (
	"fmt"
	"math"
	"slices"
)

// Env binds the free indices and named variables an expression is evaluated
// under.
type Env struct {
	Indices   map[*Index]uint
	Variables map[string]*Tensor
}

// NewEnv constructs an empty evaluation environment.
func NewEnv() *Env {
	return &Env{make(map[*Index]uint), make(map[string]*Tensor)}
}

// Bind assigns a value to a free index, returning the environment for
// chaining.
func (p *Env) Bind(index *Index, value uint) *Env {
	p.Indices[index] = value
	return p
}

// BindVariable assigns a tensor to a named variable, returning the
// environment for chaining.
func (p *Env) BindVariable(name string, value *Tensor) *Env {
	p.Variables[name] = value
	return p
}

// Evaluate computes the numeric value of an expression under a given
// environment, which must bind every free index and every variable of the
// expression.  This is a reference evaluator: it recomputes shared nodes and
// makes no attempt to be fast.
func Evaluate(n Node, env *Env) *Tensor {
	switch t := n.(type) {
	case *Literal:
		return t.value
	case *Zero:
		return NewTensor(t.shape...)
	case *Identity:
		result := NewTensor(t.dim, t.dim)
		for i := uint(0); i < t.dim; i++ {
			result.Set(1, i, i)
		}
		//
		return result
	case *Failure:
		panic(fmt.Sprintf("evaluating failure marker: %s", t.reason))
	case *Variable:
		value, ok := env.Variables[t.name]
		if !ok {
			panic(fmt.Sprintf("unbound variable %s", t.name))
		} else if !slices.Equal(value.Shape(), t.shape) {
			panic(fmt.Sprintf("variable %s bound to shape %v, expected %v", t.name, value.Shape(), t.shape))
		}
		//
		return value
	case *Sum:
		return Scalar(evalScalar(t.X, env) + evalScalar(t.Y, env))
	case *Product:
		return Scalar(evalScalar(t.X, env) * evalScalar(t.Y, env))
	case *Division:
		return Scalar(evalScalar(t.X, env) / evalScalar(t.Y, env))
	case *Power:
		return Scalar(math.Pow(evalScalar(t.Base, env), evalScalar(t.Exponent, env)))
	case *MathFunction:
		return Scalar(evalMathFunction(t.Name, evalScalar(t.Arg, env)))
	case *Comparison:
		return Scalar(boolValue(evalComparison(t.Op, evalScalar(t.X, env), evalScalar(t.Y, env))))
	case *LogicalAnd:
		return Scalar(boolValue(evalScalar(t.X, env) != 0 && evalScalar(t.Y, env) != 0))
	case *LogicalOr:
		return Scalar(boolValue(evalScalar(t.X, env) != 0 || evalScalar(t.Y, env) != 0))
	case *LogicalNot:
		return Scalar(boolValue(evalScalar(t.X, env) == 0))
	case *Conditional:
		if evalScalar(t.Condition, env) != 0 {
			return Scalar(evalScalar(t.Then, env))
		}
		//
		return Scalar(evalScalar(t.Else, env))
	case *Indexed:
		child := Evaluate(t.Child, env)
		return Scalar(child.At(evalIndexKeys(t.MultiIndex, env)...))
	case *FlexiblyIndexed:
		child := Evaluate(t.Child, env)
		index := make([]uint, len(t.Dims))
		//
		for i, dim := range t.Dims {
			value := dim.Offset
			for _, term := range dim.Terms {
				value += evalIndexKey(term.Index, env) * term.Stride
			}
			//
			index[i] = value
		}
		//
		return Scalar(child.At(index...))
	case *IndexSum:
		return Scalar(evalIndexSum(t, env))
	case *ComponentTensor:
		result := NewTensor(t.shape...)
		//
		for _, alpha := range ShapeIndices(t.shape) {
			for i, index := range t.MultiIndex {
				env.Indices[index] = alpha[i]
			}
			//
			result.Set(evalScalar(t.Expr, env), alpha...)
		}
		//
		for _, index := range t.MultiIndex {
			delete(env.Indices, index)
		}
		//
		return result
	case *ListTensor:
		result := NewTensor(t.Array.Shape()...)
		//
		for i, ith := range t.Array.Nodes() {
			result.data[i] = evalScalar(ith, env)
		}
		//
		return result
	case *Delta:
		return Scalar(boolValue(evalIndexKey(t.I, env) == evalIndexKey(t.J, env)))
	default:
		panic(fmt.Sprintf("cannot evaluate node %s", n))
	}
}

func evalScalar(n Node, env *Env) float64 {
	return Evaluate(n, env).At()
}

func evalIndexSum(t *IndexSum, env *Env) float64 {
	shape := make([]uint, len(t.MultiIndex))
	for i, index := range t.MultiIndex {
		shape[i] = index.Extent()
	}
	//
	total := float64(0)
	//
	for _, alpha := range ShapeIndices(shape) {
		for i, index := range t.MultiIndex {
			env.Indices[index] = alpha[i]
		}
		//
		total += evalScalar(t.Summand, env)
	}
	//
	for _, index := range t.MultiIndex {
		delete(env.Indices, index)
	}
	//
	return total
}

func evalIndexKey(key IndexKey, env *Env) uint {
	switch k := key.(type) {
	case FixedIndex:
		return uint(k)
	case *Index:
		value, ok := env.Indices[k]
		if !ok {
			panic(fmt.Sprintf("unbound index %v", k))
		}
		//
		return value
	case VariableIndex:
		return uint(evalScalar(k.Expr, env))
	default:
		panic("unknown index kind")
	}
}

func evalIndexKeys(keys []IndexKey, env *Env) []uint {
	values := make([]uint, len(keys))
	for i, key := range keys {
		values[i] = evalIndexKey(key, env)
	}
	//
	return values
}

func evalMathFunction(name string, arg float64) float64 {
	switch name {
	case "sin":
		return math.Sin(arg)
	case "cos":
		return math.Cos(arg)
	case "tan":
		return math.Tan(arg)
	case "exp":
		return math.Exp(arg)
	case "ln":
		return math.Log(arg)
	case "sqrt":
		return math.Sqrt(arg)
	case "abs":
		return math.Abs(arg)
	default:
		panic(fmt.Sprintf("unknown math function %q", name))
	}
}

func evalComparison(op string, lhs float64, rhs float64) bool {
	switch op {
	case "==":
		return lhs == rhs
	case "!=":
		return lhs != rhs
	case "<":
		return lhs < rhs
	case "<=":
		return lhs <= rhs
	case ">":
		return lhs > rhs
	case ">=":
		return lhs >= rhs
	default:
		panic(fmt.Sprintf("invalid comparison operator %q", op))
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	//
	return 0
}
