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
	"bytes"
	"fmt"
	"strconv"
)

// One is the canonical scalar literal 1, the unit of products.
var One Node

func init() {
	One = NewLiteral(Scalar(1))
}

// ============================================================================
// Literal
// ============================================================================

// Literal is a constant array of values.  An all-zero literal is canonicalised
// to Zero at construction.
type Literal struct {
	node
	value *Tensor
}

// NewLiteral constructs a constant node holding the given array.
func NewLiteral(value *Tensor) Node {
	if value.IsZero() {
		return NewZero(value.Shape()...)
	}
	//
	return intern(&Literal{value: value})
}

// NewScalarLiteral constructs a constant scalar node.
func NewScalarLiteral(value float64) Node {
	return NewLiteral(Scalar(value))
}

// Value returns the constant array held by this literal.
func (p *Literal) Value() *Tensor { return p.value }

// Shape implementation for the Node interface.
func (p *Literal) Shape() []uint { return p.value.Shape() }

// Reconstruct implementation for the Node interface.
func (p *Literal) Reconstruct(children []Node) Node { return p }

func (p *Literal) String() string {
	if len(p.value.Shape()) == 0 {
		return strconv.FormatFloat(p.value.At(), 'g', -1, 64)
	}
	//
	return fmt.Sprintf("(literal %v %v)", p.value.Shape(), p.value.Data())
}

func (p *Literal) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagLiteral)
	keyShape(buf, p.value.Shape())
	//
	for _, v := range p.value.Data() {
		keyFloat(buf, v)
	}
}

func (p *Literal) computeFree() IndexSet { return nil }

// ============================================================================
// Zero
// ============================================================================

// Zero is an all-zero tensor of a given shape.
type Zero struct {
	node
	shape []uint
}

// NewZero constructs the zero tensor of a given shape.
func NewZero(shape ...uint) Node {
	return intern(&Zero{shape: shape})
}

// IsZero checks whether a node is a zero tensor of any shape.
func IsZero(n Node) bool {
	_, ok := n.(*Zero)
	return ok
}

// Shape implementation for the Node interface.
func (p *Zero) Shape() []uint { return p.shape }

// Reconstruct implementation for the Node interface.
func (p *Zero) Reconstruct(children []Node) Node { return p }

func (p *Zero) String() string { return "0" }

func (p *Zero) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagZero)
	keyShape(buf, p.shape)
}

func (p *Zero) computeFree() IndexSet { return nil }

// ============================================================================
// Identity
// ============================================================================

// Identity is the dim x dim identity matrix.
type Identity struct {
	node
	dim uint
}

// NewIdentity constructs the identity matrix of a given dimension.
func NewIdentity(dim uint) Node {
	return intern(&Identity{dim: dim})
}

// Dim returns the dimension of this identity matrix.
func (p *Identity) Dim() uint { return p.dim }

// Shape implementation for the Node interface.
func (p *Identity) Shape() []uint { return []uint{p.dim, p.dim} }

// Reconstruct implementation for the Node interface.
func (p *Identity) Reconstruct(children []Node) Node { return p }

func (p *Identity) String() string { return fmt.Sprintf("(identity %d)", p.dim) }

func (p *Identity) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagIdentity)
	keyUint(buf, uint64(p.dim))
}

func (p *Identity) computeFree() IndexSet { return nil }

// ============================================================================
// Failure
// ============================================================================

// Failure marks a value whose computation failed upstream.  It poisons every
// expression depending on it: optimisation passes must propagate it untouched
// rather than mask it.
type Failure struct {
	node
	shape  []uint
	reason string
}

// NewFailure constructs a failure marker of a given shape.
func NewFailure(reason string, shape ...uint) Node {
	return intern(&Failure{shape: shape, reason: reason})
}

// Reason describes why the upstream computation failed.
func (p *Failure) Reason() string { return p.reason }

// Shape implementation for the Node interface.
func (p *Failure) Shape() []uint { return p.shape }

// Reconstruct implementation for the Node interface.
func (p *Failure) Reconstruct(children []Node) Node { return p }

func (p *Failure) String() string { return fmt.Sprintf("(failure %q)", p.reason) }

func (p *Failure) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagFailure)
	keyShape(buf, p.shape)
	keyString(buf, p.reason)
}

func (p *Failure) computeFree() IndexSet { return nil }

// ============================================================================
// Variable
// ============================================================================

// Variable is a named tensor-valued input (e.g. a coefficient or tabulation
// provided by the host).
type Variable struct {
	node
	name  string
	shape []uint
}

// NewVariable constructs a named variable of a given shape.
func NewVariable(name string, shape ...uint) Node {
	return intern(&Variable{name: name, shape: shape})
}

// Name returns the host-level name of this variable.
func (p *Variable) Name() string { return p.name }

// Shape implementation for the Node interface.
func (p *Variable) Shape() []uint { return p.shape }

// Reconstruct implementation for the Node interface.
func (p *Variable) Reconstruct(children []Node) Node { return p }

func (p *Variable) String() string { return p.name }

func (p *Variable) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagVariable)
	keyString(buf, p.name)
	keyShape(buf, p.shape)
}

func (p *Variable) computeFree() IndexSet { return nil }
