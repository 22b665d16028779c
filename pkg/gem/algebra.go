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
)

func assertScalar(n Node, op string) {
	if len(n.Shape()) != 0 {
		panic(fmt.Sprintf("%s requires scalar operands, got shape %v", op, n.Shape()))
	}
}

// ============================================================================
// Sum
// ============================================================================

// Sum is the addition of two scalar expressions.
type Sum struct {
	node
	X, Y Node
}

// NewSum constructs the sum of two scalars, folding zero operands.
func NewSum(x Node, y Node) Node {
	assertScalar(x, "sum")
	assertScalar(y, "sum")
	//
	if IsZero(x) {
		return y
	} else if IsZero(y) {
		return x
	}
	//
	return intern(&Sum{X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *Sum) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *Sum) Reconstruct(children []Node) Node { return NewSum(children[0], children[1]) }

func (p *Sum) String() string { return fmt.Sprintf("(+ %s %s)", p.X, p.Y) }

func (p *Sum) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagSum)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *Sum) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// ============================================================================
// Product
// ============================================================================

// Product is the multiplication of two scalar expressions.
type Product struct {
	node
	X, Y Node
}

// NewProduct constructs the product of two scalars, folding zero and unit
// operands.
func NewProduct(x Node, y Node) Node {
	assertScalar(x, "product")
	assertScalar(y, "product")
	//
	if IsZero(x) || IsZero(y) {
		return NewZero()
	} else if x == One {
		return y
	} else if y == One {
		return x
	}
	//
	return intern(&Product{X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *Product) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *Product) Reconstruct(children []Node) Node { return NewProduct(children[0], children[1]) }

func (p *Product) String() string { return fmt.Sprintf("(* %s %s)", p.X, p.Y) }

func (p *Product) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagProduct)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *Product) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// ============================================================================
// Division
// ============================================================================

// Division is the quotient of two scalar expressions.
type Division struct {
	node
	X, Y Node
}

// NewDivision constructs the quotient of two scalars, folding a zero
// dividend.
func NewDivision(x Node, y Node) Node {
	assertScalar(x, "division")
	assertScalar(y, "division")
	//
	if IsZero(x) {
		return NewZero()
	} else if y == One {
		return x
	}
	//
	return intern(&Division{X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *Division) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *Division) Reconstruct(children []Node) Node { return NewDivision(children[0], children[1]) }

func (p *Division) String() string { return fmt.Sprintf("(/ %s %s)", p.X, p.Y) }

func (p *Division) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagDivision)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *Division) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// ============================================================================
// Power
// ============================================================================

// Power raises a scalar base to a scalar exponent.
type Power struct {
	node
	Base, Exponent Node
}

// NewPower constructs base raised to exponent.
func NewPower(base Node, exponent Node) Node {
	assertScalar(base, "power")
	assertScalar(exponent, "power")
	//
	return intern(&Power{Base: base, Exponent: exponent})
}

// Children implementation for the Node interface.
func (p *Power) Children() []Node { return []Node{p.Base, p.Exponent} }

// Reconstruct implementation for the Node interface.
func (p *Power) Reconstruct(children []Node) Node { return NewPower(children[0], children[1]) }

func (p *Power) String() string { return fmt.Sprintf("(pow %s %s)", p.Base, p.Exponent) }

func (p *Power) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagPower)
	keyNode(buf, p.Base)
	keyNode(buf, p.Exponent)
}

func (p *Power) computeFree() IndexSet { return UnionFreeIndices(p.Base, p.Exponent) }

// ============================================================================
// MathFunction
// ============================================================================

// MathFunction applies a named scalar function (sin, cos, sqrt, ...) to its
// argument.
type MathFunction struct {
	node
	Name string
	Arg  Node
}

// NewMathFunction constructs the application of a named function to a scalar
// argument.
func NewMathFunction(name string, arg Node) Node {
	assertScalar(arg, name)
	//
	return intern(&MathFunction{Name: name, Arg: arg})
}

// Children implementation for the Node interface.
func (p *MathFunction) Children() []Node { return []Node{p.Arg} }

// Reconstruct implementation for the Node interface.
func (p *MathFunction) Reconstruct(children []Node) Node { return NewMathFunction(p.Name, children[0]) }

func (p *MathFunction) String() string { return fmt.Sprintf("(%s %s)", p.Name, p.Arg) }

func (p *MathFunction) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagMathFunction)
	keyString(buf, p.Name)
	keyNode(buf, p.Arg)
}

func (p *MathFunction) computeFree() IndexSet { return p.Arg.FreeIndices() }
