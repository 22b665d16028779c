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
	"slices"
)

// ============================================================================
// Comparison
// ============================================================================

var comparisonOps = []string{"==", "!=", "<", "<=", ">", ">="}

// Comparison compares two scalar expressions, yielding a boolean.
type Comparison struct {
	node
	Op   string
	X, Y Node
}

// NewComparison constructs a comparison of two scalars under a given
// operator.
func NewComparison(op string, x Node, y Node) Node {
	if !slices.Contains(comparisonOps, op) {
		panic(fmt.Sprintf("invalid comparison operator %q", op))
	}
	//
	assertScalar(x, op)
	assertScalar(y, op)
	//
	return intern(&Comparison{Op: op, X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *Comparison) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *Comparison) Reconstruct(children []Node) Node {
	return NewComparison(p.Op, children[0], children[1])
}

func (p *Comparison) String() string { return fmt.Sprintf("(%s %s %s)", p.Op, p.X, p.Y) }

func (p *Comparison) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagComparison)
	keyString(buf, p.Op)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *Comparison) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// ============================================================================
// LogicalAnd / LogicalOr / LogicalNot
// ============================================================================

// LogicalAnd is the conjunction of two boolean expressions.
type LogicalAnd struct {
	node
	X, Y Node
}

// NewLogicalAnd constructs the conjunction of two boolean expressions.
func NewLogicalAnd(x Node, y Node) Node {
	assertScalar(x, "and")
	assertScalar(y, "and")
	//
	return intern(&LogicalAnd{X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *LogicalAnd) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *LogicalAnd) Reconstruct(children []Node) Node { return NewLogicalAnd(children[0], children[1]) }

func (p *LogicalAnd) String() string { return fmt.Sprintf("(and %s %s)", p.X, p.Y) }

func (p *LogicalAnd) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagLogicalAnd)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *LogicalAnd) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// LogicalOr is the disjunction of two boolean expressions.
type LogicalOr struct {
	node
	X, Y Node
}

// NewLogicalOr constructs the disjunction of two boolean expressions.
func NewLogicalOr(x Node, y Node) Node {
	assertScalar(x, "or")
	assertScalar(y, "or")
	//
	return intern(&LogicalOr{X: x, Y: y})
}

// Children implementation for the Node interface.
func (p *LogicalOr) Children() []Node { return []Node{p.X, p.Y} }

// Reconstruct implementation for the Node interface.
func (p *LogicalOr) Reconstruct(children []Node) Node { return NewLogicalOr(children[0], children[1]) }

func (p *LogicalOr) String() string { return fmt.Sprintf("(or %s %s)", p.X, p.Y) }

func (p *LogicalOr) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagLogicalOr)
	keyNode(buf, p.X)
	keyNode(buf, p.Y)
}

func (p *LogicalOr) computeFree() IndexSet { return UnionFreeIndices(p.X, p.Y) }

// LogicalNot is the negation of a boolean expression.
type LogicalNot struct {
	node
	X Node
}

// NewLogicalNot constructs the negation of a boolean expression.
func NewLogicalNot(x Node) Node {
	assertScalar(x, "not")
	//
	return intern(&LogicalNot{X: x})
}

// Children implementation for the Node interface.
func (p *LogicalNot) Children() []Node { return []Node{p.X} }

// Reconstruct implementation for the Node interface.
func (p *LogicalNot) Reconstruct(children []Node) Node { return NewLogicalNot(children[0]) }

func (p *LogicalNot) String() string { return fmt.Sprintf("(not %s)", p.X) }

func (p *LogicalNot) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagLogicalNot)
	keyNode(buf, p.X)
}

func (p *LogicalNot) computeFree() IndexSet { return p.X.FreeIndices() }

// ============================================================================
// Conditional
// ============================================================================

// Conditional selects between two scalar values based on a boolean condition.
type Conditional struct {
	node
	Condition, Then, Else Node
}

// NewConditional constructs a conditional selection between two scalars.
func NewConditional(condition Node, then Node, otherwise Node) Node {
	assertScalar(condition, "conditional")
	assertScalar(then, "conditional")
	assertScalar(otherwise, "conditional")
	//
	return intern(&Conditional{Condition: condition, Then: then, Else: otherwise})
}

// Children implementation for the Node interface.
func (p *Conditional) Children() []Node { return []Node{p.Condition, p.Then, p.Else} }

// Reconstruct implementation for the Node interface.
func (p *Conditional) Reconstruct(children []Node) Node {
	return NewConditional(children[0], children[1], children[2])
}

func (p *Conditional) String() string {
	return fmt.Sprintf("(? %s %s %s)", p.Condition, p.Then, p.Else)
}

func (p *Conditional) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagConditional)
	keyNode(buf, p.Condition)
	keyNode(buf, p.Then)
	keyNode(buf, p.Else)
}

func (p *Conditional) computeFree() IndexSet {
	return UnionFreeIndices(p.Condition, p.Then, p.Else)
}
