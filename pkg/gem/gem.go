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

// Package gem provides an immutable, structurally hash-consed expression DAG
// for tensor algebra, as produced by integrating weak-form variational
// problems.  Structurally identical nodes are represented by the same object,
// so node identity is structural equality and sub-expressions shared between
// parents are stored once.
package gem

import (
	"bytes"
	"encoding/binary"
	"math"
)

// Node is a single expression in the DAG.  Nodes are immutable and canonical:
// constructing a node structurally identical to an existing one returns the
// existing object.  Rewrites therefore never mutate; they construct new nodes
// or return their input unchanged.
type Node interface {
	// Children returns the ordered sub-expressions of this node.  Terminals
	// return nil.
	Children() []Node
	// Shape returns the extent of every dimension of this expression, with nil
	// denoting a scalar.
	Shape() []uint
	// FreeIndices returns the canonically ordered set of free indices of this
	// expression (indices not bound by an enclosing contraction or component
	// tensor).
	FreeIndices() IndexSet
	// Reconstruct builds a node of the same kind, with the same auxiliary
	// parameters, over new children.  Constructor simplifications apply, so
	// the result may be of a different kind (e.g. indexing a zero tensor).
	Reconstruct(children []Node) Node
	//
	String() string
	// Internal hooks for the interner; the node taxonomy is closed.
	base() *node
	encode(buf *bytes.Buffer)
	computeFree() IndexSet
}

// node carries the fields shared by every kind, populated at interning time.
type node struct {
	ord  uint
	free IndexSet
}

func (p *node) base() *node { return p }

// FreeIndices implementation for the Node interface.
func (p *node) FreeIndices() IndexSet { return p.free }

// Shape implementation for the Node interface (scalar by default; shaped
// kinds shadow this).
func (p *node) Shape() []uint { return nil }

// Children implementation for the Node interface (terminal by default;
// operator kinds shadow this).
func (p *node) Children() []Node { return nil }

// ============================================================================
// Interner
// ============================================================================

var (
	interned   = make(map[string]Node)
	ordCounter uint
)

// intern returns the canonical node for a freshly constructed candidate,
// registering the candidate if no structurally identical node exists yet.
func intern(candidate Node) Node {
	var buf bytes.Buffer
	//
	candidate.encode(&buf)
	key := buf.String()
	//
	if existing, ok := interned[key]; ok {
		return existing
	}
	//
	ordCounter++
	base := candidate.base()
	base.ord = ordCounter
	base.free = candidate.computeFree()
	interned[key] = candidate
	//
	return candidate
}

// Ord returns a unique identifier for a canonical node, assigned in creation
// order.  It provides a deterministic total order over nodes, used wherever
// node collections must iterate reproducibly.
func Ord(n Node) uint {
	return n.base().ord
}

// ============================================================================
// Structural key encoding
// ============================================================================

// Kind tags for structural keys.
const (
	tagLiteral byte = iota
	tagZero
	tagIdentity
	tagFailure
	tagVariable
	tagSum
	tagProduct
	tagDivision
	tagPower
	tagMathFunction
	tagComparison
	tagLogicalAnd
	tagLogicalOr
	tagLogicalNot
	tagConditional
	tagIndexed
	tagFlexiblyIndexed
	tagIndexSum
	tagComponentTensor
	tagListTensor
	tagDelta
	// IndexKey tags
	tagFreeIndex
	tagFixedIndex
	tagVariableIndex
)

func keyUint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	//
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func keyFloat(buf *bytes.Buffer, v float64) {
	keyUint(buf, math.Float64bits(v))
}

func keyString(buf *bytes.Buffer, s string) {
	keyUint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func keyShape(buf *bytes.Buffer, shape []uint) {
	keyUint(buf, uint64(len(shape)))
	//
	for _, s := range shape {
		keyUint(buf, uint64(s))
	}
}

func keyNode(buf *bytes.Buffer, n Node) {
	keyUint(buf, uint64(Ord(n)))
}

func keyIndex(buf *bytes.Buffer, key IndexKey) {
	switch k := key.(type) {
	case *Index:
		buf.WriteByte(tagFreeIndex)
		keyUint(buf, uint64(k.id))
	case FixedIndex:
		buf.WriteByte(tagFixedIndex)
		keyUint(buf, uint64(k))
	case VariableIndex:
		buf.WriteByte(tagVariableIndex)
		keyNode(buf, k.Expr)
	default:
		panic("unknown index kind")
	}
}

// keyFree returns the free indices referenced by a multiindex entry.
func keyFree(key IndexKey) IndexSet {
	switch k := key.(type) {
	case *Index:
		return IndexSet{k}
	case VariableIndex:
		return k.Expr.FreeIndices()
	default:
		return nil
	}
}
