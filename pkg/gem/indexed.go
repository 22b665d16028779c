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
	"strings"
)

// IsTerminal checks whether a node is a terminal (constant or variable) with
// no sub-expressions of its own.
func IsTerminal(n Node) bool {
	switch n.(type) {
	case *Literal, *Zero, *Identity, *Failure, *Variable:
		return true
	default:
		return false
	}
}

// ============================================================================
// Indexed
// ============================================================================

// Indexed is a scalar access into a shaped expression at a given multiindex.
type Indexed struct {
	node
	Child      Node
	MultiIndex []IndexKey
}

// NewIndexed constructs an access into a shaped expression.  Accesses into
// zero tensors, and fully fixed accesses into constants and list tensors, are
// folded at construction.
func NewIndexed(child Node, multiindex []IndexKey) Node {
	shape := child.Shape()
	if len(multiindex) != len(shape) {
		panic(fmt.Sprintf("rank %d expression indexed with %d indices", len(shape), len(multiindex)))
	}
	// Bounds and extent checks
	for i, key := range multiindex {
		switch k := key.(type) {
		case FixedIndex:
			if uint(k) >= shape[i] {
				panic(fmt.Sprintf("fixed index %d out of bounds for extent %d", k, shape[i]))
			}
		case *Index:
			if k.Extent() != shape[i] {
				panic(fmt.Sprintf("index of extent %d used for dimension of extent %d", k.Extent(), shape[i]))
			}
		}
	}
	//
	if IsZero(child) {
		return NewZero()
	}
	// Fold fully fixed accesses
	if fixed, ok := fixedValues(multiindex); ok {
		switch c := child.(type) {
		case *Literal:
			return NewScalarLiteral(c.Value().At(fixed...))
		case *Identity:
			if fixed[0] == fixed[1] {
				return One
			}
			//
			return NewZero()
		case *ListTensor:
			return c.Array.At(fixed...)
		}
	}
	//
	return intern(&Indexed{Child: child, MultiIndex: multiindex})
}

func fixedValues(multiindex []IndexKey) ([]uint, bool) {
	fixed := make([]uint, len(multiindex))
	//
	for i, key := range multiindex {
		k, ok := key.(FixedIndex)
		if !ok {
			return nil, false
		}
		//
		fixed[i] = uint(k)
	}
	//
	return fixed, true
}

// Children implementation for the Node interface.
func (p *Indexed) Children() []Node { return []Node{p.Child} }

// Reconstruct implementation for the Node interface.
func (p *Indexed) Reconstruct(children []Node) Node { return NewIndexed(children[0], p.MultiIndex) }

func (p *Indexed) String() string {
	return fmt.Sprintf("(ix %s%s)", p.Child, indexKeysString(p.MultiIndex))
}

func (p *Indexed) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagIndexed)
	keyNode(buf, p.Child)
	keyUint(buf, uint64(len(p.MultiIndex)))
	//
	for _, key := range p.MultiIndex {
		keyIndex(buf, key)
	}
}

func (p *Indexed) computeFree() IndexSet {
	free := p.Child.FreeIndices()
	//
	for _, key := range p.MultiIndex {
		free = free.Union(keyFree(key))
	}
	//
	return free
}

// ============================================================================
// FlexiblyIndexed
// ============================================================================

// StrideTerm is one index-times-stride contribution to a flexible access.
type StrideTerm struct {
	Index  IndexKey
	Stride uint
}

// DimIndex describes the access pattern of one dimension of a flexible
// access: a constant offset plus a sum of strided index contributions.
type DimIndex struct {
	Offset uint
	Terms  []StrideTerm
}

// FlexiblyIndexed is a scalar access into a terminal through an affine
// offset/stride access pattern, as used at code-emission boundaries.
type FlexiblyIndexed struct {
	node
	Child Node
	Dims  []DimIndex
}

// NewFlexiblyIndexed constructs a flexible access into a terminal.  The child
// must be a genuine terminal with no free indices of its own.
func NewFlexiblyIndexed(child Node, dims []DimIndex) Node {
	if !IsTerminal(child) {
		panic(fmt.Sprintf("flexible access into non-terminal %s", child))
	} else if len(child.FreeIndices()) != 0 {
		panic("flexible access into terminal with free indices")
	}
	//
	return intern(&FlexiblyIndexed{Child: child, Dims: dims})
}

// Children implementation for the Node interface.
func (p *FlexiblyIndexed) Children() []Node { return []Node{p.Child} }

// Reconstruct implementation for the Node interface.
func (p *FlexiblyIndexed) Reconstruct(children []Node) Node {
	return NewFlexiblyIndexed(children[0], p.Dims)
}

func (p *FlexiblyIndexed) String() string {
	var builder strings.Builder
	//
	builder.WriteString(fmt.Sprintf("(fix %s", p.Child))
	//
	for _, dim := range p.Dims {
		builder.WriteString(fmt.Sprintf(" (%d", dim.Offset))
		//
		for _, term := range dim.Terms {
			builder.WriteString(fmt.Sprintf(" %v*%d", term.Index, term.Stride))
		}
		//
		builder.WriteString(")")
	}
	//
	builder.WriteString(")")
	//
	return builder.String()
}

func (p *FlexiblyIndexed) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagFlexiblyIndexed)
	keyNode(buf, p.Child)
	keyUint(buf, uint64(len(p.Dims)))
	//
	for _, dim := range p.Dims {
		keyUint(buf, uint64(dim.Offset))
		keyUint(buf, uint64(len(dim.Terms)))
		//
		for _, term := range dim.Terms {
			keyIndex(buf, term.Index)
			keyUint(buf, uint64(term.Stride))
		}
	}
}

func (p *FlexiblyIndexed) computeFree() IndexSet {
	var free IndexSet
	//
	for _, dim := range p.Dims {
		for _, term := range dim.Terms {
			free = free.Union(keyFree(term.Index))
		}
	}
	//
	return free
}

// ============================================================================
// IndexSum
// ============================================================================

// IndexSum contracts a scalar summand over one or more bound indices.
type IndexSum struct {
	node
	Summand    Node
	MultiIndex []*Index
}

// NewIndexSum constructs the contraction of a scalar summand over the given
// indices.  Contractions of zero, and contractions over no indices, are
// folded.
func NewIndexSum(summand Node, multiindex []*Index) Node {
	assertScalar(summand, "index sum")
	//
	if IsZero(summand) {
		return NewZero()
	} else if len(multiindex) == 0 {
		return summand
	}
	// Bound indices cannot repeat
	if len(NewIndexSet(multiindex...)) != len(multiindex) {
		panic(fmt.Sprintf("duplicate contraction index in %v", multiindex))
	}
	//
	return intern(&IndexSum{Summand: summand, MultiIndex: multiindex})
}

// Children implementation for the Node interface.
func (p *IndexSum) Children() []Node { return []Node{p.Summand} }

// Reconstruct implementation for the Node interface.
func (p *IndexSum) Reconstruct(children []Node) Node { return NewIndexSum(children[0], p.MultiIndex) }

func (p *IndexSum) String() string {
	return fmt.Sprintf("(sum %s%s)", p.Summand, indicesString(p.MultiIndex))
}

func (p *IndexSum) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagIndexSum)
	keyNode(buf, p.Summand)
	keyUint(buf, uint64(len(p.MultiIndex)))
	//
	for _, index := range p.MultiIndex {
		keyIndex(buf, index)
	}
}

func (p *IndexSum) computeFree() IndexSet {
	return p.Summand.FreeIndices().Difference(NewIndexSet(p.MultiIndex...))
}

// ============================================================================
// ComponentTensor
// ============================================================================

// ComponentTensor binds a tuple of free indices of a scalar expression,
// yielding a tensor value accessed by those indices elsewhere.
type ComponentTensor struct {
	node
	Expr       Node
	MultiIndex []*Index
	shape      []uint
}

// NewComponentTensor binds the given indices of a scalar expression.
func NewComponentTensor(expr Node, multiindex []*Index) Node {
	assertScalar(expr, "component tensor")
	//
	if len(multiindex) == 0 {
		// Binding no indices is the identity.
		return expr
	}
	//
	shape := make([]uint, len(multiindex))
	for i, index := range multiindex {
		shape[i] = index.Extent()
	}
	//
	if IsZero(expr) {
		return NewZero(shape...)
	}
	//
	return intern(&ComponentTensor{Expr: expr, MultiIndex: multiindex, shape: shape})
}

// Children implementation for the Node interface.
func (p *ComponentTensor) Children() []Node { return []Node{p.Expr} }

// Shape implementation for the Node interface.
func (p *ComponentTensor) Shape() []uint { return p.shape }

// Reconstruct implementation for the Node interface.
func (p *ComponentTensor) Reconstruct(children []Node) Node {
	return NewComponentTensor(children[0], p.MultiIndex)
}

func (p *ComponentTensor) String() string {
	return fmt.Sprintf("(ct %s%s)", p.Expr, indicesString(p.MultiIndex))
}

func (p *ComponentTensor) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagComponentTensor)
	keyNode(buf, p.Expr)
	keyUint(buf, uint64(len(p.MultiIndex)))
	//
	for _, index := range p.MultiIndex {
		keyIndex(buf, index)
	}
}

func (p *ComponentTensor) computeFree() IndexSet {
	return p.Expr.FreeIndices().Difference(NewIndexSet(p.MultiIndex...))
}

// ============================================================================
// ListTensor
// ============================================================================

// ListTensor is a tensor given by an explicit array of scalar expressions.
type ListTensor struct {
	node
	Array *NodeArray
}

// NewListTensor constructs a tensor from an explicit array of scalar
// expressions.
func NewListTensor(array *NodeArray) Node {
	for _, ith := range array.Nodes() {
		assertScalar(ith, "list tensor")
	}
	//
	return intern(&ListTensor{Array: array})
}

// Children implementation for the Node interface.
func (p *ListTensor) Children() []Node { return p.Array.Nodes() }

// Shape implementation for the Node interface.
func (p *ListTensor) Shape() []uint { return p.Array.Shape() }

// Reconstruct implementation for the Node interface.
func (p *ListTensor) Reconstruct(children []Node) Node {
	return NewListTensor(NewNodeArrayFromSlice(children, p.Array.Shape()...))
}

func (p *ListTensor) String() string {
	parts := make([]string, len(p.Array.Nodes()))
	for i, ith := range p.Array.Nodes() {
		parts[i] = ith.String()
	}
	//
	return fmt.Sprintf("(lt %v %s)", p.Array.Shape(), strings.Join(parts, " "))
}

func (p *ListTensor) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagListTensor)
	keyShape(buf, p.Array.Shape())
	//
	for _, ith := range p.Array.Nodes() {
		keyNode(buf, ith)
	}
}

func (p *ListTensor) computeFree() IndexSet {
	return UnionFreeIndices(p.Array.Nodes()...)
}

// ============================================================================
// Delta
// ============================================================================

// Delta is the Kronecker delta over a pair of indices: one when they take the
// same value, zero otherwise.
type Delta struct {
	node
	I, J IndexKey
}

// NewDelta constructs the Kronecker delta of two indices, folding pairs whose
// equality is statically known.
func NewDelta(i IndexKey, j IndexKey) Node {
	if i == j {
		return One
	}
	//
	fi, iFixed := i.(FixedIndex)
	fj, jFixed := j.(FixedIndex)
	//
	if iFixed && jFixed {
		if fi == fj {
			return One
		}
		//
		return NewZero()
	}
	//
	return intern(&Delta{I: i, J: j})
}

// Reconstruct implementation for the Node interface.
func (p *Delta) Reconstruct(children []Node) Node { return p }

func (p *Delta) String() string { return fmt.Sprintf("(delta %v %v)", p.I, p.J) }

func (p *Delta) encode(buf *bytes.Buffer) {
	buf.WriteByte(tagDelta)
	keyIndex(buf, p.I)
	keyIndex(buf, p.J)
}

func (p *Delta) computeFree() IndexSet {
	return keyFree(p.I).Union(keyFree(p.J))
}

// ============================================================================
// Helpers
// ============================================================================

// PartialIndexed indexes the first dimensions of a shaped expression with the
// given keys, binding any remaining dimensions with fresh indices.
func PartialIndexed(n Node, alpha []IndexKey) Node {
	shape := n.Shape()
	if len(alpha) > len(shape) {
		panic(fmt.Sprintf("rank %d expression partially indexed with %d indices", len(shape), len(alpha)))
	}
	//
	rest := shape[len(alpha):]
	if len(rest) == 0 {
		return NewIndexed(n, alpha)
	}
	//
	keys := slices.Clone(alpha)
	fresh := make([]*Index, len(rest))
	//
	for i, extent := range rest {
		fresh[i] = NewIndex(extent)
		keys = append(keys, fresh[i])
	}
	//
	return NewComponentTensor(NewIndexed(n, keys), fresh)
}

func indicesString(indices []*Index) string {
	var builder strings.Builder
	//
	for _, index := range indices {
		builder.WriteString(" ")
		builder.WriteString(index.String())
	}
	//
	return builder.String()
}

func indexKeysString(keys []IndexKey) string {
	var builder strings.Builder
	//
	for _, key := range keys {
		builder.WriteString(fmt.Sprintf(" %v", key))
	}
	//
	return builder.String()
}
