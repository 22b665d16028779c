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

// Tensor is a rectangular array of float64 values in row-major layout.  A
// tensor with an empty shape holds exactly one value (a scalar).
type Tensor struct {
	shape []uint
	data  []float64
}

// NewTensor allocates a zero-initialised tensor of the given shape.
func NewTensor(shape ...uint) *Tensor {
	return &Tensor{shape, make([]float64, ShapeSize(shape))}
}

// NewTensorFromData wraps an existing row-major data slice with a shape.
func NewTensorFromData(data []float64, shape ...uint) *Tensor {
	if uint(len(data)) != ShapeSize(shape) {
		panic(fmt.Sprintf("tensor data length %d does not match shape %v", len(data), shape))
	}
	//
	return &Tensor{shape, data}
}

// Scalar wraps a single value as a rank-0 tensor.
func Scalar(value float64) *Tensor {
	return &Tensor{nil, []float64{value}}
}

// Shape returns the extent of every dimension.
func (p *Tensor) Shape() []uint { return p.shape }

// Data returns the underlying row-major data slice.
func (p *Tensor) Data() []float64 { return p.data }

// At reads the value at a given multiindex.
func (p *Tensor) At(index ...uint) float64 {
	return p.data[shapeOffset(p.shape, index)]
}

// Set writes the value at a given multiindex.
func (p *Tensor) Set(value float64, index ...uint) {
	p.data[shapeOffset(p.shape, index)] = value
}

// Equals checks elementwise equality of two tensors of identical shape.
func (p *Tensor) Equals(other *Tensor) bool {
	return slices.Equal(p.shape, other.shape) && slices.Equal(p.data, other.data)
}

// IsZero checks whether every element is zero.
func (p *Tensor) IsZero() bool {
	for _, v := range p.data {
		if v != 0 {
			return false
		}
	}
	//
	return true
}

func shapeOffset(shape []uint, index []uint) uint {
	if len(index) != len(shape) {
		panic(fmt.Sprintf("shape %v indexed with %v", shape, index))
	}
	//
	offset := uint(0)
	//
	for i, ith := range index {
		if ith >= shape[i] {
			panic(fmt.Sprintf("index %v out of bounds for shape %v", index, shape))
		}
		//
		offset = (offset * shape[i]) + ith
	}
	//
	return offset
}

// Round returns a copy of this tensor where every value within epsilon of its
// nearest one-decimal value is replaced by that value.  The result never
// contains a negative zero.
func (p *Tensor) Round(epsilon float64) *Tensor {
	data := make([]float64, len(p.data))
	//
	for i, v := range p.data {
		rounded := math.Round(v*10) / 10
		if rounded == 0 {
			// no minus zeros
			rounded = 0
		}
		//
		if math.Abs(v-rounded) < epsilon {
			data[i] = rounded
		} else {
			data[i] = v
		}
	}
	//
	return &Tensor{p.shape, data}
}

// ShapeSize returns the number of elements a given shape holds.
func ShapeSize(shape []uint) uint {
	size := uint(1)
	//
	for _, s := range shape {
		size *= s
	}
	//
	return size
}

// ShapeIndices enumerates every multiindex of a given shape in row-major
// order.  The empty shape yields a single empty multiindex.
func ShapeIndices(shape []uint) [][]uint {
	if ShapeSize(shape) == 0 {
		return nil
	}
	//
	result := make([][]uint, 0, ShapeSize(shape))
	index := make([]uint, len(shape))
	//
	for {
		result = append(result, slices.Clone(index))
		// Advance odometer
		i := len(shape) - 1
		//
		for ; i >= 0; i-- {
			index[i]++
			if index[i] < shape[i] {
				break
			}
			//
			index[i] = 0
		}
		//
		if i < 0 {
			return result
		}
	}
}

// NodeArray is a rectangular array of expression nodes, as held by a list
// tensor.
type NodeArray struct {
	shape []uint
	nodes []Node
}

// NewNodeArray allocates a node array of the given shape.
func NewNodeArray(shape ...uint) *NodeArray {
	return &NodeArray{shape, make([]Node, ShapeSize(shape))}
}

// NewNodeArrayFromSlice wraps an existing row-major node slice with a shape.
func NewNodeArrayFromSlice(nodes []Node, shape ...uint) *NodeArray {
	if uint(len(nodes)) != ShapeSize(shape) {
		panic(fmt.Sprintf("node array length %d does not match shape %v", len(nodes), shape))
	}
	//
	return &NodeArray{shape, nodes}
}

// Shape returns the extent of every dimension.
func (p *NodeArray) Shape() []uint { return p.shape }

// Nodes returns the underlying row-major node slice.
func (p *NodeArray) Nodes() []Node { return p.nodes }

// At reads the node at a given multiindex.
func (p *NodeArray) At(index ...uint) Node {
	return p.nodes[shapeOffset(p.shape, index)]
}

// Set writes the node at a given multiindex.
func (p *NodeArray) Set(node Node, index ...uint) {
	p.nodes[shapeOffset(p.shape, index)] = node
}
