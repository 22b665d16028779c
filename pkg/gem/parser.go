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
	"strconv"

	"github.com/consensys/go-gem/pkg/sexp"
)

// Program is a parsed expression file: a sequence of index, argument-index
// and variable declarations followed by expression roots.
type Program struct {
	// Expressions are the expression roots, in file order.
	Expressions []Node
	// ArgumentIndices are the free indices declared as argument (test/trial
	// space) indices, as opposed to quadrature indices.
	ArgumentIndices IndexSet
	//
	indices   map[string]*Index
	variables map[string]Node
}

// Index resolves a declared index by name.
func (p *Program) Index(name string) (*Index, bool) {
	index, ok := p.indices[name]
	return index, ok
}

// Variable resolves a declared variable by name.
func (p *Program) Variable(name string) (Node, bool) {
	variable, ok := p.variables[name]
	return variable, ok
}

// ParseProgram parses an expression file.  The concrete syntax is
// S-expressions: declarations of the form (index i 3), (argument j 4) and
// (var A 3 4), with every remaining top-level term an expression over the
// declared names.
func ParseProgram(text string) (*Program, error) {
	terms, err := sexp.ParseAll(text)
	if err != nil {
		return nil, err
	}
	//
	program := &Program{
		indices:   make(map[string]*Index),
		variables: make(map[string]Node),
	}
	//
	for _, term := range terms {
		if list, ok := term.(*sexp.List); ok && isDeclaration(list) {
			if err := program.declare(list); err != nil {
				return nil, err
			}
			//
			continue
		}
		//
		expression, err := program.parseExpr(term)
		if err != nil {
			return nil, err
		}
		//
		program.Expressions = append(program.Expressions, expression)
	}
	//
	return program, nil
}

func isDeclaration(list *sexp.List) bool {
	return list.MatchSymbols(1, "index") || list.MatchSymbols(1, "argument") || list.MatchSymbols(1, "var")
}

// declare processes an index, argument or variable declaration.
func (p *Program) declare(list *sexp.List) error {
	kind := list.Elements[0].(*sexp.Symbol).Value
	// Variables may be scalar, i.e. have no extents at all.
	if list.Len() < 2 || (kind != "var" && list.Len() < 3) {
		return fmt.Errorf("malformed %s declaration %s", kind, list)
	}
	//
	name, ok := list.Elements[1].(*sexp.Symbol)
	if !ok {
		return fmt.Errorf("malformed %s declaration %s", kind, list)
	}
	//
	extents, err := parseExtents(list.Elements[2:])
	if err != nil {
		return err
	}
	//
	switch kind {
	case "index", "argument":
		if list.Len() != 3 {
			return fmt.Errorf("malformed %s declaration %s", kind, list)
		} else if _, ok := p.indices[name.Value]; ok {
			return fmt.Errorf("index %s declared twice", name.Value)
		}
		//
		index := NamedIndex(name.Value, extents[0])
		p.indices[name.Value] = index
		//
		if kind == "argument" {
			p.ArgumentIndices = p.ArgumentIndices.Union(IndexSet{index})
		}
	case "var":
		if _, ok := p.variables[name.Value]; ok {
			return fmt.Errorf("variable %s declared twice", name.Value)
		}
		//
		p.variables[name.Value] = NewVariable(name.Value, extents...)
	}
	//
	return nil
}

func parseExtents(terms []sexp.SExp) ([]uint, error) {
	extents := make([]uint, len(terms))
	//
	for i, term := range terms {
		symbol, ok := term.(*sexp.Symbol)
		if !ok {
			return nil, fmt.Errorf("invalid extent %s", term)
		}
		//
		extent, err := strconv.ParseUint(symbol.Value, 10, 32)
		if err != nil || extent == 0 {
			return nil, fmt.Errorf("invalid extent %s", symbol.Value)
		}
		//
		extents[i] = uint(extent)
	}
	//
	return extents, nil
}

// parseExpr translates one S-expression into an expression node.
func (p *Program) parseExpr(term sexp.SExp) (Node, error) {
	switch t := term.(type) {
	case *sexp.Symbol:
		return p.parseSymbol(t)
	case *sexp.List:
		return p.parseList(t)
	default:
		return nil, fmt.Errorf("unknown term %s", term)
	}
}

func (p *Program) parseSymbol(symbol *sexp.Symbol) (Node, error) {
	if variable, ok := p.variables[symbol.Value]; ok {
		return variable, nil
	}
	//
	if value, err := strconv.ParseFloat(symbol.Value, 64); err == nil {
		return NewScalarLiteral(value), nil
	}
	//
	return nil, fmt.Errorf("unknown symbol %q", symbol.Value)
}

//nolint:gocyclo
func (p *Program) parseList(list *sexp.List) (Node, error) {
	if list.Len() == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	//
	head, ok := list.Elements[0].(*sexp.Symbol)
	if !ok {
		return nil, fmt.Errorf("expected operator, found %s", list.Elements[0])
	}
	//
	switch head.Value {
	case "+":
		return p.parseFold(list, NewSum)
	case "*":
		return p.parseFold(list, NewProduct)
	case "/":
		return p.parseBinary(list, NewDivision)
	case "pow":
		return p.parseBinary(list, NewPower)
	case "sin", "cos", "tan", "exp", "ln", "sqrt", "abs":
		arg, err := p.parseUnary(list)
		if err != nil {
			return nil, err
		}
		//
		return NewMathFunction(head.Value, arg), nil
	case "==", "!=", "<", "<=", ">", ">=":
		return p.parseBinary(list, func(x Node, y Node) Node {
			return NewComparison(head.Value, x, y)
		})
	case "and":
		return p.parseBinary(list, NewLogicalAnd)
	case "or":
		return p.parseBinary(list, NewLogicalOr)
	case "not":
		arg, err := p.parseUnary(list)
		if err != nil {
			return nil, err
		}
		//
		return NewLogicalNot(arg), nil
	case "if":
		return p.parseConditional(list)
	case "sum":
		return p.parseBinder(list, func(expr Node, indices []*Index) Node {
			return NewIndexSum(expr, indices)
		})
	case "ct":
		return p.parseBinder(list, func(expr Node, indices []*Index) Node {
			return NewComponentTensor(expr, indices)
		})
	case "ix":
		return p.parseIndexed(list)
	case "delta":
		return p.parseDelta(list)
	case "identity":
		if list.Len() != 2 {
			return nil, fmt.Errorf("malformed identity %s", list)
		}
		//
		extents, err := parseExtents(list.Elements[1:])
		if err != nil {
			return nil, err
		}
		//
		return NewIdentity(extents[0]), nil
	case "lit":
		return p.parseLiteral(list)
	default:
		return nil, fmt.Errorf("unknown operator %q", head.Value)
	}
}

// parseFold parses a variadic operator as a left-associated fold.
func (p *Program) parseFold(list *sexp.List, combine func(Node, Node) Node) (Node, error) {
	if list.Len() < 3 {
		return nil, fmt.Errorf("operator %s requires at least two operands", list.Elements[0])
	}
	//
	result, err := p.parseExpr(list.Elements[1])
	if err != nil {
		return nil, err
	}
	//
	for _, operand := range list.Elements[2:] {
		next, err := p.parseExpr(operand)
		if err != nil {
			return nil, err
		}
		//
		result = combine(result, next)
	}
	//
	return result, nil
}

func (p *Program) parseBinary(list *sexp.List, combine func(Node, Node) Node) (Node, error) {
	if list.Len() != 3 {
		return nil, fmt.Errorf("operator %s requires exactly two operands", list.Elements[0])
	}
	//
	x, err := p.parseExpr(list.Elements[1])
	if err != nil {
		return nil, err
	}
	//
	y, err := p.parseExpr(list.Elements[2])
	if err != nil {
		return nil, err
	}
	//
	return combine(x, y), nil
}

func (p *Program) parseUnary(list *sexp.List) (Node, error) {
	if list.Len() != 2 {
		return nil, fmt.Errorf("operator %s requires exactly one operand", list.Elements[0])
	}
	//
	return p.parseExpr(list.Elements[1])
}

func (p *Program) parseConditional(list *sexp.List) (Node, error) {
	if list.Len() != 4 {
		return nil, fmt.Errorf("malformed conditional %s", list)
	}
	//
	operands := make([]Node, 3)
	//
	for i := range operands {
		var err error
		//
		if operands[i], err = p.parseExpr(list.Elements[i+1]); err != nil {
			return nil, err
		}
	}
	//
	return NewConditional(operands[0], operands[1], operands[2]), nil
}

// parseBinder parses an index-binding form, e.g. (sum e i j) or (ct e i).
func (p *Program) parseBinder(list *sexp.List, bind func(Node, []*Index) Node) (Node, error) {
	if list.Len() < 3 {
		return nil, fmt.Errorf("malformed binding %s", list)
	}
	//
	expr, err := p.parseExpr(list.Elements[1])
	if err != nil {
		return nil, err
	}
	//
	indices := make([]*Index, list.Len()-2)
	//
	for i, term := range list.Elements[2:] {
		if indices[i], err = p.resolveIndex(term); err != nil {
			return nil, err
		}
	}
	//
	return bind(expr, indices), nil
}

func (p *Program) parseIndexed(list *sexp.List) (Node, error) {
	if list.Len() < 2 {
		return nil, fmt.Errorf("malformed access %s", list)
	}
	//
	child, err := p.parseExpr(list.Elements[1])
	if err != nil {
		return nil, err
	}
	//
	multiindex := make([]IndexKey, list.Len()-2)
	//
	for i, term := range list.Elements[2:] {
		if multiindex[i], err = p.resolveIndexKey(term); err != nil {
			return nil, err
		}
	}
	//
	return NewIndexed(child, multiindex), nil
}

func (p *Program) parseDelta(list *sexp.List) (Node, error) {
	if list.Len() != 3 {
		return nil, fmt.Errorf("malformed delta %s", list)
	}
	//
	i, err := p.resolveIndexKey(list.Elements[1])
	if err != nil {
		return nil, err
	}
	//
	j, err := p.resolveIndexKey(list.Elements[2])
	if err != nil {
		return nil, err
	}
	//
	return NewDelta(i, j), nil
}

// parseLiteral parses a constant array, e.g. (lit 1 2 3) for a vector or
// (lit (1 2) (3 4)) for a matrix.  Scalar literals are written as bare
// numbers.
func (p *Program) parseLiteral(list *sexp.List) (Node, error) {
	if list.Len() < 2 {
		return nil, fmt.Errorf("malformed literal %s", list)
	}
	//
	shape, data, err := parseArray(list.Elements[1:])
	if err != nil {
		return nil, err
	}
	//
	return NewLiteral(NewTensorFromData(data, shape...)), nil
}

// parseArray parses a rectangular (possibly nested) array of numbers,
// returning its shape and row-major data.
func parseArray(terms []sexp.SExp) ([]uint, []float64, error) {
	var (
		shape []uint
		data  []float64
	)
	//
	for i, term := range terms {
		switch t := term.(type) {
		case *sexp.Symbol:
			value, err := strconv.ParseFloat(t.Value, 64)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid number %q", t.Value)
			}
			//
			if i == 0 {
				shape = nil
			} else if shape != nil {
				return nil, nil, fmt.Errorf("ragged literal array")
			}
			//
			data = append(data, value)
		case *sexp.List:
			elemShape, elemData, err := parseArray(t.Elements)
			if err != nil {
				return nil, nil, err
			}
			//
			if i == 0 {
				shape = elemShape
			} else if !shapeEquals(shape, elemShape) {
				return nil, nil, fmt.Errorf("ragged literal array")
			}
			//
			data = append(data, elemData...)
		}
	}
	//
	return append([]uint{uint(len(terms))}, shape...), data, nil
}

func shapeEquals(left []uint, right []uint) bool {
	if len(left) != len(right) {
		return false
	}
	//
	for i := range left {
		if left[i] != right[i] {
			return false
		}
	}
	//
	return true
}

// resolveIndex resolves a symbol naming a declared free index.
func (p *Program) resolveIndex(term sexp.SExp) (*Index, error) {
	symbol, ok := term.(*sexp.Symbol)
	if !ok {
		return nil, fmt.Errorf("invalid index %s", term)
	}
	//
	index, ok := p.indices[symbol.Value]
	if !ok {
		return nil, fmt.Errorf("unknown index %q", symbol.Value)
	}
	//
	return index, nil
}

// resolveIndexKey resolves a multiindex entry: a declared free index, or a
// fixed offset.
func (p *Program) resolveIndexKey(term sexp.SExp) (IndexKey, error) {
	symbol, ok := term.(*sexp.Symbol)
	if !ok {
		return nil, fmt.Errorf("invalid index %s", term)
	}
	//
	if index, ok := p.indices[symbol.Value]; ok {
		return index, nil
	}
	//
	if fixed, err := strconv.ParseUint(symbol.Value, 10, 32); err == nil {
		return FixedIndex(fixed), nil
	}
	//
	return nil, fmt.Errorf("unknown index %q", symbol.Value)
}
