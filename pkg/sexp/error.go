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
package sexp

import (
	"fmt"
)

// Span identifies a range of characters in the original text.
type Span struct {
	start int
	end   int
}

// NewSpan constructs a span over a given character range.
func NewSpan(start int, end int) Span {
	if start > end {
		panic(fmt.Sprintf("invalid span %d..%d", start, end))
	}
	//
	return Span{start, end}
}

// Start returns the first character position of this span.
func (p Span) Start() int { return p.start }

// End returns the position one past the last character of this span.
func (p Span) End() int { return p.end }

// SyntaxError is a structured error which retains the position in the
// original string where an error occurred, along with an error message.
type SyntaxError struct {
	span Span
	msg  string
}

// NewSyntaxError simply constructs a new syntax error.
func NewSyntaxError(span Span, msg string) *SyntaxError {
	return &SyntaxError{span, msg}
}

// Span returns the span of the original text on which this error is reported.
func (p *SyntaxError) Span() Span {
	return p.span
}

// Message returns the message to be reported.
func (p *SyntaxError) Message() string {
	return p.msg
}

// Error implementation for the error interface.
func (p *SyntaxError) Error() string {
	return fmt.Sprintf("%d:%d:%s", p.span.Start(), p.span.End(), p.Message())
}
