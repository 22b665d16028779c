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

// Traversal returns every distinct node reachable from the given roots.
// Shared nodes appear exactly once, regardless of how many parents reference
// them.
func Traversal(roots []Node) []Node {
	var (
		seen   = make(map[Node]bool)
		stack  = make([]Node, len(roots))
		result []Node
	)
	//
	copy(stack, roots)
	//
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		//
		if !seen[n] {
			seen[n] = true
			result = append(result, n)
			stack = append(stack, n.Children()...)
		}
	}
	//
	return result
}

// CollectRefcount counts, for every distinct node reachable from the given
// roots, how many references it has (parent edges plus root references).
func CollectRefcount(roots []Node) map[Node]uint {
	refcount := make(map[Node]uint)
	//
	for _, root := range roots {
		refcount[root]++
	}
	//
	for _, n := range Traversal(roots) {
		for _, child := range n.Children() {
			refcount[child]++
		}
	}
	//
	return refcount
}

// Rewriter is a bottom-up rewrite handler.  It receives the node under
// rewrite and the enclosing memoizer, through which it recurses into
// children.  Handlers for node kinds not of interest delegate to
// ReuseIfUntouched.
type Rewriter func(Node, *Memoizer) Node

// Memoizer applies a rewrite handler over a DAG with each distinct node
// rewritten exactly once.  Without the memo, a node shared by many parents
// would be re-expanded per parent, which is exponential in the worst case.
// The memo is scoped to this memoizer; a fresh pass starts a fresh memo.
type Memoizer struct {
	fn   Rewriter
	memo map[Node]Node
}

// NewMemoizer constructs a memoizer over a given rewrite handler.
func NewMemoizer(fn Rewriter) *Memoizer {
	return &Memoizer{fn, make(map[Node]Node)}
}

// Apply rewrites a node, consulting the memo first.
func (p *Memoizer) Apply(n Node) Node {
	if cached, ok := p.memo[n]; ok {
		return cached
	}
	//
	result := p.fn(n, p)
	p.memo[n] = result
	//
	return result
}

// ReuseIfUntouched is the default rewrite behaviour: recurse into children
// and, if every child came back unchanged, return the node itself (preserving
// identity so callers can cheaply test whether anything changed); otherwise
// reconstruct with the rewritten children.
func ReuseIfUntouched(n Node, mapper *Memoizer) Node {
	var (
		children = n.Children()
		nchildren []Node
	)
	//
	for i, child := range children {
		nchild := mapper.Apply(child)
		//
		if nchildren != nil {
			nchildren[i] = nchild
		} else if nchild != child {
			nchildren = make([]Node, len(children))
			copy(nchildren, children[:i])
			nchildren[i] = nchild
		}
	}
	//
	if nchildren == nil {
		return n
	}
	//
	return n.Reconstruct(nchildren)
}

// ArgRewriter is a rewrite handler additionally parameterised by an auxiliary
// argument (e.g. a pending index substitution) computed per call site.
type ArgRewriter[A any] func(Node, *MemoizerArg[A], A) Node

// MemoizerArg applies an argument-threading rewrite handler over a DAG.  The
// memo is keyed by node and argument, since the same node rewritten under
// different arguments yields different results.
type MemoizerArg[A any] struct {
	fn ArgRewriter[A]
	// keyfn renders an argument into a canonical memo key.
	keyfn func(A) string
	memo  map[memoArgKey]Node
}

type memoArgKey struct {
	node Node
	arg  string
}

// NewMemoizerArg constructs an argument-threading memoizer over a given
// handler and argument key function.
func NewMemoizerArg[A any](fn ArgRewriter[A], keyfn func(A) string) *MemoizerArg[A] {
	return &MemoizerArg[A]{fn, keyfn, make(map[memoArgKey]Node)}
}

// Apply rewrites a node under a given argument, consulting the memo first.
func (p *MemoizerArg[A]) Apply(n Node, arg A) Node {
	key := memoArgKey{n, p.keyfn(arg)}
	//
	if cached, ok := p.memo[key]; ok {
		return cached
	}
	//
	result := p.fn(n, p, arg)
	p.memo[key] = result
	//
	return result
}

// ReuseIfUntouchedArg is the default behaviour for argument-threading
// rewrites: recurse into children under the same argument, reconstructing
// only when some child changed.
func ReuseIfUntouchedArg[A any](n Node, mapper *MemoizerArg[A], arg A) Node {
	var (
		children = n.Children()
		nchildren []Node
	)
	//
	for i, child := range children {
		nchild := mapper.Apply(child, arg)
		//
		if nchildren != nil {
			nchildren[i] = nchild
		} else if nchild != child {
			nchildren = make([]Node, len(children))
			copy(nchildren, children[:i])
			nchildren[i] = nchild
		}
	}
	//
	if nchildren == nil {
		return n
	}
	//
	return n.Reconstruct(nchildren)
}
