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
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/consensys/go-gem/pkg/gem"
	"github.com/consensys/go-gem/pkg/sexp"
	"github.com/spf13/cobra"
	"github.com/xyproto/env/v2"
	"golang.org/x/term"
)

// GetFlag gets an expected flag, or panic if an error arises.
func GetFlag(cmd *cobra.Command, flag string) bool {
	r, err := cmd.Flags().GetBool(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetFloat gets an expected float flag, or panic if an error arises.
func GetFloat(cmd *cobra.Command, flag string) float64 {
	r, err := cmd.Flags().GetFloat64(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// GetUint gets an expected unsigned integer flag, or panic if an error arises.
func GetUint(cmd *cobra.Command, flag string) uint {
	r, err := cmd.Flags().GetUint(flag)
	if err != nil {
		fmt.Println(err)
		os.Exit(2)
	}

	return r
}

// defaultEpsilon determines the default literal-rounding tolerance, which can
// be overridden through the environment.
func defaultEpsilon() float64 {
	return env.Float64("GOGEM_EPSILON", 1e-12)
}

// defaultUnroll determines the default unrolling threshold, which can be
// overridden through the environment.  Zero disables unrolling.
func defaultUnroll() uint {
	return uint(env.Int("GOGEM_UNROLL", 0))
}

// Parse an expression file, exiting with a suitable message when the file is
// missing or malformed.
func readExpressionFile(filename string) *gem.Program {
	bytes, err := os.ReadFile(filename)
	if err == nil {
		var program *gem.Program
		//
		program, err = gem.ParseProgram(string(bytes))
		if err == nil {
			return program
		}
		// Handle syntax errors with highlighting
		if e, ok := err.(*sexp.SyntaxError); ok {
			printSyntaxError(filename, e.Message(), e.Span().Start(), e.Span().End(), string(bytes))
			os.Exit(2)
		}
	}
	// Handle error
	fmt.Println(err)
	os.Exit(2)
	// unreachable
	return nil
}

// Print a syntax error with appropriate highlighting.
func printSyntaxError(filename string, msg string, start int, end int, text string) {
	line, offset, num := findEnclosingLine(start, text)
	// Print error + line number
	fmt.Printf("%s:%d: %s\n", filename, num, msg)
	// Print line
	fmt.Println(line)
	// Print indent (todo: account for tabs)
	if start > offset {
		fmt.Print(strings.Repeat(" ", start-offset-1))
	}
	// Print highlight
	fmt.Println(strings.Repeat("^", max(end-start, 1)))
}

// Determine the enclosing line for the given index in a string.
func findEnclosingLine(index int, text string) (string, int, int) {
	num := 1
	start := 0
	// Handle case where we've reached the end-of-file unexpectedly.  This
	// essentially means the error is reported at the end of the last physical
	// line.
	if index >= len(text) {
		index = len(text) - 1
	}
	// Find the line.
	for i := 0; i < len(text); i++ {
		if i == index {
			end := findEndOfLine(index, text)
			return text[start:end], start, num
		} else if text[i] == '\n' {
			num++
			start = i + 1
		}
	}
	//
	return text[start:], start, num
}

// Determine the end of the enclosing line for the given index in a string.
func findEndOfLine(index int, text string) int {
	for i := index; i < len(text); i++ {
		if text[i] == '\n' {
			return i
		}
	}
	//
	return len(text)
}

// terminalWidth determines the width available for printing expressions,
// falling back to a fixed width when stdout is not a terminal.
func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	//
	return 80
}

// truncate a string to a given width, marking elision.
func truncate(s string, width int) string {
	if len(s) <= width || width < 4 {
		return s
	}
	//
	return s[:width-3] + "..."
}
