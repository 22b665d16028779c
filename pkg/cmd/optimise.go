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

	"github.com/consensys/go-gem/pkg/gem"
	"github.com/consensys/go-gem/pkg/opt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// optimiseCmd represents the optimise command
var optimiseCmd = &cobra.Command{
	Use:   "optimise [flags] expr_file(lisp)",
	Short: "Optimise the expressions in an expression file.",
	Long: `Refactorise the expressions in an expression file relative to their
declared argument indices, reporting the operation count before and after.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Configure log level
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
		//
		var (
			program     = readExpressionFile(args[0])
			expressions = program.Expressions
			epsilon     = GetFloat(cmd, "epsilon")
			unroll      = GetUint(cmd, "unroll")
		)
		//
		if epsilon > 0 {
			for i, expression := range expressions {
				expressions[i] = opt.RoundLiterals(expression, epsilon)
			}
		}
		//
		if GetFlag(cmd, "replace-division") {
			expressions = opt.ReplaceDivision(expressions)
		}
		// Unroll short contractions before refactorisation, if requested.
		if unroll > 0 {
			expressions = opt.UnrollIndexSum(expressions, func(index *gem.Index) bool {
				return index.Extent() <= unroll
			})
			expressions = opt.RemoveComponentTensors(expressions)
		}
		//
		optimised, err := opt.OptimiseExpressions(expressions, program.ArgumentIndices)
		if err != nil {
			fmt.Println(err)
			os.Exit(2)
		}
		//
		width := terminalWidth()
		//
		for i, expression := range optimised {
			fmt.Printf("expression %d: %d flops -> %d flops\n",
				i, opt.CountFlops(expressions[i]), opt.CountFlops(expression))
			fmt.Println(truncate(expression.String(), width))
		}
	},
}

func init() {
	rootCmd.AddCommand(optimiseCmd)
	optimiseCmd.Flags().Float64("epsilon", defaultEpsilon(), "tolerance for rounding literals to one decimal")
	optimiseCmd.Flags().Bool("replace-division", false, "rewrite divisions as multiplications beforehand")
	optimiseCmd.Flags().Uint("unroll", defaultUnroll(), "unroll contractions over indices up to this extent")
}
