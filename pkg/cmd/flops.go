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

	"github.com/consensys/go-gem/pkg/opt"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// flopsCmd represents the flops command
var flopsCmd = &cobra.Command{
	Use:   "flops [flags] expr_file(lisp)",
	Short: "Report the estimated operation count of each expression.",
	Long: `Estimate the number of floating-point operations needed to evaluate
each expression in an expression file, counting shared sub-expressions once.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		// Configure log level
		if GetFlag(cmd, "verbose") {
			log.SetLevel(log.DebugLevel)
		}
		//
		var (
			program     = readExpressionFile(args[0])
			expressions = opt.RemoveComponentTensors(program.Expressions)
			total       = uint64(0)
		)
		//
		for i, expression := range expressions {
			flops := opt.CountFlops(expression)
			total += flops
			//
			fmt.Printf("expression %d: %d flops\n", i, flops)
		}
		//
		if len(expressions) > 1 {
			fmt.Printf("total: %d flops\n", total)
		}
	},
}

func init() {
	rootCmd.AddCommand(flopsCmd)
}
