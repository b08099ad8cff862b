package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/spf13/cobra"
)

var queryUserID string

// queryCmd represents the query command.
var queryCmd = &cobra.Command{
	Use:   "query [question]",
	Short: "Ask a single question against the knowledge base",
	Long: `Query runs one question through the full pipeline: validation, rate
limiting, retrieval, and grounded generation.

Examples:
  sage-go query "What are the requirements for Dragon Slayer?"
  sage-go query --user alice "Where is the Grand Exchange?"`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuery,
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.Flags().StringVarP(&queryUserID, "user", "u", "", "User identifier for rate limiting and logging")
}

func runQuery(_ *cobra.Command, args []string) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	engine, _, cleanup, err := newQueryEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize query engine")
	}
	defer cleanup()

	question := strings.Join(args, " ")
	result := engine.Query(context.Background(), question, queryUserID, false)

	fmt.Println(result.Answer)
	if len(result.Sources) > 0 {
		fmt.Println("\nSources:")
		for _, source := range result.Sources {
			fmt.Println("  - " + source)
		}
	}
}
