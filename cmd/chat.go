package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var chatUserID string

// chatCmd represents the chat command.
var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive question and answer session",
	Long: `Chat opens a REPL against the knowledge base. Each question runs through
the full query pipeline.

Session commands:
  logs       show how many queries have been logged
  clearlogs  delete the query log
  quit       exit the session (also: exit, q)`,
	Run: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "", "User identifier for rate limiting and logging")
}

func runChat(_ *cobra.Command, _ []string) {
	logger := util.NewLogger(util.LogLevelFromEnv())

	engine, sec, cleanup, err := newQueryEngine(cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize query engine")
	}
	defer cleanup()

	boldGreen := color.New(color.FgGreen, color.Bold).SprintFunc()
	boldCyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()

	fmt.Println(boldGreen("sage-go knowledge base chat"))
	fmt.Printf("Model: %s\n", boldCyan(cfg.LLM.Model))
	fmt.Println("Ask a question and press Enter. Type 'quit' to exit.")
	fmt.Println()

	ctx := context.Background()
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print(boldGreen("You: "))
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			return
		case "logs":
			fmt.Printf("%d queries logged\n\n", sec.LogCount())
			continue
		case "clearlogs":
			if sec.ClearLogs() {
				fmt.Println("Query log cleared.")
			} else {
				fmt.Println("No query log to clear.")
			}
			fmt.Println()
			continue
		}

		result := engine.Query(ctx, input, chatUserID, false)

		fmt.Print(boldCyan("Assistant: "))
		fmt.Println(result.Answer)
		if len(result.Sources) > 0 {
			fmt.Println(yellow("Sources: " + strings.Join(result.Sources, ", ")))
		}
		fmt.Println()
	}
}
