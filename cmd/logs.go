package cmd

import (
	"fmt"

	"github.com/code-sleuth/sage-go/internal/rag/security"
	"github.com/spf13/cobra"
)

// logsCmd represents the logs command.
var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Inspect or clear the query audit log",
}

var logsCountCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of logged queries",
	Run: func(_ *cobra.Command, _ []string) {
		sec := security.NewManager(cfg.Security.RateLimitInterval, cfg.Security.QueryLogFile)
		fmt.Printf("%d queries logged\n", sec.LogCount())
	},
}

var logsClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete the query log file",
	Run: func(_ *cobra.Command, _ []string) {
		sec := security.NewManager(cfg.Security.RateLimitInterval, cfg.Security.QueryLogFile)
		if sec.ClearLogs() {
			fmt.Println("Query log cleared.")
		} else {
			fmt.Println("No query log to clear.")
		}
	},
}

func init() {
	rootCmd.AddCommand(logsCmd)
	logsCmd.AddCommand(logsCountCmd)
	logsCmd.AddCommand(logsClearCmd)
}
