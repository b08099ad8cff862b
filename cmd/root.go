package cmd

import (
	"os"

	"github.com/code-sleuth/sage-go/internal/config"
	"github.com/code-sleuth/sage-go/pkg/util"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "sage-go",
	Short: "A CLI tool for chunking, indexing, and querying a wiki knowledge base",
	Long: `sage-go is a retrieval-augmented question answering pipeline: it chunks
scraped wiki pages, indexes them in a vector database, and answers
questions grounded in the retrieved content.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		logger := util.NewLogger(zerolog.ErrorLevel)
		logger.Fatal().Err(err).Msg("command failed")
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "path to the config file")
}

func initConfig() {
	logger := util.NewLogger(util.LogLevelFromEnv())

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn().Err(err).Msg("could not load .env file")
	}

	loaded, err := config.Load(cfgFile)
	if err != nil {
		logger.Fatal().Err(err).Str("config", cfgFile).Msg("failed to load configuration")
	}
	cfg = loaded
}
