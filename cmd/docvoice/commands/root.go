package commands

import (
	"context"
	"strings"

	"github.com/Nephrolytics-ai/docvoice/pkg/config"
	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/spf13/cobra"
)

var (
	cfgFile    string
	envFile    string
	logLevel   string
	outputFile string

	globalConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "docvoice",
	Short: "Document to speech and recording to transcript pipelines",
	Long: `docvoice runs two job pipelines against cloud speech services.

  speak       extracts or recognizes the text of a document, synthesizes it
              chunk by chunk and merges the result into a single WAV file.
  transcribe  extracts the audio track of a recording, stages it in blob
              storage and returns the batch transcription document.

Settings come from .env, an optional YAML file (--config) and the
environment, with the environment taking precedence.

Examples:
  docvoice speak letter.pdf -o letter.wav
  docvoice transcribe session.mp4 -o session.json
  docvoice sweep --watch
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute runs the root command with ctx, which is canceled on interrupt.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "YAML settings file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded into the environment if present")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")

	rootCmd.AddCommand(speakCmd)
	rootCmd.AddCommand(transcribeCmd)
	rootCmd.AddCommand(sweepCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile, envFile)
	if err != nil {
		return err
	}
	if level := strings.TrimSpace(logLevel); level != "" {
		cfg.LogLevel = level
	}
	logging.Configure(cfg.LogLevel, cfg.LogFormat)
	globalConfig = cfg
	return nil
}
