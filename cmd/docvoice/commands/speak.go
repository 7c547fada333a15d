package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/Nephrolytics-ai/docvoice/pkg/pipeline"
	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
	"github.com/spf13/cobra"
)

var speakShowPreview bool

var speakCmd = &cobra.Command{
	Use:   "speak <document>",
	Short: "Read a document aloud into a WAV file",
	Long: `Extract the text of a document and synthesize it into one WAV file.

Plain text, Markdown, DOCX and PDF files are read directly. Anything else,
or a document with no digital text such as a scanned PDF, is sent to the
configured OCR backend.

Examples:
  docvoice speak notes.txt -o notes.wav
  docvoice speak scan.png --preview > scan.wav`,
	Args: cobra.ExactArgs(1),
	RunE: runSpeak,
}

func init() {
	speakCmd.Flags().BoolVar(&speakShowPreview, "preview", false, "print the text preview to stderr")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.NewLogger(ctx)

	p, err := newSpeechPipeline(globalConfig)
	if err != nil {
		return err
	}

	src, err := os.Open(args[0])
	if err != nil {
		return utils.WrapIfNotNil(err, args[0])
	}
	defer utils.CloseLogged(src, log, "source document")

	result, err := p.Speak(ctx, pipeline.SpeakRequest{Name: filepath.Base(args[0]), Source: src})
	if err != nil {
		return err
	}
	defer result.Close()

	if speakShowPreview {
		fmt.Fprintln(cmd.ErrOrStderr(), result.Preview)
	}

	out, err := openOutput(cmd)
	if err != nil {
		return err
	}
	if err := result.Stream(out); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return utils.WrapIfNotNil(err, outputFile)
	}

	log.Infof("job %s: %d chunks, %d bytes of audio", result.JobID, result.Chunks, result.Size)
	return nil
}
