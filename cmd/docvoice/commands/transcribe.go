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

var transcribeTextOnly bool

var transcribeCmd = &cobra.Command{
	Use:   "transcribe <recording>",
	Short: "Transcribe the audio track of a recording",
	Long: `Extract the audio of a recording with ffmpeg, stage it in blob storage
and run a batch transcription. The transcript document is written as
returned by the service, with word-level timestamps.

Examples:
  docvoice transcribe meeting.mp4 -o meeting.json
  docvoice transcribe memo.m4a --text`,
	Args: cobra.ExactArgs(1),
	RunE: runTranscribe,
}

func init() {
	transcribeCmd.Flags().BoolVar(&transcribeTextOnly, "text", false, "write the recognized text instead of the JSON document")
}

func runTranscribe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	log := logging.NewLogger(ctx)

	p, err := newTranscribePipeline(ctx, globalConfig)
	if err != nil {
		return err
	}

	src, err := os.Open(args[0])
	if err != nil {
		return utils.WrapIfNotNil(err, args[0])
	}
	defer utils.CloseLogged(src, log, "source recording")

	result, err := p.Transcribe(ctx, pipeline.TranscribeRequest{Name: filepath.Base(args[0]), Source: src})
	if err != nil {
		return err
	}

	out, err := openOutput(cmd)
	if err != nil {
		return err
	}
	if transcribeTextOnly {
		_, err = fmt.Fprintln(out, result.Transcript.Text())
	} else {
		_, err = out.Write(append(result.Raw, '\n'))
	}
	if err != nil {
		_ = out.Close()
		return utils.WrapIfNotNil(err)
	}
	if err := out.Close(); err != nil {
		return utils.WrapIfNotNil(err, outputFile)
	}

	log.Infof("job %s: transcribed %d words", result.JobID, len(result.Transcript.Words()))
	return nil
}
