package commands

import (
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// openOutput returns the --output file, or stdout when none was given.
func openOutput(cmd *cobra.Command) (io.WriteCloser, error) {
	if outputFile == "" || outputFile == "-" {
		return nopWriteCloser{cmd.OutOrStdout()}, nil
	}
	if dir := filepath.Dir(outputFile); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return os.Create(outputFile)
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error {
	return nil
}
