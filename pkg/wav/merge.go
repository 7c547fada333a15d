package wav

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/Nephrolytics-ai/docvoice/pkg/model"
)

// Merge concatenates fragments, in the given order, into one container at dst.
//
// A single fragment is copied verbatim. Otherwise the first fragment's header is
// kept byte for byte, every fragment's header is stripped, and the RIFF and data
// size fields are rewritten for the combined body.
func Merge(dst string, fragments []string) error {
	if len(fragments) == 0 {
		return model.ErrNoFragmentsToMerge
	}
	if len(fragments) == 1 {
		return copyFile(fragments[0], dst)
	}

	header, err := readHeader(fragments[0])
	if err != nil {
		return err
	}

	var bodyLen int64
	for _, path := range fragments {
		fragmentHeader, err := readHeader(path)
		if err != nil {
			return err
		}
		if !bytes.Equal(fragmentHeader[fmtStart:fmtEnd], header[fmtStart:fmtEnd]) {
			return fmt.Errorf("%w: %s", ErrFormatMismatch, path)
		}
		info, err := os.Stat(path)
		if err != nil {
			return err
		}
		bodyLen += info.Size() - HeaderSize
	}
	if bodyLen > int64(^uint32(0))-riffOverhead {
		return fmt.Errorf("wav: merged body of %d bytes exceeds the container limit", bodyLen)
	}

	binary.LittleEndian.PutUint32(header[riffSizeOffset:], uint32(riffOverhead+bodyLen))
	binary.LittleEndian.PutUint32(header[dataSizeOffset:], uint32(bodyLen))

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := writeMerged(out, header, fragments); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}

func writeMerged(out io.Writer, header []byte, fragments []string) error {
	if _, err := out.Write(header); err != nil {
		return err
	}
	for _, path := range fragments {
		if err := appendBody(out, path); err != nil {
			return err
		}
	}
	return nil
}

func appendBody(out io.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return err
	}
	defer in.Close()

	if _, err := in.Seek(HeaderSize, io.SeekStart); err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	return err
}

func copyFile(src string, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = os.Remove(dst)
		return err
	}
	return out.Close()
}
