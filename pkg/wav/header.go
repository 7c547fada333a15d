// Package wav handles the single fixed-layout PCM container the speech services emit:
// a 44-byte RIFF/WAVE header followed by raw little-endian samples.
package wav

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

const (
	// HeaderSize is the length of the canonical RIFF + fmt + data chunk headers.
	HeaderSize = 44

	riffSizeOffset = 4
	dataSizeOffset = 40
	fmtStart       = 12
	fmtEnd         = 36
	// riffOverhead is the part of the header counted by the RIFF size field.
	riffOverhead = HeaderSize - 8
)

var (
	ErrShortFragment  = errors.New("wav: fragment has no audio data")
	ErrFormatMismatch = errors.New("wav: fragment format differs from the first fragment")
	ErrNotWAV         = errors.New("wav: missing RIFF/WAVE header")
)

// Format describes an uncompressed PCM stream.
type Format struct {
	SampleRate    uint32
	Channels      uint16
	BitsPerSample uint16
}

// PCM16kMono is the synthesis output format: 16 kHz, 16-bit, single channel.
var PCM16kMono = Format{SampleRate: 16000, Channels: 1, BitsPerSample: 16}

func (f Format) BlockAlign() uint16 {
	return f.Channels * f.BitsPerSample / 8
}

func (f Format) ByteRate() uint32 {
	return f.SampleRate * uint32(f.BlockAlign())
}

// NewHeader builds a canonical header for dataLen bytes of PCM in format f.
func NewHeader(f Format, dataLen uint32) []byte {
	header := make([]byte, HeaderSize)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[riffSizeOffset:], riffOverhead+dataLen)
	copy(header[8:12], "WAVE")
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], 16)
	binary.LittleEndian.PutUint16(header[20:22], 1)
	binary.LittleEndian.PutUint16(header[22:24], f.Channels)
	binary.LittleEndian.PutUint32(header[24:28], f.SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], f.ByteRate())
	binary.LittleEndian.PutUint16(header[32:34], f.BlockAlign())
	binary.LittleEndian.PutUint16(header[34:36], f.BitsPerSample)
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[dataSizeOffset:], dataLen)
	return header
}

// ParseHeader reads the format and declared data size from a 44-byte header.
func ParseHeader(header []byte) (Format, uint32, error) {
	if len(header) < HeaderSize || !bytes.Equal(header[0:4], []byte("RIFF")) || !bytes.Equal(header[8:12], []byte("WAVE")) {
		return Format{}, 0, ErrNotWAV
	}
	f := Format{
		Channels:      binary.LittleEndian.Uint16(header[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(header[24:28]),
		BitsPerSample: binary.LittleEndian.Uint16(header[34:36]),
	}
	return f, binary.LittleEndian.Uint32(header[dataSizeOffset:]), nil
}

// WriteFile writes pcm wrapped in a canonical header to path.
func WriteFile(path string, f Format, pcm []byte) error {
	if uint64(len(pcm)) > uint64(^uint32(0))-riffOverhead {
		return fmt.Errorf("wav: %d bytes of audio exceed the container limit", len(pcm))
	}
	out := make([]byte, 0, HeaderSize+len(pcm))
	out = append(out, NewHeader(f, uint32(len(pcm)))...)
	out = append(out, pcm...)
	return os.WriteFile(path, out, 0o644)
}

// FragmentSize returns the size of the file at path and fails with ErrShortFragment
// when it holds nothing beyond the header.
func FragmentSize(path string) (int64, error) {
	info, err := os.Stat(path)
	if err != nil {
		return 0, err
	}
	if info.Size() <= HeaderSize {
		return info.Size(), fmt.Errorf("%w: %s is %d bytes", ErrShortFragment, path, info.Size())
	}
	return info.Size(), nil
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	header := make([]byte, HeaderSize)
	if _, err := io.ReadFull(f, header); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s is shorter than a header", ErrShortFragment, path)
		}
		return nil, err
	}
	return header, nil
}
