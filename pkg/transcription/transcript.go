package transcription

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/Nephrolytics-ai/docvoice/pkg/utils"
)

// ticksPerDuration converts the service's 100ns ticks into time.Duration units.
const ticksPerDuration = 100 * time.Nanosecond

// Transcript is the result document produced by batch transcription.
type Transcript struct {
	Source                    string           `json:"source"`
	Timestamp                 string           `json:"timestamp"`
	DurationInTicks           int64            `json:"durationInTicks"`
	Duration                  string           `json:"duration"`
	CombinedRecognizedPhrases []CombinedPhrase `json:"combinedRecognizedPhrases"`
	RecognizedPhrases         []Phrase         `json:"recognizedPhrases"`
}

type CombinedPhrase struct {
	Channel   int    `json:"channel"`
	Lexical   string `json:"lexical"`
	ITN       string `json:"itn"`
	MaskedITN string `json:"maskedITN"`
	Display   string `json:"display"`
}

type Phrase struct {
	RecognitionStatus string        `json:"recognitionStatus"`
	Channel           int           `json:"channel"`
	Speaker           int           `json:"speaker,omitempty"`
	Offset            string        `json:"offset"`
	Duration          string        `json:"duration"`
	OffsetInTicks     float64       `json:"offsetInTicks"`
	DurationInTicks   float64       `json:"durationInTicks"`
	NBest             []Alternative `json:"nBest"`
}

// Alternative is one ranked recognition hypothesis. The first is the best.
type Alternative struct {
	Confidence float64 `json:"confidence"`
	Lexical    string  `json:"lexical"`
	ITN        string  `json:"itn"`
	MaskedITN  string  `json:"maskedITN"`
	Display    string  `json:"display"`
	Words      []Word  `json:"words"`
}

type Word struct {
	Word            string  `json:"word"`
	Offset          string  `json:"offset"`
	Duration        string  `json:"duration"`
	OffsetInTicks   float64 `json:"offsetInTicks"`
	DurationInTicks float64 `json:"durationInTicks"`
	Confidence      float64 `json:"confidence"`
}

func (w Word) Start() time.Duration {
	return time.Duration(w.OffsetInTicks) * ticksPerDuration
}

func (w Word) End() time.Duration {
	return time.Duration(w.OffsetInTicks+w.DurationInTicks) * ticksPerDuration
}

func ParseTranscript(raw []byte) (*Transcript, error) {
	transcript := &Transcript{}
	if err := json.Unmarshal(raw, transcript); err != nil {
		return nil, utils.WrapIfNotNil(err)
	}
	return transcript, nil
}

func (p Phrase) best() (Alternative, bool) {
	if len(p.NBest) == 0 {
		return Alternative{}, false
	}
	return p.NBest[0], true
}

// Text joins the display form of every recognized phrase with single spaces.
func (t *Transcript) Text() string {
	if t == nil {
		return ""
	}

	parts := make([]string, 0, len(t.RecognizedPhrases))
	for _, phrase := range t.RecognizedPhrases {
		alternative, ok := phrase.best()
		if !ok {
			continue
		}
		if display := strings.TrimSpace(alternative.Display); display != "" {
			parts = append(parts, display)
		}
	}
	return strings.Join(parts, " ")
}

// Words flattens the top-ranked alternative of each phrase into one timeline.
func (t *Transcript) Words() []Word {
	if t == nil {
		return nil
	}

	var words []Word
	for _, phrase := range t.RecognizedPhrases {
		alternative, ok := phrase.best()
		if !ok {
			continue
		}
		words = append(words, alternative.Words...)
	}
	return words
}

// WordAt returns the word being spoken at position, for highlighting during playback.
func (t *Transcript) WordAt(position time.Duration) (Word, bool) {
	for _, word := range t.Words() {
		if position >= word.Start() && position < word.End() {
			return word, true
		}
	}
	return Word{}, false
}
