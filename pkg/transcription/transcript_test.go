package transcription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

type TranscriptSuite struct {
	suite.Suite
	transcript *Transcript
}

func TestTranscriptSuite(t *testing.T) {
	suite.Run(t, new(TranscriptSuite))
}

func (s *TranscriptSuite) SetupTest() {
	transcript, err := ParseTranscript([]byte(sampleTranscript))
	s.Require().NoError(err)
	s.transcript = transcript
}

func (s *TranscriptSuite) TestText() {
	s.Equal("Hello world. Good morning.", s.transcript.Text())
}

func (s *TranscriptSuite) TestWordsFlattenTopAlternative() {
	words := s.transcript.Words()

	s.Require().Len(words, 4)
	s.Equal("hello", words[0].Word)
	s.Equal("morning", words[3].Word)
	s.Equal(160*time.Millisecond, words[0].Start())
	s.Equal(560*time.Millisecond, words[0].End())
}

func (s *TranscriptSuite) TestWordAt() {
	word, ok := s.transcript.WordAt(600 * time.Millisecond)
	s.Require().True(ok)
	s.Equal("world", word.Word)

	_, ok = s.transcript.WordAt(1100 * time.Millisecond)
	s.False(ok)
}

func (s *TranscriptSuite) TestPhrasesWithoutAlternativesAreSkipped() {
	transcript, err := ParseTranscript([]byte(`{"recognizedPhrases":[{"recognitionStatus":"NoMatch"},
		{"nBest":[{"display":"Only this."}]}]}`))
	s.Require().NoError(err)

	s.Equal("Only this.", transcript.Text())
	s.Empty(transcript.Words())
}

func (s *TranscriptSuite) TestNilTranscript() {
	var transcript *Transcript
	s.Empty(transcript.Text())
	s.Nil(transcript.Words())
}

func (s *TranscriptSuite) TestParseInvalid() {
	_, err := ParseTranscript([]byte("not json"))
	s.Require().Error(err)
}
