package utils

import (
	"context"
	"errors"
	"testing"

	"github.com/Nephrolytics-ai/docvoice/pkg/logging"
	"github.com/stretchr/testify/suite"
)

type ErrorUtilsSuite struct {
	suite.Suite
}

func TestErrorUtilsSuite(t *testing.T) {
	suite.Run(t, new(ErrorUtilsSuite))
}

var errSentinel = errors.New("sentinel")

func (s *ErrorUtilsSuite) TestWrapIfNotNilNil() {
	s.NoError(WrapIfNotNil(nil, "ignored"))
}

func (s *ErrorUtilsSuite) TestWrapIfNotNilKeepsChainAndCaller() {
	err := WrapIfNotNil(errSentinel, "merge", "chunk 2")

	s.Require().Error(err)
	s.ErrorIs(err, errSentinel)
	s.Contains(err.Error(), "TestWrapIfNotNilKeepsChainAndCaller")
	s.Contains(err.Error(), "merge - chunk 2")
}

type failingCloser struct {
	closed bool
}

func (c *failingCloser) Close() error {
	c.closed = true
	return errSentinel
}

func (s *ErrorUtilsSuite) TestCloseLoggedSwallowsError() {
	c := &failingCloser{}
	CloseLogged(c, logging.NewLogger(context.Background()), "fragment")
	s.True(c.closed)

	CloseLogged(nil, nil, "nothing")
}
