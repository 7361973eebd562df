package codegen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/tablebank/internal/dependencies/mocks"
	"github.com/mcoot/tablebank/internal/dependencies/random"
	"github.com/mcoot/tablebank/internal/model"
	"github.com/mcoot/tablebank/internal/storage/memory"
	"github.com/mcoot/tablebank/internal/testutil"
)

type GeneratorSuite struct {
	suite.Suite
	storage   *memory.Storage
	random    *mocks.MockRandom
	generator *Generator
	ctx       context.Context
}

func TestGeneratorSuite(t *testing.T) {
	suite.Run(t, new(GeneratorSuite))
}

func (s *GeneratorSuite) SetupTest() {
	s.storage = memory.New()
	s.random = mocks.NewMockRandom()
	s.generator = New(s.storage, s.random, 0, testutil.NopLogger())
	s.ctx = context.Background()
}

func (s *GeneratorSuite) TestDefaultLength() {
	s.Equal(DefaultLength, s.generator.Length())
}

func (s *GeneratorSuite) TestReturnsGeneratedCode() {
	s.random.QueueString("ABCDE")

	code, err := s.generator.NewSessionCode(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("ABCDE"), code)
}

func (s *GeneratorSuite) TestSkipsCodeUsedByLobby() {
	_ = s.storage.SaveLobby(s.ctx, &model.Lobby{Code: "ABCDE"})
	s.random.QueueString("ABCDE", "FGHJK")

	code, err := s.generator.NewSessionCode(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("FGHJK"), code)
}

func (s *GeneratorSuite) TestSkipsCodeUsedBySession() {
	_ = s.storage.SaveSession(s.ctx, &model.GameSession{Code: "ABCDE"})
	s.random.QueueString("ABCDE", "FGHJK")

	code, err := s.generator.NewSessionCode(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("FGHJK"), code)
}

func (s *GeneratorSuite) TestSkipsInvalidCode() {
	s.random.QueueString("AB0DE", "FGHJK")

	code, err := s.generator.NewSessionCode(s.ctx)
	s.Require().NoError(err)
	s.Equal(model.SessionCode("FGHJK"), code)
}

func (s *GeneratorSuite) TestExhausted() {
	_ = s.storage.SaveLobby(s.ctx, &model.Lobby{Code: "ABCDE"})
	for i := 0; i < MaxAttempts; i++ {
		s.random.QueueString("ABCDE")
	}

	_, err := s.generator.NewSessionCode(s.ctx)
	s.ErrorIs(err, model.ErrCodeExhausted)
}

func (s *GeneratorSuite) TestCryptoRandomCodesAreValid() {
	generator := New(s.storage, random.New(), 7, testutil.NopLogger())

	code, err := generator.NewSessionCode(s.ctx)
	s.Require().NoError(err)
	s.Len(string(code), 7)
	s.True(Valid(code))
}

func (s *GeneratorSuite) TestValid() {
	s.True(Valid("ABCDE"))
	s.True(Valid("23456"))
	s.False(Valid(""))
	s.False(Valid("abcde"))
	s.False(Valid("ABCD0"))
	s.False(Valid("ABCDI"))
}
