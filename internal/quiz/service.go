// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package quiz

import (
	"context"
	"errors"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/auth"
)

// AnswerResult is the outcome of one answer submission.
type AnswerResult struct {
	Correct     bool
	Points      int // awarded points; zero when wrong
	AnswerIndex int // the correct index, revealed after answering
}

// ScoreResult is the outcome of submitting a finished game's score.
type ScoreResult struct {
	HighScore int
	Improved  bool
}

// Service answers quiz requests against the question bank and records
// finished-game scores in the account directory.
type Service struct {
	questions QuestionRepository
	accounts  auth.AccountRepository
}

// NewService creates a quiz Service.
func NewService(questions QuestionRepository, accounts auth.AccountRepository) *Service {
	return &Service{
		questions: questions,
		accounts:  accounts,
	}
}

// NextQuestion returns a random question for a client to answer.
func (s *Service) NextQuestion(ctx context.Context) (*Question, error) {
	question, err := s.questions.Random(ctx)
	if err != nil {
		if errors.Is(err, ErrNoQuestions) {
			return nil, oops.Code("QUIZ_EMPTY").Errorf("question bank is empty")
		}
		return nil, oops.Code("QUIZ_FETCH_FAILED").
			With("operation", "random question").
			Wrap(err)
	}
	return question, nil
}

// CheckAnswer grades a choice against the stored question.
func (s *Service) CheckAnswer(ctx context.Context, questionID ulid.ULID, choice int) (*AnswerResult, error) {
	question, err := s.questions.GetByID(ctx, questionID)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("QUIZ_QUESTION_NOT_FOUND").
				With("question_id", questionID.String()).
				Errorf("unknown question")
		}
		return nil, oops.Code("QUIZ_FETCH_FAILED").
			With("operation", "get question by id").
			With("question_id", questionID.String()).
			Wrap(err)
	}

	result := &AnswerResult{AnswerIndex: question.AnswerIndex}
	if choice == question.AnswerIndex {
		result.Correct = true
		result.Points = question.Points
	}
	return result, nil
}

// RecordGame records a finished game for username: the games-played
// counter always advances, the high score only when beaten. Guests
// have no account; callers must not invoke this for them.
func (s *Service) RecordGame(ctx context.Context, username string, score int) (*ScoreResult, error) {
	if score < 0 {
		return nil, oops.Code("QUIZ_INVALID_SCORE").
			With("score", score).
			Errorf("score cannot be negative")
	}

	account, improved, err := s.accounts.UpdateScoreIfHigher(ctx, username, score)
	if err != nil {
		if errors.Is(err, auth.ErrNotFound) {
			return nil, oops.Code("AUTH_USER_NOT_FOUND").
				With("username", username).
				Errorf("unknown username")
		}
		return nil, oops.Code("QUIZ_RECORD_FAILED").
			With("operation", "update score if higher").
			With("username", username).
			Wrap(err)
	}

	if err := s.accounts.IncrementGamesPlayed(ctx, username); err != nil {
		// Score already landed; a lost games-played tick is tolerable.
		return nil, oops.Code("QUIZ_RECORD_FAILED").
			With("operation", "increment games played").
			With("username", username).
			Wrap(err)
	}

	return &ScoreResult{HighScore: account.HighScore, Improved: improved}, nil
}
