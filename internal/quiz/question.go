// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package quiz provides question serving and answer scoring.
package quiz

import (
	"context"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// ErrNoQuestions is returned when the question bank is empty.
var ErrNoQuestions = errors.New("no questions available")

// DefaultPoints is awarded for a correct answer when a question does
// not specify its own value.
const DefaultPoints = 10

// Question is one multiple-choice quiz question. AnswerIndex is the
// zero-based index into Options and is never sent to clients.
type Question struct {
	ID          ulid.ULID
	Prompt      string
	Options     []string
	AnswerIndex int
	Points      int
	CreatedAt   time.Time
}

// NewQuestion creates a validated Question.
func NewQuestion(prompt string, options []string, answerIndex, points int, now time.Time) (*Question, error) {
	if prompt == "" {
		return nil, oops.Code("QUIZ_INVALID_QUESTION").Errorf("prompt cannot be empty")
	}
	if len(options) < 2 {
		return nil, oops.Code("QUIZ_INVALID_QUESTION").
			With("options", len(options)).
			Errorf("question needs at least two options")
	}
	if answerIndex < 0 || answerIndex >= len(options) {
		return nil, oops.Code("QUIZ_INVALID_QUESTION").
			With("answer_index", answerIndex).
			With("options", len(options)).
			Errorf("answer index out of range")
	}
	if points <= 0 {
		points = DefaultPoints
	}
	return &Question{
		ID:          ulid.Make(),
		Prompt:      prompt,
		Options:     options,
		AnswerIndex: answerIndex,
		Points:      points,
		CreatedAt:   now,
	}, nil
}

// QuestionRepository manages question persistence.
type QuestionRepository interface {
	// Create stores a new question.
	Create(ctx context.Context, question *Question) error

	// GetByID retrieves a question by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*Question, error)

	// Random returns one uniformly random question. Returns
	// ErrNoQuestions (wrapped) when the bank is empty.
	Random(ctx context.Context) (*Question, error)

	// Count returns the number of stored questions.
	Count(ctx context.Context) (int, error)
}
