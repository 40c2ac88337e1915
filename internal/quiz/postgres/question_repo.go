// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

// Package postgres implements the quiz repositories using PostgreSQL.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/quizhub/quizhub/internal/auth"
	"github.com/quizhub/quizhub/internal/quiz"
)

// Queryer is the subset of pgxpool.Pool the repository needs.
type Queryer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// QuestionRepository implements quiz.QuestionRepository using PostgreSQL.
type QuestionRepository struct {
	db Queryer
}

// NewQuestionRepository creates a new QuestionRepository.
func NewQuestionRepository(db Queryer) *QuestionRepository {
	return &QuestionRepository{db: db}
}

// Create stores a new question.
func (r *QuestionRepository) Create(ctx context.Context, question *quiz.Question) error {
	optionsJSON, err := json.Marshal(question.Options)
	if err != nil {
		return oops.Code("QUESTION_CREATE_FAILED").
			With("operation", "marshal options").
			Wrap(err)
	}

	_, err = r.db.Exec(ctx, `
		INSERT INTO questions (id, prompt, options, answer_index, points, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`,
		question.ID.String(),
		question.Prompt,
		optionsJSON,
		question.AnswerIndex,
		question.Points,
		question.CreatedAt,
	)
	if err != nil {
		return oops.Code("QUESTION_CREATE_FAILED").
			With("operation", "insert question").
			With("id", question.ID.String()).
			Wrap(err)
	}
	return nil
}

// GetByID retrieves a question by ID.
func (r *QuestionRepository) GetByID(ctx context.Context, id ulid.ULID) (*quiz.Question, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, prompt, options, answer_index, points, created_at
		FROM questions
		WHERE id = $1
	`, id.String())

	question, err := r.scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("QUESTION_NOT_FOUND").
			With("id", id.String()).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("QUESTION_GET_BY_ID_FAILED").
			With("operation", "get question by id").
			With("id", id.String()).
			Wrap(err)
	}
	return question, nil
}

// Random returns one uniformly random question.
// ORDER BY random() is fine at quiz-bank sizes; revisit if the bank
// ever grows past tens of thousands of rows.
func (r *QuestionRepository) Random(ctx context.Context) (*quiz.Question, error) {
	row := r.db.QueryRow(ctx, `
		SELECT id, prompt, options, answer_index, points, created_at
		FROM questions
		ORDER BY random()
		LIMIT 1
	`)

	question, err := r.scanQuestion(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("QUESTION_BANK_EMPTY").Wrap(quiz.ErrNoQuestions)
	}
	if err != nil {
		return nil, oops.Code("QUESTION_RANDOM_FAILED").
			With("operation", "random question").
			Wrap(err)
	}
	return question, nil
}

// Count returns the number of stored questions.
func (r *QuestionRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM questions`).Scan(&count)
	if err != nil {
		return 0, oops.Code("QUESTION_COUNT_FAILED").
			With("operation", "count questions").
			Wrap(err)
	}
	return count, nil
}

// scanQuestion scans a single row into a Question.
// Callers are responsible for handling pgx.ErrNoRows.
func (r *QuestionRepository) scanQuestion(row pgx.Row) (*quiz.Question, error) {
	var (
		idStr       string
		prompt      string
		optionsJSON []byte
		answerIndex int
		points      int
		createdAt   time.Time
	)

	err := row.Scan(&idStr, &prompt, &optionsJSON, &answerIndex, &points, &createdAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err //nolint:wrapcheck // Callers wrap with context-specific info
		}
		return nil, oops.Code("QUESTION_SCAN_FAILED").
			With("operation", "scan question").
			Wrap(err)
	}

	id, err := ulid.Parse(idStr)
	if err != nil {
		return nil, oops.Code("QUESTION_INVALID_ID").
			With("operation", "parse question id").
			With("id", idStr).
			Wrap(err)
	}

	var options []string
	if err := json.Unmarshal(optionsJSON, &options); err != nil {
		return nil, oops.Code("QUESTION_INVALID_OPTIONS").
			With("operation", "unmarshal options").
			With("id", idStr).
			Wrap(err)
	}

	return &quiz.Question{
		ID:          id,
		Prompt:      prompt,
		Options:     options,
		AnswerIndex: answerIndex,
		Points:      points,
		CreatedAt:   createdAt,
	}, nil
}

// Compile-time interface check.
var _ quiz.QuestionRepository = (*QuestionRepository)(nil)
