// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package gateway

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// defaultLeaderboardLimit is used when a leaderboard request carries no
// limit.
const defaultLeaderboardLimit = 10

// maxLeaderboardLimit caps a single leaderboard response.
const maxLeaderboardLimit = 100

func (h *ConnectionHandler) handleQuestion(ctx context.Context) {
	if h.identity == nil {
		h.send(Response{Type: RespQuestion, Message: "log in first"})
		return
	}

	question, err := h.deps.Quiz.NextQuestion(ctx)
	if err != nil {
		h.send(h.quizFailure(RespQuestion, err))
		return
	}

	h.send(Response{
		Type: RespQuestion,
		OK:   true,
		Data: QuestionData{
			QuestionID: question.ID.String(),
			Prompt:     question.Prompt,
			Options:    question.Options,
			Points:     question.Points,
		},
	})
}

func (h *ConnectionHandler) handleAnswer(ctx context.Context, data json.RawMessage) {
	if h.identity == nil {
		h.send(Response{Type: RespAnswer, Message: "log in first"})
		return
	}

	var answer AnswerData
	if err := json.Unmarshal(data, &answer); err != nil {
		h.send(Response{Type: RespAnswer, Message: "question_id and choice required"})
		return
	}
	questionID, err := ulid.Parse(answer.QuestionID)
	if err != nil {
		h.send(Response{Type: RespAnswer, Message: "malformed question_id"})
		return
	}

	result, err := h.deps.Quiz.CheckAnswer(ctx, questionID, answer.Choice)
	if err != nil {
		h.send(h.quizFailure(RespAnswer, err))
		return
	}

	if result.Correct {
		h.gameScore += result.Points
	}
	if h.deps.Metrics != nil {
		label := "wrong"
		if result.Correct {
			label = "correct"
		}
		h.deps.Metrics.AnswersTotal.WithLabelValues(label).Inc()
	}

	h.send(Response{
		Type: RespAnswer,
		OK:   true,
		Data: AnswerResultData{
			Correct:     result.Correct,
			Points:      result.Points,
			AnswerIndex: result.AnswerIndex,
			GameScore:   h.gameScore,
		},
	})
}

// handleGameOver finishes the running game. The accumulated score is
// recorded for registered players; for guests it is only reported back,
// nothing persists.
func (h *ConnectionHandler) handleGameOver(ctx context.Context) {
	if h.identity == nil {
		h.send(Response{Type: RespScore, Message: "log in first"})
		return
	}

	score := h.gameScore
	h.gameScore = 0

	if h.deps.Metrics != nil {
		h.deps.Metrics.GamesTotal.Inc()
	}

	if h.identity.IsGuest() {
		h.send(Response{
			Type:    RespScore,
			OK:      true,
			Message: "guest scores are not saved",
			Data:    ScoreResultData{GameScore: score},
		})
		return
	}

	result, err := h.deps.Quiz.RecordGame(ctx, h.identity.DisplayName(), score)
	if err != nil {
		slog.Error("failed to record game",
			"conn_id", h.connID.String(),
			"name", h.identity.DisplayName(),
			"score", score,
			"error", err,
		)
		h.send(Response{Type: RespScore, Message: "score could not be saved, try again"})
		return
	}

	if result.Improved && h.deps.Leaderboard != nil {
		h.deps.Leaderboard.Invalidate(ctx)
	}

	h.send(Response{
		Type: RespScore,
		OK:   true,
		Data: ScoreResultData{
			GameScore: score,
			HighScore: result.HighScore,
			Improved:  result.Improved,
		},
	})
}

func (h *ConnectionHandler) handleLeaderboard(ctx context.Context, data json.RawMessage) {
	limit := defaultLeaderboardLimit
	if len(data) > 0 {
		var req LeaderboardData
		if err := json.Unmarshal(data, &req); err == nil && req.Limit > 0 {
			limit = req.Limit
		}
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	rows, err := h.deps.Leaderboard.Top(ctx, limit)
	if err != nil {
		h.send(h.quizFailure(RespLeaderboard, err))
		return
	}

	h.send(Response{Type: RespLeaderboard, OK: true, Data: rows})
}

// quizFailure maps quiz and leaderboard errors to a client response.
func (h *ConnectionHandler) quizFailure(respType string, err error) Response {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		slog.Error("request failed",
			"conn_id", h.connID.String(),
			"type", respType,
			"error", err,
		)
		return Response{Type: respType, Message: "something went wrong, try again"}
	}

	switch oopsErr.Code() {
	case "QUIZ_EMPTY":
		return Response{Type: respType, Message: "no questions available yet"}
	case "QUIZ_QUESTION_NOT_FOUND":
		return Response{Type: respType, Message: "unknown question"}
	default:
		slog.Error("request failed",
			"conn_id", h.connID.String(),
			"type", respType,
			"code", oopsErr.Code(),
			"error", err,
		)
		return Response{Type: respType, Message: "something went wrong, try again"}
	}
}
