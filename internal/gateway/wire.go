// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 QuizHub Contributors

package gateway

import "encoding/json"

// Request event types a client may send.
const (
	ReqRegister    = "register"
	ReqLogin       = "login"
	ReqGuestLogin  = "guest_login"
	ReqResume      = "resume"
	ReqLogout      = "logout"
	ReqChat        = "chat"
	ReqQuestion    = "question"
	ReqAnswer      = "answer"
	ReqGameOver    = "game_over"
	ReqLeaderboard = "leaderboard"
)

// Response event types sent back to the originating connection.
const (
	RespRegistration = "registration_result"
	RespLogin        = "login_result"
	RespLogout       = "logout_result"
	RespChat         = "chat_result"
	RespQuestion     = "question"
	RespAnswer       = "answer_result"
	RespScore        = "score_result"
	RespLeaderboard  = "leaderboard"
	RespError        = "error"

	// Pushed events, not tied to a request.
	PushPresence = "presence"
	PushChat     = "chat_message"
)

// Request is the envelope for one inbound JSON line.
type Request struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Response is the envelope for one outbound JSON line.
type Response struct {
	Type    string `json:"type"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// CredentialsData carries register and login requests.
type CredentialsData struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// ResumeData carries a resume request.
type ResumeData struct {
	Token string `json:"token"`
}

// ChatData carries a chat request.
type ChatData struct {
	Message string `json:"message"`
}

// AnswerData carries an answer request.
type AnswerData struct {
	QuestionID string `json:"question_id"`
	Choice     int    `json:"choice"`
}

// LeaderboardData carries a leaderboard request.
type LeaderboardData struct {
	Limit int `json:"limit"`
}

// LoginResultData is the payload of a successful login_result.
type LoginResultData struct {
	Username    string `json:"username"`
	Guest       bool   `json:"guest"`
	HighScore   int    `json:"high_score,omitempty"`
	GamesPlayed int    `json:"games_played,omitempty"`
	ResumeToken string `json:"resume_token,omitempty"`
}

// LockoutData is the payload of a login_result rejected by lockout or
// a wrong password.
type LockoutData struct {
	RemainingSeconds int `json:"remaining_seconds,omitempty"`
	AttemptsLeft     int `json:"attempts_left,omitempty"`
}

// QuestionData is the payload of a question response. The correct
// index is never included.
type QuestionData struct {
	QuestionID string   `json:"question_id"`
	Prompt     string   `json:"prompt"`
	Options    []string `json:"options"`
	Points     int      `json:"points"`
}

// AnswerResultData is the payload of an answer_result response.
type AnswerResultData struct {
	Correct     bool `json:"correct"`
	Points      int  `json:"points"`
	AnswerIndex int  `json:"answer_index"`
	GameScore   int  `json:"game_score"`
}

// ScoreResultData is the payload of a score_result response.
type ScoreResultData struct {
	GameScore int  `json:"game_score"`
	HighScore int  `json:"high_score"`
	Improved  bool `json:"improved"`
}
