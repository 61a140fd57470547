package waifuwarhandlers

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

// TokenKind names the message a reaction was added to.
type TokenKind string

const (
	TokenDivision          TokenKind = "division"
	TokenVoted             TokenKind = "voted"
	TokenVoteRemoved       TokenKind = "vote_removed"
	TokenAlreadyVoted      TokenKind = "already_voted"
	TokenNeverParticipated TokenKind = "never_participated"
	TokenPreviousDivision  TokenKind = "previous_division"
	TokenGuide             TokenKind = "guide"
	TokenGuideStep1        TokenKind = "guide_step1"
	TokenStartGuide        TokenKind = "start_guide"
	TokenStartVoting       TokenKind = "start_voting"
)

// Token is the resumption state of a message that expects a reaction. The
// gateway hands it back unchanged on ReactionAdded.
type Token struct {
	Kind      TokenKind `json:"k"`
	BracketID int64     `json:"b,omitempty"`
	Division  int       `json:"d,omitempty"`
	Position  int       `json:"p,omitempty"`
	Step      int       `json:"s,omitempty"`
}

var errEmptyToken = errors.New("empty token")

// Encode serializes t as base64url JSON.
func (t Token) Encode() string {
	// A struct of strings and ints always marshals.
	data, _ := json.Marshal(t)
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeToken parses a token produced by Encode.
func DecodeToken(raw string) (Token, error) {
	if raw == "" {
		return Token{}, errEmptyToken
	}
	data, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return Token{}, fmt.Errorf("invalid token encoding: %w", err)
	}
	var t Token
	if err := json.Unmarshal(data, &t); err != nil {
		return Token{}, fmt.Errorf("invalid token payload: %w", err)
	}
	if t.Kind == "" {
		return Token{}, fmt.Errorf("token has no kind")
	}
	return t, nil
}
