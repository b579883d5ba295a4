package xiangqi

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBadNotation is returned for square or move codes that cannot be decoded.
var ErrBadNotation = errors.New("bad notation")

// SquareToNotation encodes s as column letter a..i and row digit counted from
// Red's home edge (row 9 is "0").
func SquareToNotation(s Square) string {
	return string([]byte{byte('a' + s.Col), byte('0' + (Rows - 1 - s.Row))})
}

func NotationToSquare(code string) (Square, error) {
	if len(code) != 2 {
		return Square{}, fmt.Errorf("%w: square %q", ErrBadNotation, code)
	}
	col := int(code[0]) - 'a'
	digit := int(code[1]) - '0'
	if col < 0 || col >= Cols || digit < 0 || digit >= Rows {
		return Square{}, fmt.Errorf("%w: square %q", ErrBadNotation, code)
	}
	return Square{Row: Rows - 1 - digit, Col: col}, nil
}

func MoveToNotation(m Move) string {
	return SquareToNotation(m.From) + SquareToNotation(m.To)
}

func NotationToMove(token string) (Move, error) {
	token = strings.ToLower(strings.TrimSpace(token))
	if len(token) != 4 {
		return Move{}, fmt.Errorf("%w: move %q", ErrBadNotation, token)
	}
	from, err := NotationToSquare(token[:2])
	if err != nil {
		return Move{}, err
	}
	to, err := NotationToSquare(token[2:])
	if err != nil {
		return Move{}, err
	}
	return Move{From: from, To: to}, nil
}

// HistoryNotation joins the recorded moves in order, space separated.
func HistoryNotation(moves []Move) string {
	parts := make([]string, len(moves))
	for i, m := range moves {
		parts[i] = MoveToNotation(m)
	}
	return strings.Join(parts, " ")
}

// HistoryNotation returns the game's history in protocol notation.
func (g *GameState) HistoryNotation() string {
	return HistoryNotation(g.Moves())
}
