package xiangqi

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Side identifies the player. Red moves first from the high-row end.
type Side uint8

const (
	Red Side = iota + 1
	Black
)

func (s Side) Opponent() Side {
	if s == Red {
		return Black
	}
	return Red
}

func (s Side) String() string {
	switch s {
	case Red:
		return "red"
	case Black:
		return "black"
	default:
		return "none"
	}
}

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "red", "r", "first":
		return Red, nil
	case "black", "b", "second":
		return Black, nil
	}
	return 0, fmt.Errorf("unknown side %q", s)
}

func (s Side) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }

func (s *Side) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" || raw == "none" {
		*s = 0
		return nil
	}
	v, err := ParseSide(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Kind is the piece type.
type Kind uint8

const (
	General Kind = iota + 1
	Advisor
	Elephant
	Horse
	Chariot
	Cannon
	Soldier
)

var kindLetters = map[Kind]byte{
	General:  'k',
	Advisor:  'a',
	Elephant: 'b',
	Horse:    'n',
	Chariot:  'r',
	Cannon:   'c',
	Soldier:  'p',
}

var kindNames = map[Kind]string{
	General:  "general",
	Advisor:  "advisor",
	Elephant: "elephant",
	Horse:    "horse",
	Chariot:  "chariot",
	Cannon:   "cannon",
	Soldier:  "soldier",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "none"
}

// Piece is a side and kind pair. The zero value is an empty cell.
type Piece struct {
	Side Side `json:"side"`
	Kind Kind `json:"kind"`
}

func (p Piece) IsZero() bool { return p.Kind == 0 }

// Letter returns the FEN-style letter: upper case for Red, lower case for Black, '.' for empty.
func (p Piece) Letter() byte {
	l, ok := kindLetters[p.Kind]
	if !ok {
		return '.'
	}
	if p.Side == Red {
		return l - 'a' + 'A'
	}
	return l
}

func (p Piece) String() string {
	if p.IsZero() {
		return "empty"
	}
	return p.Side.String() + " " + p.Kind.String()
}

// PieceFromLetter is the inverse of Letter.
func PieceFromLetter(c byte) (Piece, bool) {
	side := Black
	lower := c
	if c >= 'A' && c <= 'Z' {
		side = Red
		lower = c - 'A' + 'a'
	}
	for k, l := range kindLetters {
		if l == lower {
			return Piece{Side: side, Kind: k}, true
		}
	}
	return Piece{}, false
}

func (k Kind) MarshalJSON() ([]byte, error) { return json.Marshal(k.String()) }

func (k *Kind) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == "" || raw == "none" {
		*k = 0
		return nil
	}
	for kind, name := range kindNames {
		if name == raw {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown piece kind %q", raw)
}
