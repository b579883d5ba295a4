package xiangqi

import (
	"fmt"
	"strconv"
	"strings"
)

const (
	Rows = 10
	Cols = 9
)

// StartFEN is the board placement of the canonical start position, row 0 first.
const StartFEN = "rnbakabnr/9/1c5c1/p1p1p1p1p/9/9/P1P1P1P1P/1C5C1/9/RNBAKABNR"

// Square is a (row, column) cell. Row 0 is Black's home row.
type Square struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

func Sq(row, col int) Square { return Square{Row: row, Col: col} }

func (s Square) String() string {
	if !IsWithinBoard(s) {
		return fmt.Sprintf("(%d,%d)", s.Row, s.Col)
	}
	return SquareToNotation(s)
}

// Board is the 10x9 grid. It is a value type: assigning copies every cell.
type Board [Rows][Cols]Piece

func (b *Board) At(s Square) Piece { return b[s.Row][s.Col] }

func (b *Board) Set(s Square, p Piece) { b[s.Row][s.Col] = p }

func (b *Board) Clear(s Square) { b[s.Row][s.Col] = Piece{} }

// Count returns the number of pieces of the side.
func (b *Board) Count(side Side) int {
	n := 0
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			if !b[r][c].IsZero() && b[r][c].Side == side {
				n++
			}
		}
	}
	return n
}

var backRow = [Cols]Kind{Chariot, Horse, Elephant, Advisor, General, Advisor, Elephant, Horse, Chariot}

// InitialBoard returns the canonical start position.
func InitialBoard() Board {
	var b Board
	setup := func(side Side, home, cannonRow, soldierRow int) {
		for c, k := range backRow {
			b[home][c] = Piece{Side: side, Kind: k}
		}
		b[cannonRow][1] = Piece{Side: side, Kind: Cannon}
		b[cannonRow][7] = Piece{Side: side, Kind: Cannon}
		for c := 0; c < Cols; c += 2 {
			b[soldierRow][c] = Piece{Side: side, Kind: Soldier}
		}
	}
	setup(Black, 0, 2, 3)
	setup(Red, 9, 7, 6)
	return b
}

// FEN renders the board placement field.
func (b *Board) FEN() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		if r > 0 {
			sb.WriteByte('/')
		}
		empty := 0
		for c := 0; c < Cols; c++ {
			p := b[r][c]
			if p.IsZero() {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteByte(p.Letter())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
	}
	return sb.String()
}

// ParseBoard reads a board placement field as produced by FEN.
func ParseBoard(fen string) (Board, error) {
	var b Board
	fields := strings.Fields(strings.TrimSpace(fen))
	if len(fields) == 0 {
		return b, fmt.Errorf("empty board placement")
	}
	rows := strings.Split(fields[0], "/")
	if len(rows) != Rows {
		return b, fmt.Errorf("board placement has %d rows, want %d", len(rows), Rows)
	}
	for r, row := range rows {
		c := 0
		for i := 0; i < len(row); i++ {
			ch := row[i]
			if ch >= '1' && ch <= '9' {
				c += int(ch - '0')
				continue
			}
			p, ok := PieceFromLetter(ch)
			if !ok {
				return b, fmt.Errorf("row %d: unknown piece letter %q", r, ch)
			}
			if c >= Cols {
				return b, fmt.Errorf("row %d overflows %d columns", r, Cols)
			}
			b[r][c] = p
			c++
		}
		if c != Cols {
			return b, fmt.Errorf("row %d has %d columns, want %d", r, c, Cols)
		}
	}
	return b, nil
}

// String draws the board with notation labels, Black's home row on top.
func (b *Board) String() string {
	var sb strings.Builder
	for r := 0; r < Rows; r++ {
		sb.WriteString(strconv.Itoa(Rows - 1 - r))
		sb.WriteByte(' ')
		for c := 0; c < Cols; c++ {
			sb.WriteByte(b[r][c].Letter())
			if c < Cols-1 {
				sb.WriteByte(' ')
			}
		}
		sb.WriteByte('\n')
		if r == 4 {
			sb.WriteString("  ~~~~~~~~~~~~~~~~~\n")
		}
	}
	sb.WriteString("  a b c d e f g h i\n")
	return sb.String()
}
