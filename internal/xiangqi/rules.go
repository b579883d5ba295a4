package xiangqi

// Rules below never write to the board they are given. Move simulation works on
// a local copy of the array.

func IsWithinBoard(s Square) bool {
	return s.Row >= 0 && s.Row < Rows && s.Col >= 0 && s.Col < Cols
}

// IsWithinPalace reports whether s lies in the 3x3 palace of side.
func IsWithinPalace(s Square, side Side) bool {
	if s.Col < 3 || s.Col > 5 {
		return false
	}
	if side == Red {
		return s.Row >= 7 && s.Row <= 9
	}
	return s.Row >= 0 && s.Row <= 2
}

// IsOwnSide reports whether s is on side's half of the river.
func IsOwnSide(s Square, side Side) bool {
	if side == Red {
		return s.Row >= 5
	}
	return s.Row <= 4
}

func HasCrossedRiver(s Square, side Side) bool {
	return !IsOwnSide(s, side)
}

// CountPiecesBetween counts occupied cells strictly between from and to.
// ok is false when the squares share neither a row nor a column.
func CountPiecesBetween(b *Board, from, to Square) (n int, ok bool) {
	switch {
	case from.Row == to.Row:
		lo, hi := minmax(from.Col, to.Col)
		for c := lo + 1; c < hi; c++ {
			if !b[from.Row][c].IsZero() {
				n++
			}
		}
		return n, true
	case from.Col == to.Col:
		lo, hi := minmax(from.Row, to.Row)
		for r := lo + 1; r < hi; r++ {
			if !b[r][from.Col].IsZero() {
				n++
			}
		}
		return n, true
	}
	return 0, false
}

func isValidGeneralMove(from, to Square, side Side) bool {
	if !IsWithinPalace(to, side) {
		return false
	}
	dr, dc := absDiff(from.Row, to.Row), absDiff(from.Col, to.Col)
	return dr+dc == 1
}

func isValidAdvisorMove(from, to Square, side Side) bool {
	if !IsWithinPalace(to, side) {
		return false
	}
	return absDiff(from.Row, to.Row) == 1 && absDiff(from.Col, to.Col) == 1
}

func isValidElephantMove(b *Board, from, to Square, side Side) bool {
	if !IsOwnSide(to, side) {
		return false
	}
	if absDiff(from.Row, to.Row) != 2 || absDiff(from.Col, to.Col) != 2 {
		return false
	}
	eye := Square{Row: (from.Row + to.Row) / 2, Col: (from.Col + to.Col) / 2}
	return b.At(eye).IsZero()
}

func isValidHorseMove(b *Board, from, to Square) bool {
	dr, dc := absDiff(from.Row, to.Row), absDiff(from.Col, to.Col)
	if !(dr == 2 && dc == 1) && !(dr == 1 && dc == 2) {
		return false
	}
	leg := from
	if dr == 2 {
		leg.Row += sign(to.Row - from.Row)
	} else {
		leg.Col += sign(to.Col - from.Col)
	}
	return b.At(leg).IsZero()
}

func isValidChariotMove(b *Board, from, to Square) bool {
	n, ok := CountPiecesBetween(b, from, to)
	return ok && n == 0
}

// Cannon: a quiet move needs a clear line, a capture needs exactly one platform.
func isValidCannonMove(b *Board, from, to Square) bool {
	n, ok := CountPiecesBetween(b, from, to)
	if !ok {
		return false
	}
	if b.At(to).IsZero() {
		return n == 0
	}
	return n == 1
}

func isValidSoldierMove(from, to Square, side Side) bool {
	dr := to.Row - from.Row
	dc := absDiff(from.Col, to.Col)
	if absDiff(dr, 0) > 1 || dc > 1 || (dr == 0 && dc == 0) {
		return false
	}
	forward := -1
	if side == Black {
		forward = 1
	}
	if dr == -forward {
		return false
	}
	if HasCrossedRiver(from, side) {
		return (dr == forward && dc == 0) || (dr == 0 && dc == 1)
	}
	return dr == forward && dc == 0
}

// isValidPieceMove checks the per-kind geometry only; occupancy of the
// destination by a friendly piece and king safety are checked by IsValidMove.
func isValidPieceMove(b *Board, from, to Square, p Piece) bool {
	switch p.Kind {
	case General:
		return isValidGeneralMove(from, to, p.Side)
	case Advisor:
		return isValidAdvisorMove(from, to, p.Side)
	case Elephant:
		return isValidElephantMove(b, from, to, p.Side)
	case Horse:
		return isValidHorseMove(b, from, to)
	case Chariot:
		return isValidChariotMove(b, from, to)
	case Cannon:
		return isValidCannonMove(b, from, to)
	case Soldier:
		return isValidSoldierMove(from, to, p.Side)
	}
	return false
}

// FindGeneral returns the square of side's General inside its palace.
func FindGeneral(b *Board, side Side) (Square, bool) {
	rows := [2]int{7, 9}
	if side == Black {
		rows = [2]int{0, 2}
	}
	for r := rows[0]; r <= rows[1]; r++ {
		for c := 3; c <= 5; c++ {
			p := b[r][c]
			if p.Kind == General && p.Side == side {
				return Square{Row: r, Col: c}, true
			}
		}
	}
	return Square{}, false
}

// AreGeneralsFacing reports the flying-general exposure: both Generals on one
// column with nothing between them.
func AreGeneralsFacing(b *Board) bool {
	red, okRed := FindGeneral(b, Red)
	black, okBlack := FindGeneral(b, Black)
	if !okRed || !okBlack || red.Col != black.Col {
		return false
	}
	n, _ := CountPiecesBetween(b, black, red)
	return n == 0
}

// IsUnderAttack reports whether any piece of the defender's opponent has a
// geometric move onto s. Check safety of the attacker is ignored.
func IsUnderAttack(b *Board, s Square, defender Side) bool {
	attacker := defender.Opponent()
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			p := b[r][c]
			if p.IsZero() || p.Side != attacker {
				continue
			}
			if isValidPieceMove(b, Square{Row: r, Col: c}, s, p) {
				return true
			}
		}
	}
	return false
}

// IsInCheck reports whether side's General is attacked. A side without a
// General counts as in check.
func IsInCheck(b *Board, side Side) bool {
	g, ok := FindGeneral(b, side)
	if !ok {
		return true
	}
	return IsUnderAttack(b, g, side)
}

// IsValidMove is the full legality test for side moving from -> to.
func IsValidMove(b *Board, from, to Square, side Side) bool {
	if !IsWithinBoard(from) || !IsWithinBoard(to) || from == to {
		return false
	}
	p := b.At(from)
	if p.IsZero() || p.Side != side {
		return false
	}
	if t := b.At(to); !t.IsZero() && t.Side == side {
		return false
	}
	if !isValidPieceMove(b, from, to, p) {
		return false
	}

	sim := *b
	sim.Set(to, p)
	sim.Clear(from)
	if AreGeneralsFacing(&sim) {
		return false
	}
	return !IsInCheck(&sim, side)
}

// ValidMoves lists every legal destination of the piece on from. The whole
// board is scanned; it is small and this is not a hot path.
func ValidMoves(b *Board, from Square, side Side) []Square {
	if !IsWithinBoard(from) {
		return nil
	}
	if p := b.At(from); p.IsZero() || p.Side != side {
		return nil
	}
	var out []Square
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			to := Square{Row: r, Col: c}
			if IsValidMove(b, from, to, side) {
				out = append(out, to)
			}
		}
	}
	return out
}

// AllValidMoves lists every legal move of side.
func AllValidMoves(b *Board, side Side) []Move {
	var out []Move
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			p := b[r][c]
			if p.IsZero() || p.Side != side {
				continue
			}
			from := Square{Row: r, Col: c}
			for _, to := range ValidMoves(b, from, side) {
				out = append(out, Move{From: from, To: to})
			}
		}
	}
	return out
}

func hasAnyValidMove(b *Board, side Side) bool {
	for r := 0; r < Rows; r++ {
		for c := 0; c < Cols; c++ {
			p := b[r][c]
			if p.IsZero() || p.Side != side {
				continue
			}
			if len(ValidMoves(b, Square{Row: r, Col: c}, side)) > 0 {
				return true
			}
		}
	}
	return false
}

func IsCheckmate(b *Board, side Side) bool {
	return IsInCheck(b, side) && !hasAnyValidMove(b, side)
}

func IsStalemate(b *Board, side Side) bool {
	return !IsInCheck(b, side) && !hasAnyValidMove(b, side)
}

func absDiff(a, b int) int {
	if a > b {
		return a - b
	}
	return b - a
}

func sign(v int) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

func minmax(a, b int) (int, int) {
	if a < b {
		return a, b
	}
	return b, a
}
