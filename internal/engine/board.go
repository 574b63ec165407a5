package engine

const BoardSize = 9

var lines = [...][3]int{
	{0, 1, 2}, {3, 4, 5}, {6, 7, 8},
	{0, 3, 6}, {1, 4, 7}, {2, 5, 8},
	{0, 4, 8}, {2, 4, 6},
}

// Board is a 3x3 game: three in a row wins, and a player left without
// a free cell on their turn loses, so every game has a winner.
type Board struct {
	cells  [BoardSize]int8 // -1 empty, otherwise Side
	turn   Side
	winner *Side
}

func NewBoard() State {
	b := &Board{}
	for i := range b.cells {
		b.cells[i] = -1
	}
	return b
}

func (b *Board) Play(a Action) error {
	if b.winner != nil {
		return ErrGameOver
	}
	if a.Cell < 0 || a.Cell >= BoardSize {
		return ErrOutOfBoard
	}
	if b.cells[a.Cell] != -1 {
		return ErrCellTaken
	}
	b.cells[a.Cell] = int8(b.turn)

	if b.completesLine(a.Cell) {
		w := b.turn
		b.winner = &w
		return nil
	}
	b.turn = b.turn.Other()
	if b.full() {
		w := b.turn.Other()
		b.winner = &w
	}
	return nil
}

func (b *Board) CurrentPlayer() (Side, bool) {
	if b.winner != nil {
		return 0, false
	}
	return b.turn, true
}

func (b *Board) Winner() (Side, bool) {
	if b.winner == nil {
		return 0, false
	}
	return *b.winner, true
}

// Cell returns the side occupying i, false when it is empty.
func (b *Board) Cell(i int) (Side, bool) {
	if i < 0 || i >= BoardSize || b.cells[i] == -1 {
		return 0, false
	}
	return Side(b.cells[i]), true
}

func (b *Board) completesLine(cell int) bool {
	mark := b.cells[cell]
	for _, l := range lines {
		if l[0] != cell && l[1] != cell && l[2] != cell {
			continue
		}
		if b.cells[l[0]] == mark && b.cells[l[1]] == mark && b.cells[l[2]] == mark {
			return true
		}
	}
	return false
}

func (b *Board) full() bool {
	for _, c := range b.cells {
		if c == -1 {
			return false
		}
	}
	return true
}
