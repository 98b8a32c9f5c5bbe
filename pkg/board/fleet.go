package board

import "sort"

// NumShips is the number of ships in a complete fleet.
const NumShips = 5

// RequiredSizes is the fixed fleet composition: one 5, one 4, two 3s, one 2.
var RequiredSizes = []int{5, 4, 3, 3, 2}

// ValidateComposition reports whether ships has exactly the lengths
// RequiredSizes demands, in any order.
func ValidateComposition(ships []Ship) bool {
	if len(ships) != len(RequiredSizes) {
		return false
	}
	got := make([]int, len(ships))
	for i, s := range ships {
		got[i] = s.Dim
	}
	want := append([]int(nil), RequiredSizes...)
	sort.Ints(got)
	sort.Ints(want)
	for i := range want {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

// PlacedShip pairs a ship's placement with whether it has been sunk.
type PlacedShip struct {
	Ship
	Sunk bool
}

// Fleet is a player's committed set of placed ships.
type Fleet struct {
	Ships []PlacedShip
}

// NewFleet places every ship of ships onto a fresh board, committing only
// if every placement succeeds and the composition is valid. On any
// failure it returns an error and no board/fleet is produced.
func NewFleet(ships []Ship) (Board, *Fleet, error) {
	if !ValidateComposition(ships) {
		return Board{}, nil, ErrInvalidComposition
	}
	b := New()
	placed := make([]PlacedShip, 0, len(ships))
	for _, s := range ships {
		if err := PlaceShip(&b, s); err != nil {
			return Board{}, nil, err
		}
		placed = append(placed, PlacedShip{Ship: s})
	}
	return b, &Fleet{Ships: placed}, nil
}

// shipAt returns the placed ship occupying (x, y), or nil.
func (f *Fleet) shipAt(x, y int) *PlacedShip {
	for i := range f.Ships {
		cells, err := Footprint(f.Ships[i].Ship)
		if err != nil {
			continue
		}
		for _, c := range cells {
			if c[0] == x && c[1] == y {
				return &f.Ships[i]
			}
		}
	}
	return nil
}

// allCellsHit reports whether every cell of ship ps is marked Hit on b.
func (ps *PlacedShip) allCellsHit(b *Board) bool {
	cells, err := Footprint(ps.Ship)
	if err != nil {
		return false
	}
	for _, c := range cells {
		if b[c[0]][c[1]] != Hit {
			return false
		}
	}
	return true
}

// ShipsRemaining returns the number of ships in f that are not yet sunk.
func (f *Fleet) ShipsRemaining() int {
	n := 0
	for _, s := range f.Ships {
		if !s.Sunk {
			n++
		}
	}
	return n
}

// AllSunk reports whether every ship in f has been sunk.
func (f *Fleet) AllSunk() bool {
	return f.ShipsRemaining() == 0
}
