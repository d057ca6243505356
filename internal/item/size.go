package item

// Size is the inventory footprint of an item in grid cells.
type Size struct {
	Width, Height int
}

var groupSizes = [GroupCount]Size{
	GroupSword:  {1, 3},
	GroupAxe:    {2, 3},
	GroupMace:   {2, 3},
	GroupSpear:  {2, 4},
	GroupBow:    {2, 3},
	GroupStaff:  {1, 4},
	GroupShield: {2, 2},
	GroupHelm:   {2, 2},
	GroupArmor:  {2, 3},
	GroupPants:  {2, 2},
	GroupGloves: {2, 2},
	GroupBoots:  {2, 2},
	GroupWing:   {3, 2},
	GroupHelper: {1, 1},
	GroupPotion: {1, 1},
	GroupScroll: {1, 1},
}

func (c Code) Size() Size {
	g := c.Group()
	if int(g) >= len(groupSizes) {
		return Size{1, 1}
	}
	return groupSizes[g]
}

// FitsGrid reports whether an item of size s fits somewhere in an occupancy
// grid (true = occupied).
func FitsGrid(grid [][]bool, s Size) bool {
	if len(grid) == 0 || s.Width <= 0 || s.Height <= 0 {
		return false
	}
	for y := 0; y <= len(grid)-s.Height; y++ {
		for x := 0; x <= len(grid[0])-s.Width; x++ {
			if regionFree(grid, x, y, s) {
				return true
			}
		}
	}
	return false
}

func regionFree(grid [][]bool, x, y int, s Size) bool {
	for dy := 0; dy < s.Height; dy++ {
		row := grid[y+dy]
		for dx := 0; dx < s.Width; dx++ {
			if x+dx >= len(row) || row[x+dx] {
				return false
			}
		}
	}
	return true
}
