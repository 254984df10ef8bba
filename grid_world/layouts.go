package grid_world

// Default room dimensions, used when no layout is given.
const (
	DefaultRows = 18
	DefaultCols = 24
)

// A small debug room and a furnished full-size room for development.
// '#' is furniture, '*' is dirt.
var (
	DebugRoom []string = []string{
		"......",
		".*..#.",
		"....#.",
		".##...",
		"....*.",
	}

	FullRoom []string = []string{
		"........................",
		"..####..........####....",
		"..####..........####....",
		"........*...............",
		"....................*...",
		"..........######........",
		"...*......######........",
		"..........######........",
		"........................",
		"##....................##",
		"##......*.........*...##",
		"........................",
		"....##########..........",
		"........................",
		"..*..............####...",
		"..............*..####...",
		"........................",
		"........................",
	}
)

// Layouts maps layout names, as accepted on the command line, to layouts.
var Layouts = map[string][]string{
	"debug": DebugRoom,
	"full":  FullRoom,
}
