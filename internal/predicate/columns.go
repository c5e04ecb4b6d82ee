package predicate

// Column names of the GRASP native inputs table.
const (
	ColRegion  = "Region"
	ColSoil    = "Soil"
	ColGrassBA = "GrassBA"
	ColLandCon = "LandCon"
	ColStkRate = "StkRate"
	ColYear    = "Year"
	ColMonth   = "Month"
	ColGrowth  = "Growth"
	ColBP1     = "BP1"
	ColBP2     = "BP2"

	// ColCutNum is a legacy column. It is optional and carried through unread.
	ColCutNum = "CutNum"
)

// RequiredColumns must all be present for a dataset to be usable.
var RequiredColumns = []string{
	ColRegion, ColSoil, ColGrassBA, ColLandCon, ColStkRate,
	ColYear, ColMonth, ColGrowth, ColBP1, ColBP2,
}
