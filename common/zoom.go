package common

/*
Level 	Tile width (° of longitude) 	Examples of areas to represent
3 	45 	largest country
10 	0.352 	metropolitan area
*/

type SlippyZoomLevelT int

const (
	// SlippyZoomLevel3 represents, eg. the largest country
	SlippyZoomLevel3 SlippyZoomLevelT = 3
	// SlippyZoomLevel10 represents, eg. a metropolitan area
	SlippyZoomLevel10 SlippyZoomLevelT = 10
)
