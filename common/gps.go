package common

/*
https://en.wikipedia.org/wiki/Decimal_degrees

decimal places 	degrees 	object recognizable at this scale 	E/W at equator
2 	0.01 	town or village 	1.11 km
4 	0.0001 	individual street, large buildings 	11.1 m
*/

const (
	// GPSPrecision2 is the precision for town or village
	GPSPrecision2 = 2
	// GPSPrecision4 is the precision for individual street, large buildings
	GPSPrecision4 = 4
)
