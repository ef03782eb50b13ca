// Package domain models the historical HURDAT Atlantic hurricane track dataset.
//
// # Data Source
//
// HURDAT ("HURricane DATabase") is the NOAA National Hurricane Center's
// best-track archive, distributed as a fixed-width ASCII file covering storms
// from 1851 onward. Each storm is a block of lines: one header line, one
// observation line per day of the storm's life, and a trailing summary line.
//
// # Line Layout
//
// Columns are 0-indexed byte offsets. The full field table lives in layout.go.
//
// Header line:
//
//	00005 06/25/1851 M= 4  1 SNBR=   1 NOT NAMED   XING=1 SSS=1
//	      ^^ ^^ ^^^^ ^^ ^^ ^^            ^^^^^^^^^^^      ^
//	      |  |  |    |  |  storm number   name (35-45)    landfall flag (52)
//	      |  |  |    |  days of data (19-20)
//	      |  |  |    "M=" marker (17-18), identifies the header
//	      month (6-7), day (9-10), year (12-15)
//
// Observation line:
//
//	00010 06/25*2801000  80    0*2801010  80    0*2801020  80    0*2811031  80    0*
//	      ^^ ^^ |<--- 17-char block for 00Z --->|<- 06Z ->...
//
// Four 17-character blocks start at column 11, one per synoptic hour
// (00, 06, 12, 18 UTC). Inside a block:
//
//	offset 0     stage code: * tropical, S subtropical, E extratropical, W wave, L remnant low
//	offset 1-3   latitude in tenths of a degree north ("280" = 28.0)
//	offset 4-7   longitude in tenths of a degree west ("1000" = 100.0)
//	offset 9-11  maximum sustained wind in knots (0 = not reported)
//	offset 13-16 central pressure in hPa (0 = not reported, surfaced as -999)
//
// A block with zero wind and zero latitude is padding: the storm was not
// observed at that hour and the block is dropped.
//
// Footer line:
//
//	00030 HR
//
// The trailing line carries the storm's peak classification in place of the
// date. It is recognized by column 6 not holding a digit.
//
// # Longitude Convention
//
// Longitude is stored as a positive magnitude west of Greenwich. Values below
// 180 are negated to the usual west-negative convention. Values of 180 and
// above have wrapped past the antimeridian and are reported as raw-360.
//
// # Year Rollover
//
// Observation lines carry month and day only. The year comes from the header
// and advances by one after the 18Z block of a December 31 line, for storms
// that live across New Year.
//
// # Intensity Categories
//
// Derived from wind speed (knots) on the Saffir-Simpson scale:
//
//	TD <34 | TS 34-63 | H1 64-82 | H2 83-95 | H3 96-113 | H4 114-135 | H5 >135
//
// # Geographic Midpoints
//
// Track positions are averaged on the unit sphere: each point is converted to
// Cartesian coordinates, the axes are averaged independently and the mean
// vector is converted back. See [Midpoint].
package domain
