package domain

import "fmt"

// Category is a Saffir-Simpson intensity label derived from wind speed.
type Category string

const (
	TropicalDepression Category = "TD"
	TropicalStorm      Category = "TS"
	Hurricane1         Category = "H1"
	Hurricane2         Category = "H2"
	Hurricane3         Category = "H3"
	Hurricane4         Category = "H4"
	Hurricane5         Category = "H5"
)

// Categories lists every category from weakest to strongest.
var Categories = []Category{
	TropicalDepression, TropicalStorm,
	Hurricane1, Hurricane2, Hurricane3, Hurricane4, Hurricane5,
}

// ParseCategory validates a category label such as "H3".
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s {
			return c, nil
		}
	}
	return "", fmt.Errorf("unknown category %q", s)
}

// Classify maps a wind speed in knots to its category. Boundaries are closed
// on both ends (34 and 63 are TS, 64 is H1, 135 is H4, 136 is H5).
// Negative wind is not a physical reading and is rejected.
func Classify(wind int) (Category, error) {
	if wind < 0 {
		return "", invalidInput("classify", "negative wind %d", wind)
	}
	return categoryOf(wind), nil
}

func categoryOf(wind int) Category {
	switch {
	case wind < 34:
		return TropicalDepression
	case wind <= 63:
		return TropicalStorm
	case wind <= 82:
		return Hurricane1
	case wind <= 95:
		return Hurricane2
	case wind <= 113:
		return Hurricane3
	case wind <= 135:
		return Hurricane4
	default:
		return Hurricane5
	}
}
