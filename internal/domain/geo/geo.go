// Package geo resolves the four-level Bangladesh administrative geography
// (division, district, upazila, union) used by the checkout address form.
package geo

import "fmt"

// Level is a geography hierarchy level.
type Level int

const (
	Division Level = iota
	District
	Upazila
	Union

	levelCount = 4
)

func (l Level) String() string {
	switch l {
	case Division:
		return "division"
	case District:
		return "district"
	case Upazila:
		return "upazila"
	case Union:
		return "union"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Parent returns the level above l. Division has no parent.
func (l Level) Parent() (Level, bool) {
	if l <= Division || l >= levelCount {
		return 0, false
	}
	return l - 1, true
}

// Node is one entry of the dataset. IDs are unique within a level only.
type Node struct {
	Level    Level
	ID       string
	Name     string
	AltName  string
	ParentID string
}

// Dataset is the flattened form of the geography: one slice per level in
// source order.
type Dataset struct {
	Divisions []Node
	Districts []Node
	Upazilas  []Node
	Unions    []Node
}

func (ds *Dataset) level(l Level) []Node {
	switch l {
	case Division:
		return ds.Divisions
	case District:
		return ds.Districts
	case Upazila:
		return ds.Upazilas
	case Union:
		return ds.Unions
	default:
		return nil
	}
}

// Len returns the total number of nodes.
func (ds *Dataset) Len() int {
	return len(ds.Divisions) + len(ds.Districts) + len(ds.Upazilas) + len(ds.Unions)
}

// InvalidLocationError reports a selection that does not resolve to a known
// dataset entry, or an entry that is not a child of the selected parent.
type InvalidLocationError struct {
	Level Level
	ID    string
}

// InvalidLocationMessage is the user-facing text for InvalidLocationError.
const InvalidLocationMessage = "Invalid location data selected. Please try again."

func (e *InvalidLocationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("no %s selected", e.Level)
	}
	return fmt.Sprintf("invalid %s %q", e.Level, e.ID)
}
