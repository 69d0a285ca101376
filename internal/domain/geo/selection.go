package geo

// Selection is the state of the cascading location selectors. Options hold
// the dependent choices for the current division and district.
type Selection struct {
	DivisionID string
	DistrictID string
	UpazilaID  string

	Districts []Node
	Upazilas  []Node
}

// Location is a fully resolved division, district and upazila.
type Location struct {
	Division Node
	District Node
	Upazila  Node
}

// SelectDivision selects a division, clearing district and upazila. District
// options become exactly the children of id. An empty id clears the whole
// selection.
func (ix *Index) SelectDivision(_ Selection, id string) (Selection, error) {
	if id == "" {
		return Selection{}, nil
	}
	if _, ok := ix.Lookup(Division, id); !ok {
		return Selection{}, &InvalidLocationError{Level: Division, ID: id}
	}
	return Selection{
		DivisionID: id,
		Districts:  ix.Districts(id),
	}, nil
}

// SelectDistrict selects a district of the current division, clearing the
// upazila. An empty id clears district and upazila.
func (ix *Index) SelectDistrict(sel Selection, id string) (Selection, error) {
	next := Selection{
		DivisionID: sel.DivisionID,
		Districts:  sel.Districts,
	}
	if id == "" {
		return next, nil
	}
	n, ok := ix.Lookup(District, id)
	if !ok || sel.DivisionID == "" || n.ParentID != sel.DivisionID {
		return sel, &InvalidLocationError{Level: District, ID: id}
	}
	next.DistrictID = id
	next.Upazilas = ix.Upazilas(id)
	return next, nil
}

// SelectUpazila records the final selection. The upazila must belong to the
// current district.
func (ix *Index) SelectUpazila(sel Selection, id string) (Selection, error) {
	next := sel
	next.UpazilaID = ""
	if id == "" {
		return next, nil
	}
	n, ok := ix.Lookup(Upazila, id)
	if !ok || sel.DistrictID == "" || n.ParentID != sel.DistrictID {
		return sel, &InvalidLocationError{Level: Upazila, ID: id}
	}
	next.UpazilaID = id
	return next, nil
}

// Resolve maps the selected ids to dataset entries. Every level must be set,
// known, and a child of the level above.
func (ix *Index) Resolve(sel Selection) (Location, error) {
	var loc Location

	div, ok := ix.Lookup(Division, sel.DivisionID)
	if !ok {
		return loc, &InvalidLocationError{Level: Division, ID: sel.DivisionID}
	}
	dist, ok := ix.Lookup(District, sel.DistrictID)
	if !ok || dist.ParentID != div.ID {
		return loc, &InvalidLocationError{Level: District, ID: sel.DistrictID}
	}
	upa, ok := ix.Lookup(Upazila, sel.UpazilaID)
	if !ok || upa.ParentID != dist.ID {
		return loc, &InvalidLocationError{Level: Upazila, ID: sel.UpazilaID}
	}

	loc.Division = div
	loc.District = dist
	loc.Upazila = upa
	return loc, nil
}

// DivisionName returns the name of the selected division, or "" when none
// is selected or it is not in the index.
func (ix *Index) DivisionName(sel Selection) string {
	n, ok := ix.Lookup(Division, sel.DivisionID)
	if !ok {
		return ""
	}
	return n.Name
}
