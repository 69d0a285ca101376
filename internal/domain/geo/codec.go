package geo

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
)

// levelKeys maps each level to its collection key and parent field name as
// they appear in the dataset files.
var levelKeys = [levelCount]struct {
	collection string
	parent     string
}{
	Division: {collection: "divisions"},
	District: {collection: "districts", parent: "division_id"},
	Upazila:  {collection: "upazilas", parent: "district_id"},
	Union:    {collection: "unions", parent: "upazilla_id"},
}

// ErrNotNested is returned by DecodeNested when the document has no
// "divisions" array.
var ErrNotNested = errors.New("dataset has no divisions array")

// DecodeNested decodes the nested form
// {"divisions":[{...,"districts":[{...,"upazilas":[{...,"unions":[...]}]}]}]}
// into a flat Dataset. Children without an explicit parent field inherit the
// enclosing node's id.
func DecodeNested(data []byte) (Dataset, error) {
	var (
		ds    Dataset
		found bool
	)
	d := jx.DecodeBytes(data)
	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		if string(key) != levelKeys[Division].collection {
			return d.Skip()
		}
		if d.Next() != jx.Array {
			return errors.New("divisions is not an array")
		}
		found = true
		return d.Arr(func(d *jx.Decoder) error {
			return decodeNode(d, Division, "", true, &ds)
		})
	}); err != nil {
		return Dataset{}, errors.Wrap(err, "decode nested dataset")
	}
	if !found {
		return Dataset{}, ErrNotNested
	}
	return ds, nil
}

// DecodeFlat decodes one flat resource for level l: either
// {"<collection>":[...]} or a bare array. A document without the collection
// key yields no nodes.
func DecodeFlat(l Level, data []byte) ([]Node, error) {
	var ds Dataset
	d := jx.DecodeBytes(data)

	decodeArr := func(d *jx.Decoder) error {
		return d.Arr(func(d *jx.Decoder) error {
			return decodeNode(d, l, "", false, &ds)
		})
	}

	var err error
	switch d.Next() {
	case jx.Array:
		err = decodeArr(d)
	case jx.Object:
		err = d.ObjBytes(func(d *jx.Decoder, key []byte) error {
			if string(key) != levelKeys[l].collection || d.Next() == jx.Null {
				return d.Skip()
			}
			return decodeArr(d)
		})
	default:
		err = errors.Errorf("unexpected %s", d.Next())
	}
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", levelKeys[l].collection)
	}
	return ds.level(l), nil
}

// decodeNode decodes a single node at level l and, when nested is set, its
// child collection.
func decodeNode(d *jx.Decoder, l Level, parentID string, nested bool, ds *Dataset) error {
	n := Node{Level: l}
	var childRaw jx.Raw

	childKey := ""
	if nested && l+1 < levelCount {
		childKey = levelKeys[l+1].collection
	}

	if err := d.ObjBytes(func(d *jx.Decoder, key []byte) error {
		var err error
		switch k := string(key); {
		case k == "id":
			n.ID, err = decodeID(d)
		case k == "name":
			n.Name, err = decodeString(d)
		case k == "bn_name":
			n.AltName, err = decodeString(d)
		case l > Division && k == levelKeys[l].parent:
			n.ParentID, err = decodeID(d)
		case childKey != "" && k == childKey:
			childRaw, err = d.Raw()
		default:
			err = d.Skip()
		}
		return err
	}); err != nil {
		return errors.Wrapf(err, "decode %s", l)
	}

	if n.ID == "" {
		return errors.Errorf("%s without id", l)
	}
	if n.ParentID == "" {
		n.ParentID = parentID
	}

	switch l {
	case Division:
		ds.Divisions = append(ds.Divisions, n)
	case District:
		ds.Districts = append(ds.Districts, n)
	case Upazila:
		ds.Upazilas = append(ds.Upazilas, n)
	case Union:
		ds.Unions = append(ds.Unions, n)
	}

	if len(childRaw) == 0 {
		return nil
	}
	cd := jx.DecodeBytes(childRaw)
	if cd.Next() == jx.Null {
		return nil
	}
	return cd.Arr(func(d *jx.Decoder) error {
		return decodeNode(d, l+1, n.ID, true, ds)
	})
}

// decodeID accepts numeric and string ids and normalizes them to strings.
func decodeID(d *jx.Decoder) (string, error) {
	switch d.Next() {
	case jx.Number:
		num, err := d.Num()
		if err != nil {
			return "", err
		}
		return num.String(), nil
	case jx.Null:
		return "", d.Null()
	default:
		return d.Str()
	}
}

func decodeString(d *jx.Decoder) (string, error) {
	if d.Next() == jx.Null {
		return "", d.Null()
	}
	return d.Str()
}
