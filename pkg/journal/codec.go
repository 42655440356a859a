package journal

import "github.com/fxamacker/cbor/v2"

// Records are stored as canonical CBOR so the same record always encodes
// to the same bytes.
var encOptions = cbor.EncOptions{
	Sort:          cbor.SortCanonical,
	ShortestFloat: cbor.ShortestFloatNone,
	// times as plain unix integers, no tag 0/1
	Time:          cbor.TimeUnix,
	TimeTag:       cbor.EncTagNone,
	IndefLength:   cbor.IndefLengthForbidden,
	BigIntConvert: cbor.BigIntConvertShortest,
}

var em, _ = encOptions.EncMode()

var decOptions = cbor.DecOptions{
	// records are tiny; anything large is corrupt or hostile
	MaxArrayElements: 1000,
	MaxMapPairs:      100,
	MaxNestedLevels:  16,

	IndefLength: cbor.IndefLengthForbidden,
	DupMapKey:   cbor.DupMapKeyEnforcedAPF,
	BignumTag:   cbor.BignumTagForbidden,
	TimeTag:     cbor.DecTagIgnored,
}

var dm, _ = decOptions.DecMode()

func encode(v any) ([]byte, error) { return em.Marshal(v) }

func decode(data []byte, v any) error { return dm.Unmarshal(data, v) }
