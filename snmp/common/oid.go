package common

import (
	"encoding/asn1"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// OID is an SNMP object identifier. Arcs are unsigned 64-bit values so that identifiers used by
// net-snmp style agents (which allow arcs above 2^31) survive a round trip.
// An OID is treated as immutable; every method that derives a new identifier returns a fresh slice.
type OID []uint64

// ParseOID parses a dot separated decimal object identifier, such as "1.3.6.1.2.1.1.1.0".
// A single leading dot is accepted.
func ParseOID(s string) (OID, error) {
	s = strings.TrimPrefix(s, ".")
	if s == "" {
		return nil, errors.Wrapf(ErrOIDParse, "empty identifier")
	}
	parts := strings.Split(s, ".")
	oid := make(OID, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, errors.Wrapf(ErrOIDParse, "component %d of %q", i, s)
		}
		oid[i] = v
	}
	return oid, nil
}

// MustParseOID is like ParseOID but panics if the identifier cannot be parsed.
func MustParseOID(s string) OID {
	oid, err := ParseOID(s)
	if err != nil {
		panic(err)
	}
	return oid
}

// FromInts converts an encoding/asn1 object identifier.
func FromInts(ids asn1.ObjectIdentifier) OID {
	oid := make(OID, len(ids))
	for i, v := range ids {
		oid[i] = uint64(v)
	}
	return oid
}

// Ints converts to an encoding/asn1 object identifier; arcs that do not fit an int are truncated.
func (o OID) Ints() asn1.ObjectIdentifier {
	ids := make(asn1.ObjectIdentifier, len(o))
	for i, v := range o {
		ids[i] = int(v)
	}
	return ids
}

func (o OID) String() string {
	var sb strings.Builder
	for i, v := range o {
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(strconv.FormatUint(v, 10))
	}
	return sb.String()
}

// Compare orders identifiers lexicographically by arc, returning -1, 0 or +1.
func (o OID) Compare(other OID) int {
	for i := 0; i < len(o) && i < len(other); i++ {
		switch {
		case o[i] < other[i]:
			return -1
		case o[i] > other[i]:
			return 1
		}
	}
	switch {
	case len(o) < len(other):
		return -1
	case len(o) > len(other):
		return 1
	}
	return 0
}

func (o OID) Less(other OID) bool {
	return o.Compare(other) < 0
}

func (o OID) Equal(other OID) bool {
	return o.Compare(other) == 0
}

// Contains reports whether o is a prefix of other. An identifier contains itself.
func (o OID) Contains(other OID) bool {
	if len(other) < len(o) {
		return false
	}
	for i := range o {
		if o[i] != other[i] {
			return false
		}
	}
	return true
}

// Join returns a new identifier made of o followed by arcs.
func (o OID) Join(arcs ...uint64) OID {
	joined := make(OID, 0, len(o)+len(arcs))
	joined = append(joined, o...)
	return append(joined, arcs...)
}

// Extend returns a new identifier made of o followed by suffix.
func (o OID) Extend(suffix OID) OID {
	return o.Join(suffix...)
}

// InTable returns the arcs of o that follow the table prefix, or nil when o is not within table.
func (o OID) InTable(table OID) OID {
	if !table.Contains(o) {
		return nil
	}
	return o[len(table):].Clone()
}

func (o OID) Clone() OID {
	if o == nil {
		return nil
	}
	c := make(OID, len(o))
	copy(c, o)
	return c
}

// OIDs is a list of object identifiers.
type OIDs []OID

// CheckIncreasing returns ErrOIDsNotIncreasing unless every identifier sorts strictly after its predecessor.
func (l OIDs) CheckIncreasing() error {
	for i := 1; i < len(l); i++ {
		if !l[i-1].Less(l[i]) {
			return errors.Wrapf(ErrOIDsNotIncreasing, "%s follows %s", l[i], l[i-1])
		}
	}
	return nil
}
