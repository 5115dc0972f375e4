package common

// Kind is the operation carried by a message, encoded as the BER context tag of its PDU.
type Kind byte

const (
	GetRequest     Kind = 0xA0
	GetNextRequest Kind = 0xA1
	Response       Kind = 0xA2
	SetRequest     Kind = 0xA3
	Trap           Kind = 0xA4
	GetBulkRequest Kind = 0xA5
	InformRequest  Kind = 0xA6
	Trap2          Kind = 0xA7
	Report         Kind = 0xA8
)

var kindNames = map[Kind]string{
	GetRequest:     "get",
	GetNextRequest: "get-next",
	Response:       "response",
	SetRequest:     "set",
	Trap:           "trap",
	GetBulkRequest: "get-bulk",
	InformRequest:  "inform",
	Trap2:          "trap2",
	Report:         "report",
}

// ParseKind validates a PDU tag.
func ParseKind(code byte) (Kind, error) {
	k := Kind(code)
	if _, ok := kindNames[k]; !ok {
		return 0, &InvalidKindError{Code: code}
	}
	return k, nil
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return "unknown"
}

// Version is the SNMP message version as carried on the wire.
type Version int

const (
	V1  Version = 0
	V2c Version = 1
	V3  Version = 3
)

// ParseVersion validates a version code. The community-less v2 variants (v2u, v2p and the
// net-snmp v2star codes) are recognised but not supported.
func ParseVersion(code int) (Version, error) {
	switch code {
	case 0, 1, 3:
		return Version(code), nil
	case 2, 128, 129, 130:
		return 0, &UnsupportedVersionError{Code: code}
	}
	return 0, &InvalidVersionError{Code: code}
}

func (v Version) String() string {
	switch v {
	case V1:
		return "v1"
	case V2c:
		return "v2c"
	case V3:
		return "v3"
	}
	return "unknown"
}

// Confirmed reports whether a message of this kind is answered by the receiving entity.
func (k Kind) Confirmed() bool {
	switch k { //nolint:exhaustive
	case Trap, Trap2, Response, Report:
		return false
	}
	return true
}
