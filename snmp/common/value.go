package common

import (
	"encoding/asn1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"net"
	"strconv"
	"time"

	"github.com/geoffgarside/ber"
	"github.com/pkg/errors"
)

// Wire tags of the values carried in variable bindings.
// Refer to https://tools.ietf.org/html/rfc2578#section-7.1 and the net-snmp opaque extensions.
const (
	UndefinedTag      = 0x00
	BooleanTag        = 0x01
	IntegerTag        = 0x02
	BitStringTag      = 0x03
	OctetStringTag    = 0x04
	NullTag           = 0x05
	OIDTag            = 0x06
	SequenceTag       = 0x30
	SetTag            = 0x31
	IPAddressTag      = 0x40
	Counter32Tag      = 0x41
	Gauge32Tag        = 0x42
	TimeTicksTag      = 0x43
	OpaqueTag         = 0x44
	Counter64Tag      = 0x46
	FloatTag          = 0x48
	DoubleTag         = 0x49
	Integer64Tag      = 0x4A
	Unsigned64Tag     = 0x4B
	NoSuchObjectTag   = 0x80
	NoSuchInstanceTag = 0x81
	EndOfMibViewTag   = 0x82
)

// DataType identifies the variant held by a TypedValue.
type DataType int

const (
	Undefined DataType = iota
	Boolean
	Integer
	BitString
	OctetString
	Null
	ObjectIdentifier
	Sequence
	Set
	IPAddress
	Counter32
	Gauge32
	TimeTicks
	Opaque
	Counter64
	Float
	Double
	Integer64
	Unsigned64

	NoSuchObject
	NoSuchInstance
	EndOfMibView
	NotImplemented
)

// TypedValue encapsulates the data type and value of a variable.
//
// Value holds, by type:
//   - Boolean: bool
//   - Integer, Integer64: int64
//   - Counter32, Gauge32, TimeTicks: uint32
//   - Counter64, Unsigned64: uint64
//   - Float: float32, Double: float64
//   - OctetString, Opaque, Sequence, Set: []byte
//   - BitString: asn1.BitString
//   - ObjectIdentifier: OID
//   - IPAddress: net.IP
//   - NotImplemented: the unrecognised tag as a uint8
//   - Null and the exception markers: nil
type TypedValue struct {
	Type  DataType
	Value interface{}
}

// Decode converts a value tag and its content octets into a TypedValue.
// The content is copied; the result never refers to data.
// Unknown tags yield a NotImplemented value rather than an error.
//
//nolint:gocyclo
func Decode(tag byte, data []byte) (*TypedValue, error) {
	switch tag {
	case UndefinedTag:
		return &TypedValue{Type: Undefined}, nil
	case NoSuchObjectTag:
		return &TypedValue{Type: NoSuchObject}, nil
	case NoSuchInstanceTag:
		return &TypedValue{Type: NoSuchInstance}, nil
	case EndOfMibViewTag:
		return &TypedValue{Type: EndOfMibView}, nil

	case BooleanTag:
		if len(data) != 1 {
			return nil, errors.Errorf("boolean has %d bytes", len(data))
		}
		return &TypedValue{Type: Boolean, Value: data[0] != 0}, nil
	case IntegerTag:
		return decodeInteger(data)
	case Integer64Tag:
		v, err := decodeSigned(data)
		if err != nil {
			return nil, err
		}
		return &TypedValue{Type: Integer64, Value: v}, nil
	case BitStringTag:
		if len(data) == 0 || data[0] > 7 || (len(data) == 1 && data[0] != 0) {
			return nil, errors.New("malformed bit string")
		}
		b := copyBytes(data[1:])
		return &TypedValue{Type: BitString, Value: asn1.BitString{Bytes: b, BitLength: len(b)*8 - int(data[0])}}, nil
	case OctetStringTag:
		return &TypedValue{Type: OctetString, Value: copyBytes(data)}, nil
	case OpaqueTag:
		return &TypedValue{Type: Opaque, Value: copyBytes(data)}, nil
	case SequenceTag:
		return &TypedValue{Type: Sequence, Value: copyBytes(data)}, nil
	case SetTag:
		return &TypedValue{Type: Set, Value: copyBytes(data)}, nil
	case NullTag:
		return &TypedValue{Type: Null}, nil
	case OIDTag:
		oid, err := DecodeOID(data)
		if err != nil {
			return nil, err
		}
		return &TypedValue{Type: ObjectIdentifier, Value: oid}, nil
	case IPAddressTag:
		if len(data) != net.IPv4len {
			return nil, errors.Errorf("ip address has %d bytes", len(data))
		}
		return &TypedValue{Type: IPAddress, Value: net.IP(copyBytes(data))}, nil
	case Counter32Tag, Gauge32Tag, TimeTicksTag:
		v, err := decodeUnsigned(data, 32)
		if err != nil {
			return nil, err
		}
		return &TypedValue{Type: unsigned32Types[tag], Value: uint32(v)}, nil
	case Counter64Tag, Unsigned64Tag:
		v, err := decodeUnsigned(data, 64)
		if err != nil {
			return nil, err
		}
		dt := Counter64
		if tag == Unsigned64Tag {
			dt = Unsigned64
		}
		return &TypedValue{Type: dt, Value: v}, nil
	case FloatTag:
		if len(data) != 4 {
			return nil, errors.Errorf("float has %d bytes", len(data))
		}
		return &TypedValue{Type: Float, Value: math.Float32frombits(binary.BigEndian.Uint32(data))}, nil
	case DoubleTag:
		if len(data) != 8 {
			return nil, errors.Errorf("double has %d bytes", len(data))
		}
		return &TypedValue{Type: Double, Value: math.Float64frombits(binary.BigEndian.Uint64(data))}, nil
	}
	return &TypedValue{Type: NotImplemented, Value: tag}, nil
}

var unsigned32Types = map[byte]DataType{
	Counter32Tag: Counter32,
	Gauge32Tag:   Gauge32,
	TimeTicksTag: TimeTicks,
}

// Decodes a universal INTEGER by presenting the content to the BER decoder under the generic tag.
func decodeInteger(data []byte) (*TypedValue, error) {
	if len(data) == 0 || len(data) > 8 {
		return nil, errors.Errorf("integer has %d bytes", len(data))
	}
	tlv := append([]byte{asn1.TagInteger, byte(len(data))}, data...)
	var value int64
	if _, err := ber.Unmarshal(tlv, &value); err != nil {
		return nil, errors.Wrap(err, "integer")
	}
	return &TypedValue{Type: Integer, Value: value}, nil
}

// Encode is the inverse of Decode, returning the tag and content octets of the value.
func (tv *TypedValue) Encode() (byte, []byte, error) {
	switch tv.Type {
	case Undefined:
		return UndefinedTag, nil, nil
	case Null:
		return NullTag, nil, nil
	case NoSuchObject:
		return NoSuchObjectTag, nil, nil
	case NoSuchInstance:
		return NoSuchInstanceTag, nil, nil
	case EndOfMibView:
		return EndOfMibViewTag, nil, nil
	case Boolean:
		if tv.Value.(bool) {
			return BooleanTag, []byte{0xff}, nil
		}
		return BooleanTag, []byte{0}, nil
	case Integer:
		return IntegerTag, EncodeInteger(tv.Value.(int64)), nil
	case Integer64:
		return Integer64Tag, EncodeInteger(tv.Value.(int64)), nil
	case OctetString:
		return OctetStringTag, copyBytes(tv.Value.([]byte)), nil
	case Opaque:
		return OpaqueTag, copyBytes(tv.Value.([]byte)), nil
	case ObjectIdentifier:
		return OIDTag, EncodeOID(tv.Value.(OID)), nil
	case IPAddress:
		ip := tv.Value.(net.IP).To4()
		if ip == nil {
			return 0, nil, errors.New("not an ipv4 address")
		}
		return IPAddressTag, copyBytes(ip), nil
	case Counter32:
		return Counter32Tag, EncodeUnsigned(uint64(tv.Value.(uint32))), nil
	case Gauge32:
		return Gauge32Tag, EncodeUnsigned(uint64(tv.Value.(uint32))), nil
	case TimeTicks:
		return TimeTicksTag, EncodeUnsigned(uint64(tv.Value.(uint32))), nil
	case Counter64:
		return Counter64Tag, EncodeUnsigned(tv.Value.(uint64)), nil
	case Unsigned64:
		return Unsigned64Tag, EncodeUnsigned(tv.Value.(uint64)), nil
	}
	return 0, nil, errors.Errorf("cannot encode data type %d", tv.Type)
}

// IsException reports whether the value is one of the out-of-band markers an agent returns
// in place of a value.
func (tv *TypedValue) IsException() bool {
	switch tv.Type { //nolint: exhaustive
	case NoSuchObject, NoSuchInstance, EndOfMibView:
		return true
	}
	return false
}

// Delivers value of a typed value as a string.
//
//nolint:gocyclo
func (tv *TypedValue) String() string {
	switch tv.Type {
	case Integer, Integer64:
		return strconv.FormatInt(tv.Value.(int64), 10)
	case OctetString:
		return string(tv.Value.([]byte))
	case ObjectIdentifier:
		return tv.Value.(OID).String()
	case TimeTicks:
		t := int64(tv.Value.(uint32)) * int64(10*time.Millisecond)
		return time.Duration(t).String()
	case Counter32, Gauge32:
		return strconv.FormatUint(uint64(tv.Value.(uint32)), 10)
	case Counter64, Unsigned64:
		return strconv.FormatUint(tv.Value.(uint64), 10)
	case IPAddress:
		return tv.Value.(net.IP).String()
	case Opaque, Sequence, Set:
		return hex.EncodeToString(tv.Value.([]byte))
	case BitString:
		return hex.EncodeToString(tv.Value.(asn1.BitString).Bytes)
	case Boolean:
		return strconv.FormatBool(tv.Value.(bool))
	case Float:
		return strconv.FormatFloat(float64(tv.Value.(float32)), 'g', -1, 32)
	case Double:
		return strconv.FormatFloat(tv.Value.(float64), 'g', -1, 64)
	case Null:
		return "Null"
	case Undefined:
		return "Undefined"
	case EndOfMibView:
		return "End of Mib View"
	case NoSuchObject:
		return "No such Object"
	case NoSuchInstance:
		return "No such Instance"
	case NotImplemented:
		return fmt.Sprintf("Not implemented (0x%02x)", tv.Value.(uint8))
	}
	return fmt.Sprintf("unrecognised data type %d", tv.Type)
}

// Delivers value of a typed value as an OID.
// Value type must be ObjectIdentifier!
func (tv *TypedValue) OID() OID {
	return tv.Value.(OID)
}

// Delivers the raw octets of string-like values.
func (tv *TypedValue) Bytes() []byte {
	switch v := tv.Value.(type) {
	case []byte:
		return v
	case net.IP:
		return v
	case asn1.BitString:
		return v.Bytes
	}
	panic(fmt.Errorf("non-octet data type %d", tv.Type))
}

// HardwareAddr interprets a six octet string as a MAC address.
func (tv *TypedValue) HardwareAddr() (net.HardwareAddr, error) {
	if tv.Type != OctetString || len(tv.Value.([]byte)) != 6 {
		return nil, errors.New("value is not a mac address")
	}
	return net.HardwareAddr(copyBytes(tv.Value.([]byte))), nil
}

// Delivers value of a typed value as an int.
// Value type must be integer-based.
func (tv *TypedValue) Int() int {
	switch tv.Type { //nolint: exhaustive
	case Integer, Integer64:
		return int(tv.Value.(int64))
	case Counter64, Unsigned64:
		return int(tv.Value.(uint64))
	case Counter32, Gauge32, TimeTicks:
		return int(tv.Value.(uint32))
	}
	panic(fmt.Errorf("non-integer data type %d", tv.Type))
}

// Delivers value of an unsigned typed value as a uint64.
func (tv *TypedValue) Uint64() uint64 {
	switch tv.Type { //nolint: exhaustive
	case Counter64, Unsigned64:
		return tv.Value.(uint64)
	case Counter32, Gauge32, TimeTicks:
		return uint64(tv.Value.(uint32))
	}
	panic(fmt.Errorf("non-unsigned data type %d", tv.Type))
}

func copyBytes(b []byte) []byte {
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
