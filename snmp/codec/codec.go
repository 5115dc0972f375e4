// Package codec converts messages to and from their BER wire form.
//
// The BER library is unaware of SNMP PDU tags and application data types, so encoding and decoding
// happen in stages. The envelope is handled with the PDU left as a raw ASN.1 value. The first byte
// of the raw PDU is swapped between the SNMP message tag and the ASN.1 sequence tag, and the PDU
// is then marshalled or unmarshalled with its variable bindings held as raw values, whose tags and
// content octets are carried through unchanged.
package codec

import (
	"encoding/asn1"
	"net"

	"github.com/geoffgarside/ber"
	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// MaxMessageSize is the largest datagram accepted or produced.
const MaxMessageSize = 65507

const sequenceTag = 0x30

// Defines the v1/v2c packet passed over the network to/from an SNMP agent.
type communityPacket struct {
	Version   int
	Community []byte
	RawPdu    asn1.RawValue
}

// rawPDU defines the pdu that is used to passed to/from an SNMP agent.
type rawPDU struct {
	RequestID int32
	// Non-zero used to indicate that an exception occurred to prevent the processing of the request
	Error int
	// If Error is non-zero, identifies which variable binding in the list caused the exception
	ErrorIndex  int
	VarbindList []rawVarbind
}

// rawTrapPDU is the v1 Trap-PDU of RFC 1157.
type rawTrapPDU struct {
	Enterprise   asn1.RawValue
	AgentAddr    asn1.RawValue
	GenericTrap  int
	SpecificTrap int
	Timestamp    asn1.RawValue
	VarbindList  []rawVarbind
}

// The name is kept raw so that arcs above the range of asn1.ObjectIdentifier survive.
type rawVarbind struct {
	Name  asn1.RawValue
	Value asn1.RawValue
}

// KeyLookup returns the localised keys used to authenticate and decrypt a v3 message
// from the given authoritative engine and user.
type KeyLookup func(engineID []byte, userName string) (*usm.LocalizedUser, error)

// Marshal encodes a v1 or v2c message.
func Marshal(msg *common.Message) ([]byte, error) {
	pdu, err := marshalPDU(msg)
	if err != nil {
		return nil, err
	}
	p := communityPacket{
		Version:   int(msg.Version),
		Community: msg.RawCommunity,
		RawPdu:    asn1.RawValue{FullBytes: pdu},
	}
	return ber.Marshal(p)
}

// Unmarshal decodes a message of any supported version. keys is consulted for v3 messages
// that are authenticated; it may be nil when only unauthenticated messages are expected.
func Unmarshal(input []byte, keys KeyLookup) (*common.Message, error) {
	// Decoding patches tags in place.
	input = append([]byte(nil), input...)

	code, err := peekVersion(input)
	if err != nil {
		return nil, err
	}
	version, err := common.ParseVersion(code)
	if err != nil {
		return nil, err
	}
	if version == common.V3 {
		return unmarshalV3(input, keys)
	}

	pkt := &communityPacket{}
	if _, err = ber.Unmarshal(input, pkt); err != nil {
		return nil, errors.Wrap(err, "packet")
	}
	msg, err := unmarshalPDU(pkt.RawPdu.FullBytes)
	if err != nil {
		return nil, err
	}
	msg.Version = version
	msg.RawCommunity = pkt.Community
	return msg, nil
}

func marshalPDU(msg *common.Message) ([]byte, error) {
	vbl, err := marshalVarbinds(msg)
	if err != nil {
		return nil, err
	}
	var b []byte
	if msg.Kind == common.Trap {
		if msg.TrapInfo == nil {
			return nil, errors.New("v1 trap without trap fields")
		}
		t := msg.TrapInfo
		addr := t.AgentAddress.To4()
		if addr == nil {
			addr = net.IPv4zero.To4()
		}
		b, err = ber.Marshal(rawTrapPDU{
			Enterprise:   rawTLV(common.OIDTag, common.EncodeOID(t.Enterprise)),
			AgentAddr:    rawTLV(common.IPAddressTag, addr),
			GenericTrap:  t.GenericTrap,
			SpecificTrap: t.SpecificTrap,
			Timestamp:    rawTLV(common.TimeTicksTag, common.EncodeUnsigned(uint64(t.Timestamp))),
			VarbindList:  vbl,
		})
	} else {
		b, err = ber.Marshal(rawPDU{
			RequestID:   msg.RequestID,
			Error:       msg.ErrorStatus,
			ErrorIndex:  msg.ErrorIndex,
			VarbindList: vbl,
		})
	}
	if err != nil {
		return nil, err
	}
	b[0] = byte(msg.Kind)
	return b, nil
}

func marshalVarbinds(msg *common.Message) ([]rawVarbind, error) {
	vbl := make([]rawVarbind, 0, msg.Vars().Len())
	for v := range msg.Variables() {
		name := v.Name()
		if len(name) < 2 {
			return nil, errors.Wrapf(common.ErrOIDParse, "variable name %q is too short", name)
		}
		vbl = append(vbl, rawVarbind{
			Name:  rawTLV(common.OIDTag, common.EncodeOID(name)),
			Value: rawTLV(v.Tag(), v.Data()),
		})
	}
	return vbl, nil
}

// Parses a raw PDU, returning a message with the resolved variable bindings.
func unmarshalPDU(raw []byte) (*common.Message, error) {
	if len(raw) == 0 {
		return nil, errors.New("missing pdu")
	}
	kind, err := common.ParseKind(raw[0])
	if err != nil {
		return nil, err
	}
	// Replace SNMP PDU Type with ASN1 sequence tag.
	raw[0] = sequenceTag

	msg := common.NewMessage(kind)
	var vbl []rawVarbind
	if kind == common.Trap {
		t := &rawTrapPDU{}
		if _, err = ber.Unmarshal(raw, t); err != nil {
			return nil, errors.Wrap(err, "trap pdu")
		}
		info, err := trapInfo(t)
		if err != nil {
			return nil, err
		}
		msg.TrapInfo = info
		vbl = t.VarbindList
	} else {
		p := &rawPDU{}
		if _, err = ber.Unmarshal(raw, p); err != nil {
			return nil, errors.Wrap(err, "pdu")
		}
		msg.RequestID = p.RequestID
		msg.ErrorStatus = p.Error
		msg.ErrorIndex = p.ErrorIndex
		vbl = p.VarbindList
	}
	for i := range vbl {
		if vbl[i].Name.Class != asn1.ClassUniversal || vbl[i].Name.Tag != asn1.TagOID {
			return nil, errors.Errorf("variable %d name is not an object identifier", i)
		}
		name, err := common.DecodeOID(vbl[i].Name.Bytes)
		if err != nil {
			return nil, err
		}
		msg.AddVariable(common.NewVariable(name, rawTag(&vbl[i].Value), vbl[i].Value.Bytes))
	}
	return msg, nil
}

func trapInfo(t *rawTrapPDU) (*common.V1Trap, error) {
	enterprise, err := common.DecodeOID(t.Enterprise.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "trap enterprise")
	}
	ts, err := common.Decode(common.TimeTicksTag, t.Timestamp.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "trap timestamp")
	}
	addr := t.AgentAddr.Bytes
	if len(addr) != net.IPv4len {
		return nil, errors.Errorf("trap agent address has %d bytes", len(addr))
	}
	return &common.V1Trap{
		Enterprise:   enterprise,
		AgentAddress: net.IP(append([]byte(nil), addr...)),
		GenericTrap:  t.GenericTrap,
		SpecificTrap: t.SpecificTrap,
		Timestamp:    ts.Value.(uint32),
	}, nil
}

// Recovers the single identifier octet of a raw value.
func rawTag(v *asn1.RawValue) byte {
	tag := byte(v.Class<<6) | byte(v.Tag&0x1f)
	if v.IsCompound {
		tag |= 0x20
	}
	return tag
}

// Builds a raw value with its full encoding, so that marshalling emits it unchanged.
func rawTLV(tag byte, content []byte) asn1.RawValue {
	full := append([]byte{tag}, encodeLength(len(content))...)
	full = append(full, content...)
	return asn1.RawValue{
		Class:      int(tag >> 6),
		Tag:        int(tag & 0x1f),
		IsCompound: tag&0x20 != 0,
		Bytes:      content,
		FullBytes:  full,
	}
}

func encodeLength(n int) []byte {
	if n < 0x80 {
		return []byte{byte(n)}
	}
	var b []byte
	for x := n; x > 0; x >>= 8 {
		b = append([]byte{byte(x)}, b...)
	}
	return append([]byte{0x80 | byte(len(b))}, b...)
}

// Reads the version integer at the head of a message without decoding the remainder.
func peekVersion(b []byte) (int, error) {
	content, err := readHeader(b, sequenceTag)
	if err != nil {
		return 0, errors.Wrap(err, "message")
	}
	version, err := readHeader(content, asn1.TagInteger)
	if err != nil {
		return 0, errors.Wrap(err, "version")
	}
	if len(version) == 0 || len(version) > 4 {
		return 0, errors.New("malformed version")
	}
	v := 0
	for _, x := range version {
		v = v<<8 | int(x)
	}
	return v, nil
}

// Returns the content of the TLV at the head of b, which must carry the given tag.
func readHeader(b []byte, tag byte) ([]byte, error) {
	if len(b) < 2 {
		return nil, errors.New("truncated")
	}
	if b[0] != tag {
		return nil, errors.Errorf("unexpected tag 0x%02x", b[0])
	}
	n, off := int(b[1]), 2
	if n&0x80 != 0 {
		octets := n & 0x7f
		if octets == 0 || octets > 4 || len(b) < 2+octets {
			return nil, errors.New("malformed length")
		}
		n = 0
		for _, x := range b[2 : 2+octets] {
			n = n<<8 | int(x)
		}
		off += octets
	}
	if n > len(b)-off {
		return nil, errors.New("truncated")
	}
	return b[off : off+n], nil
}
