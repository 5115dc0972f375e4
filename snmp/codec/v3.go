package codec

import (
	"bytes"
	"encoding/asn1"

	"github.com/geoffgarside/ber"
	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

// msgFlags bits, RFC 3412 section 6.4.
const (
	flagAuth       = 0x01
	flagPriv       = 0x02
	flagReportable = 0x04
)

const usmSecurityModel = 3

// Defines the v3 packet of RFC 3412. Data holds either a plaintext scoped PDU (a sequence) or an
// encrypted one (an octet string).
type v3Packet struct {
	Version            int
	Global             globalData
	SecurityParameters []byte
	Data               asn1.RawValue
}

type globalData struct {
	MessageID     int32
	MaxSize       int32
	Flags         []byte
	SecurityModel int
}

// usmParams is UsmSecurityParameters of RFC 3414.
type usmParams struct {
	EngineID   []byte
	Boots      int32
	Time       int32
	UserName   []byte
	AuthParams []byte
	PrivParams []byte
}

type scopedPDU struct {
	ContextEngineID []byte
	ContextName     []byte
	RawPdu          asn1.RawValue
}

// MarshalV3 encodes a v3 message. user supplies the keys for the security level carried in
// msg.Security.AuthLevel and may be nil for noAuthNoPriv messages.
func MarshalV3(msg *common.Message, user *usm.LocalizedUser) ([]byte, error) {
	level := msg.Security.AuthLevel
	if level > common.NoAuthNoPriv && (user == nil || user.Level() < level) {
		return nil, &common.UsmError{Reason: "keys do not support security level " + level.String()}
	}

	pdu, err := marshalPDU(msg)
	if err != nil {
		return nil, err
	}
	scoped, err := ber.Marshal(scopedPDU{
		ContextEngineID: msg.ContextEngineID,
		ContextName:     []byte(msg.ContextName),
		RawPdu:          asn1.RawValue{FullBytes: pdu},
	})
	if err != nil {
		return nil, err
	}

	params := usmParams{
		EngineID: msg.Security.EngineID,
		Boots:    msg.Security.Boots,
		Time:     msg.Security.Time,
		UserName: []byte(msg.Security.UserName),
	}
	var flags byte
	if msg.Reportable {
		flags |= flagReportable
	}
	data := asn1.RawValue{FullBytes: scoped}
	if level == common.AuthPriv {
		flags |= flagPriv
		ciphertext, privParams, err := user.Encrypt(scoped, msg.Security.Boots, msg.Security.Time)
		if err != nil {
			return nil, err
		}
		params.PrivParams = privParams
		data = rawTLV(asn1.TagOctetString, ciphertext)
	}
	if level >= common.AuthNoPriv {
		flags |= flagAuth
		params.AuthParams = make([]byte, usm.AuthParamsLen)
	}
	secParams, err := ber.Marshal(params)
	if err != nil {
		return nil, err
	}

	out, err := ber.Marshal(v3Packet{
		Version: int(common.V3),
		Global: globalData{
			MessageID:     msg.MessageID,
			MaxSize:       MaxMessageSize,
			Flags:         []byte{flags},
			SecurityModel: usmSecurityModel,
		},
		SecurityParameters: secParams,
		Data:               data,
	})
	if err != nil {
		return nil, err
	}

	if level >= common.AuthNoPriv {
		pos, err := authParamsOffset(out, secParams, params.AuthParams)
		if err != nil {
			return nil, err
		}
		copy(out[pos:], user.Sign(out))
	}
	return out, nil
}

// Locates the content of msgAuthenticationParameters within a whole message.
func authParamsOffset(msg, secParams, authParams []byte) (int, error) {
	start := bytes.Index(msg, secParams)
	if start < 0 {
		return 0, errors.New("security parameters not found in message")
	}
	tlv := append([]byte{asn1.TagOctetString, usm.AuthParamsLen}, authParams...)
	off := bytes.LastIndex(secParams, tlv)
	if off < 0 {
		return 0, errors.New("authentication parameters not found in message")
	}
	return start + off + 2, nil
}

func unmarshalV3(input []byte, keys KeyLookup) (*common.Message, error) {
	pkt := &v3Packet{}
	if _, err := ber.Unmarshal(input, pkt); err != nil {
		return nil, errors.Wrap(err, "packet")
	}
	if pkt.Global.SecurityModel != usmSecurityModel {
		return nil, &common.UsmError{Reason: "unsupported security model"}
	}
	if len(pkt.Global.Flags) != 1 {
		return nil, errors.New("malformed message flags")
	}
	flags := pkt.Global.Flags[0]
	params := &usmParams{}
	if _, err := ber.Unmarshal(pkt.SecurityParameters, params); err != nil {
		return nil, errors.Wrap(err, "security parameters")
	}

	level := common.NoAuthNoPriv
	switch {
	case flags&flagPriv != 0 && flags&flagAuth == 0:
		return nil, &common.UsmError{Reason: "privacy without authentication"}
	case flags&flagPriv != 0:
		level = common.AuthPriv
	case flags&flagAuth != 0:
		level = common.AuthNoPriv
	}

	var user *usm.LocalizedUser
	if level > common.NoAuthNoPriv {
		if keys == nil {
			return nil, &common.UsmError{Reason: "no keys for authenticated message"}
		}
		var err error
		if user, err = keys(params.EngineID, string(params.UserName)); err != nil {
			return nil, err
		}
		if user == nil || user.Level() < level {
			return nil, &common.UsmError{Reason: "unknown user " + string(params.UserName)}
		}
		pos, err := authParamsOffset(input, pkt.SecurityParameters, params.AuthParams)
		if err != nil {
			return nil, err
		}
		zeroed := append([]byte(nil), input...)
		copy(zeroed[pos:pos+usm.AuthParamsLen], make([]byte, usm.AuthParamsLen))
		if err = user.Verify(zeroed, params.AuthParams); err != nil {
			return nil, err
		}
	}

	scoped := pkt.Data.FullBytes
	if level == common.AuthPriv {
		if pkt.Data.Class != asn1.ClassUniversal || pkt.Data.Tag != asn1.TagOctetString {
			return nil, errors.New("encrypted scoped pdu is not an octet string")
		}
		plain, err := user.Decrypt(pkt.Data.Bytes, params.PrivParams, params.Boots, params.Time)
		if err != nil {
			return nil, err
		}
		scoped = plain
	}

	sp := &scopedPDU{}
	if _, err := ber.Unmarshal(scoped, sp); err != nil {
		if level == common.AuthPriv {
			return nil, &common.UsmError{Reason: "decryption error"}
		}
		return nil, errors.Wrap(err, "scoped pdu")
	}
	msg, err := unmarshalPDU(sp.RawPdu.FullBytes)
	if err != nil {
		return nil, err
	}
	msg.Version = common.V3
	msg.MessageID = pkt.Global.MessageID
	msg.Reportable = flags&flagReportable != 0
	msg.Security = common.SecurityParams{
		EngineID:  params.EngineID,
		Boots:     params.Boots,
		Time:      params.Time,
		UserName:  string(params.UserName),
		AuthLevel: level,
	}
	msg.ContextEngineID = sp.ContextEngineID
	msg.ContextName = string(sp.ContextName)
	return msg, nil
}
