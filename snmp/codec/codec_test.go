package codec

import (
	"net"
	"testing"

	assert "github.com/stretchr/testify/require"

	"github.com/damianoneill/snmpasync/snmp/common"
	"github.com/damianoneill/snmpasync/snmp/usm"
)

var getRequest = []byte{
	// Message Type = Sequence, Length = 38
	0x30, 0x26,
	// Version Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Community String Type = Octet String, Length = 6, Value = public
	0x04, 0x06, 0x70, 0x75, 0x62, 0x6c, 0x69, 0x63,
	// PDU Type = GetRequest, Length = 25
	0xa0, 0x19,
	// Request ID Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Error Type = Integer, Length = 1, Value = 0
	0x02, 0x01, 0x00,
	// Error Index Type = Integer, Length = 1, Value = 0
	0x02, 0x01, 0x00,
	// Varbind List Type = Sequence, Length = 14
	0x30, 0x0e,
	// Varbind Type = Sequence, Length = 12
	0x30, 0x0c,
	// Object Identifier Type = Object Identifier, Length = 8, Value = 1.3.6.1.2.1.1.5.0
	0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x05, 0x00,
	// Value Type = Null, Length = 0
	0x05, 0x00,
}

var getResponse = []byte{
	// Message Type = Sequence, Length = 54
	0x30, 0x82, 0x00, 0x36,
	// Version Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Community String Type = Octet String, Length = 6, Value = public
	0x04, 0x06, 0x70, 0x75, 0x62, 0x6c, 0x69, 0x63,
	// PDU Type = GetResponse, Length = 39
	0xa2, 0x82, 0x00, 0x27,
	// Request ID Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Error Type = Integer, Length = 1, Value = 0
	0x02, 0x01, 0x00,
	// Error Index Type = Integer, Length = 1, Value = 0
	0x02, 0x01, 0x00,
	// Varbind List Type = Sequence, Length = 26
	0x30, 0x82, 0x00, 0x1a,
	// Varbind Type = Sequence, Length = 22
	0x30, 0x82, 0x00, 0x16,
	// Object Identifier Type = Object Identifier, Length = 8, Value = 1.3.6.1.2.1.1.5.0
	0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x05, 0x00,
	// Value Type = Octet String, Length = 10, Value = cisco-7513
	0x04, 0x0a, 0x63, 0x69, 0x73, 0x63, 0x6f, 0x2d, 0x37, 0x35, 0x31, 0x33,
}

var getBulkRequest = []byte{
	// Message Type = Sequence, Length = 53
	0x30, 0x35,
	// Version Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Community String Type = Octet String, Length = 6, Value = public
	0x04, 0x06, 0x70, 0x75, 0x62, 0x6c, 0x69, 0x63,
	// PDU Type = GetBulkRequest, Length = 40
	0xa5, 0x28,
	// Request ID Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Non Repeaters Type = Integer, Length = 1, Value = 1
	0x02, 0x01, 0x01,
	// Max Repetitions Type = Integer, Length = 1, Value = 3
	0x02, 0x01, 0x03,
	// Varbind List Type = Sequence, Length = 29
	0x30, 0x1d,
	// Varbind Type = Sequence, Length = 12
	0x30, 0x0c,
	// Object Identifier Type = Object Identifier, Length = 8, Value = 1.3.6.1.2.1.1.4.0
	0x06, 0x08, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x01, 0x04, 0x00,
	// Value Type = Null, Length = 0
	0x05, 0x00,
	// Varbind Type = Sequence, Length = 13
	0x30, 0x0d,
	// Object Identifier Type = Object Identifier, Length = 9, Value = 1.3.6.1.2.1.2.2.1.2
	0x06, 0x09, 0x2b, 0x06, 0x01, 0x02, 0x01, 0x02, 0x02, 0x01, 0x02,
	// Value Type = Null, Length = 0
	0x05, 0x00,
}

func TestMarshalGet(t *testing.T) {
	msg := common.NewGet().AddOID(common.MustParseOID("1.3.6.1.2.1.1.5.0"))
	msg.RequestID = 1
	msg.RawCommunity = []byte("public")

	b, err := Marshal(msg)
	assert.NoError(t, err)
	assert.Equal(t, getRequest, b)
}

func TestMarshalGetBulk(t *testing.T) {
	msg := common.NewGetBulk(1, 3).
		AddOID(common.MustParseOID("1.3.6.1.2.1.1.4.0")).
		AddOID(common.MustParseOID("1.3.6.1.2.1.2.2.1.2"))
	msg.RequestID = 1
	msg.RawCommunity = []byte("public")

	b, err := Marshal(msg)
	assert.NoError(t, err)
	assert.Equal(t, getBulkRequest, b)
}

func TestUnmarshalResponse(t *testing.T) {
	msg, err := Unmarshal(getResponse, nil)
	assert.NoError(t, err)
	assert.Equal(t, common.Response, msg.Kind)
	assert.Equal(t, common.V2c, msg.Version)
	assert.Equal(t, int32(1), msg.RequestID)
	community, err := msg.Community()
	assert.NoError(t, err)
	assert.Equal(t, "public", community)

	assert.Equal(t, 1, msg.Vars().Len())
	v := msg.Vars().First()
	assert.Equal(t, "1.3.6.1.2.1.1.5.0", v.Name().String())
	tv, err := v.Value()
	assert.NoError(t, err)
	assert.Equal(t, common.OctetString, tv.Type)
	assert.Equal(t, "cisco-7513", tv.String())
}

func TestUnmarshalDoesNotModifyInput(t *testing.T) {
	input := append([]byte(nil), getResponse...)
	_, err := Unmarshal(input, nil)
	assert.NoError(t, err)
	assert.Equal(t, getResponse, input)
}

func TestUnmarshalErrors(t *testing.T) {
	tests := []struct {
		name  string
		input []byte
	}{
		{"empty", nil},
		{"not a sequence", []byte{0x02, 0x01, 0x01}},
		{"truncated", getResponse[:20]},
		{"unknown pdu", func() []byte {
			b := append([]byte(nil), getRequest...)
			b[13] = 0xaf
			return b
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.input, nil)
			assert.Error(t, err)
		})
	}

	b := append([]byte(nil), getRequest...)
	b[4] = 0x02
	_, err := Unmarshal(b, nil)
	var unsupported *common.UnsupportedVersionError
	assert.ErrorAs(t, err, &unsupported)

	b[4] = 0x07
	_, err = Unmarshal(b, nil)
	var invalid *common.InvalidVersionError
	assert.ErrorAs(t, err, &invalid)
}

func TestLargeArcsRoundTrip(t *testing.T) {
	name := common.OID{1, 3, 6, 1, 4, 1, 8072, 1 << 40, 0}
	msg := common.NewGet().AddOID(name)
	msg.RawCommunity = []byte("public")

	b, err := Marshal(msg)
	assert.NoError(t, err)
	out, err := Unmarshal(b, nil)
	assert.NoError(t, err)
	assert.Equal(t, name, out.Vars().First().Name())
}

func TestV1TrapRoundTrip(t *testing.T) {
	msg := common.NewMessage(common.Trap)
	msg.Version = common.V1
	msg.RawCommunity = []byte("public")
	msg.TrapInfo = &common.V1Trap{
		Enterprise:   common.MustParseOID("1.3.6.1.4.1.8072.3.2.10"),
		AgentAddress: net.IPv4(10, 0, 0, 1),
		GenericTrap:  6,
		SpecificTrap: 17,
		Timestamp:    123456,
	}
	assert.NoError(t, msg.AddValue(common.MustParseOID("1.3.6.1.2.1.1.5.0"), &common.TypedValue{Type: common.OctetString, Value: []byte("router")}))

	b, err := Marshal(msg)
	assert.NoError(t, err)
	out, err := Unmarshal(b, nil)
	assert.NoError(t, err)
	assert.Equal(t, common.Trap, out.Kind)
	assert.Equal(t, common.V1, out.Version)
	assert.Equal(t, "1.3.6.1.4.1.8072.3.2.10", out.TrapInfo.Enterprise.String())
	assert.Equal(t, "10.0.0.1", out.TrapInfo.AgentAddress.String())
	assert.Equal(t, 17, out.TrapInfo.SpecificTrap)
	assert.Equal(t, uint32(123456), out.TrapInfo.Timestamp)
	tv, err := out.Vars().First().Value()
	assert.NoError(t, err)
	assert.Equal(t, "router", tv.String())
}

func v3Message(level common.SecurityLevel) *common.Message {
	msg := common.NewGet().AddOID(common.MustParseOID("1.3.6.1.2.1.1.1.0"))
	msg.Version = common.V3
	msg.RequestID = 42
	msg.MessageID = 43
	msg.Reportable = true
	msg.Security = common.SecurityParams{
		EngineID:  []byte{0x80, 0x00, 0x1f, 0x88, 0x04, 0x01},
		Boots:     5,
		Time:      1000,
		UserName:  "admin",
		AuthLevel: level,
	}
	msg.ContextEngineID = msg.Security.EngineID
	msg.ContextName = "ctx"
	return msg
}

func TestV3RoundTrip(t *testing.T) {
	engineID := []byte{0x80, 0x00, 0x1f, 0x88, 0x04, 0x01}
	tests := []struct {
		name  string
		level common.SecurityLevel
		user  usm.User
	}{
		{"noAuthNoPriv", common.NoAuthNoPriv, usm.User{Name: "admin"}},
		{"md5", common.AuthNoPriv, usm.User{Name: "admin", AuthProtocol: usm.MD5, AuthPassword: "authpassword"}},
		{"sha des", common.AuthPriv, usm.User{Name: "admin", AuthProtocol: usm.SHA, AuthPassword: "authpassword", PrivProtocol: usm.DES, PrivPassword: "privpassword"}},
		{"md5 aes", common.AuthPriv, usm.User{Name: "admin", AuthProtocol: usm.MD5, AuthPassword: "authpassword", PrivProtocol: usm.AES, PrivPassword: "privpassword"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lu, err := tt.user.Localize(engineID)
			assert.NoError(t, err)
			lookup := func(id []byte, name string) (*usm.LocalizedUser, error) {
				assert.Equal(t, engineID, id)
				assert.Equal(t, "admin", name)
				return lu, nil
			}

			b, err := MarshalV3(v3Message(tt.level), lu)
			assert.NoError(t, err)

			out, err := Unmarshal(b, lookup)
			assert.NoError(t, err)
			assert.Equal(t, common.V3, out.Version)
			assert.Equal(t, common.GetRequest, out.Kind)
			assert.Equal(t, int32(42), out.RequestID)
			assert.Equal(t, int32(43), out.MessageID)
			assert.True(t, out.Reportable)
			assert.Equal(t, tt.level, out.Security.AuthLevel)
			assert.Equal(t, int32(5), out.Security.Boots)
			assert.Equal(t, int32(1000), out.Security.Time)
			assert.Equal(t, "ctx", out.ContextName)
			assert.Equal(t, "1.3.6.1.2.1.1.1.0", out.Vars().First().Name().String())
		})
	}
}

func TestV3TamperedMessageFailsAuthentication(t *testing.T) {
	engineID := []byte{0x80, 0x00, 0x1f, 0x88, 0x04, 0x01}
	u := usm.User{Name: "admin", AuthProtocol: usm.SHA, AuthPassword: "authpassword"}
	lu, err := u.Localize(engineID)
	assert.NoError(t, err)

	b, err := MarshalV3(v3Message(common.AuthNoPriv), lu)
	assert.NoError(t, err)
	b[len(b)-3] ^= 0x01

	_, err = Unmarshal(b, func([]byte, string) (*usm.LocalizedUser, error) { return lu, nil })
	var usmErr *common.UsmError
	assert.ErrorAs(t, err, &usmErr)

	_, err = Unmarshal(b, nil)
	assert.ErrorAs(t, err, &usmErr)
}

func TestMarshalV3RequiresKeys(t *testing.T) {
	_, err := MarshalV3(v3Message(common.AuthNoPriv), nil)
	var usmErr *common.UsmError
	assert.ErrorAs(t, err, &usmErr)
}
