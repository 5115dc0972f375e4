// Package usm implements the parts of the SNMPv3 user-based security model (RFC 3414, RFC 3826)
// needed by a command generator: password to key transformation, key localisation,
// HMAC-96 message authentication and DES/AES privacy.
package usm

import (
	"crypto/hmac"
	"crypto/md5"  //nolint:gosec
	"crypto/sha1" //nolint:gosec
	"crypto/subtle"
	"hash"
	"strings"

	"github.com/pkg/errors"

	"github.com/damianoneill/snmpasync/snmp/common"
)

// AuthProtocol identifies the message authentication algorithm.
type AuthProtocol int

const (
	NoAuth AuthProtocol = iota
	MD5
	SHA
)

// PrivProtocol identifies the privacy (encryption) algorithm.
type PrivProtocol int

const (
	NoPriv PrivProtocol = iota
	DES
	AES
)

// ParseAuthProtocol accepts the names used by the net-snmp command line tools.
func ParseAuthProtocol(s string) (AuthProtocol, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return NoAuth, nil
	case "MD5":
		return MD5, nil
	case "SHA", "SHA1":
		return SHA, nil
	}
	return NoAuth, errors.Errorf("unknown auth protocol %q", s)
}

// ParsePrivProtocol accepts the names used by the net-snmp command line tools.
func ParsePrivProtocol(s string) (PrivProtocol, error) {
	switch strings.ToUpper(s) {
	case "", "NONE":
		return NoPriv, nil
	case "DES":
		return DES, nil
	case "AES", "AES128":
		return AES, nil
	}
	return NoPriv, errors.Errorf("unknown privacy protocol %q", s)
}

// AuthParamsLen is the length of the truncated HMAC carried in msgAuthenticationParameters.
const AuthParamsLen = 12

const minPasswordLen = 8

// User holds the configured credentials of a USM user.
type User struct {
	Name         string
	AuthProtocol AuthProtocol
	AuthPassword string
	PrivProtocol PrivProtocol
	PrivPassword string
}

// Level derives the security level implied by the configured protocols.
func (u *User) Level() common.SecurityLevel {
	switch {
	case u.AuthProtocol == NoAuth:
		return common.NoAuthNoPriv
	case u.PrivProtocol == NoPriv:
		return common.AuthNoPriv
	}
	return common.AuthPriv
}

// Validate checks that the protocol and password combination is usable.
func (u *User) Validate() error {
	if u.Name == "" {
		return &common.UsmError{Reason: "missing user name"}
	}
	if u.PrivProtocol != NoPriv && u.AuthProtocol == NoAuth {
		return &common.UsmError{Reason: "privacy requires authentication"}
	}
	if u.AuthProtocol != NoAuth && len(u.AuthPassword) < minPasswordLen {
		return errors.Wrap(common.ErrKey, "auth password shorter than 8 characters")
	}
	if u.PrivProtocol != NoPriv && len(u.PrivPassword) < minPasswordLen {
		return errors.Wrap(common.ErrKey, "privacy password shorter than 8 characters")
	}
	return nil
}

// Localize derives the keys of the user for the authoritative engine engineID.
func (u *User) Localize(engineID []byte) (*LocalizedUser, error) {
	if err := u.Validate(); err != nil {
		return nil, err
	}
	lu := &LocalizedUser{
		Name:         u.Name,
		AuthProtocol: u.AuthProtocol,
		PrivProtocol: u.PrivProtocol,
		EngineID:     append([]byte(nil), engineID...),
		salt:         newSalt(),
	}
	if u.AuthProtocol == NoAuth {
		return lu, nil
	}
	if len(engineID) == 0 {
		return nil, errors.Wrap(common.ErrKey, "empty engine id")
	}
	lu.AuthKey = LocalizeKey(u.AuthProtocol, PasswordToKey(u.AuthProtocol, u.AuthPassword), engineID)
	if u.PrivProtocol != NoPriv {
		lu.PrivKey = LocalizeKey(u.AuthProtocol, PasswordToKey(u.AuthProtocol, u.PrivPassword), engineID)
	}
	return lu, nil
}

func newHash(p AuthProtocol) hash.Hash {
	if p == SHA {
		return sha1.New() //nolint:gosec
	}
	return md5.New() //nolint:gosec
}

// PasswordToKey implements the RFC 3414 A.2 password to key algorithm: the password is
// repeated to fill one megabyte, which is then digested.
func PasswordToKey(p AuthProtocol, password string) []byte {
	const expansion = 1048576
	h := newHash(p)
	pw := []byte(password)
	buf := make([]byte, 64)
	idx := 0
	for count := 0; count < expansion; count += len(buf) {
		for i := range buf {
			buf[i] = pw[idx%len(pw)]
			idx++
		}
		h.Write(buf)
	}
	return h.Sum(nil)
}

// LocalizeKey binds a key to an authoritative engine: H(Ku || engineID || Ku).
func LocalizeKey(p AuthProtocol, key, engineID []byte) []byte {
	h := newHash(p)
	h.Write(key)
	h.Write(engineID)
	h.Write(key)
	return h.Sum(nil)
}

// LocalizedUser is a user whose keys are bound to one authoritative engine.
type LocalizedUser struct {
	Name         string
	AuthProtocol AuthProtocol
	PrivProtocol PrivProtocol
	EngineID     []byte
	AuthKey      []byte
	PrivKey      []byte

	salt *salt
}

// Level is the highest security level the user can operate at.
func (l *LocalizedUser) Level() common.SecurityLevel {
	switch {
	case l.AuthProtocol == NoAuth:
		return common.NoAuthNoPriv
	case l.PrivProtocol == NoPriv:
		return common.AuthNoPriv
	}
	return common.AuthPriv
}

// Sign computes the HMAC-96 of a whole message whose authentication parameters are zeroed.
func (l *LocalizedUser) Sign(msg []byte) []byte {
	mac := hmac.New(func() hash.Hash { return newHash(l.AuthProtocol) }, l.AuthKey)
	mac.Write(msg)
	return mac.Sum(nil)[:AuthParamsLen]
}

// Verify checks the HMAC-96 of a message whose authentication parameters are zeroed.
func (l *LocalizedUser) Verify(msg, params []byte) error {
	if len(params) != AuthParamsLen {
		return &common.UsmError{Reason: "authentication parameters have wrong length"}
	}
	if subtle.ConstantTimeCompare(l.Sign(msg), params) != 1 {
		return &common.UsmError{Reason: "wrong digest"}
	}
	return nil
}
