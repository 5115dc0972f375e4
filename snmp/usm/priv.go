package usm

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/des" //nolint:gosec
	"crypto/rand"
	"encoding/binary"
	"sync/atomic"

	"github.com/damianoneill/snmpasync/snmp/common"
)

const saltLen = 8

type salt struct {
	counter atomic.Uint64
}

func newSalt() *salt {
	var b [8]byte
	_, _ = rand.Read(b[:])
	s := &salt{}
	s.counter.Store(binary.BigEndian.Uint64(b[:]))
	return s
}

func (s *salt) next() uint64 {
	return s.counter.Add(1)
}

// Encrypt encrypts a serialised scoped PDU, returning the ciphertext and the
// msgPrivacyParameters to send with it.
func (l *LocalizedUser) Encrypt(plain []byte, boots, engineTime int32) ([]byte, []byte, error) {
	switch l.PrivProtocol {
	case DES:
		return l.encryptDES(plain, boots)
	case AES:
		return l.encryptAES(plain, boots, engineTime)
	}
	return nil, nil, &common.UsmError{Reason: "user has no privacy protocol"}
}

// Decrypt reverses Encrypt. The plaintext of a DES message may carry trailing padding.
func (l *LocalizedUser) Decrypt(ciphertext, privParams []byte, boots, engineTime int32) ([]byte, error) {
	if len(privParams) != saltLen {
		return nil, &common.UsmError{Reason: "privacy parameters have wrong length"}
	}
	switch l.PrivProtocol {
	case DES:
		return l.decryptDES(ciphertext, privParams)
	case AES:
		return l.decryptAES(ciphertext, privParams, boots, engineTime)
	}
	return nil, &common.UsmError{Reason: "user has no privacy protocol"}
}

// RFC 3414 8.1.1.1: the salt is engineBoots followed by a local counter; the IV is the
// salt XORed with the pre-IV held in the second half of the privacy key.
func (l *LocalizedUser) encryptDES(plain []byte, boots int32) ([]byte, []byte, error) {
	block, err := des.NewCipher(l.PrivKey[:8]) //nolint:gosec
	if err != nil {
		return nil, nil, err
	}
	params := make([]byte, saltLen)
	binary.BigEndian.PutUint32(params, uint32(boots))
	binary.BigEndian.PutUint32(params[4:], uint32(l.salt.next()))

	iv := make([]byte, des.BlockSize)
	for i := range iv {
		iv[i] = l.PrivKey[8+i] ^ params[i]
	}
	if pad := len(plain) % des.BlockSize; pad != 0 {
		plain = append(append([]byte(nil), plain...), make([]byte, des.BlockSize-pad)...)
	}
	out := make([]byte, len(plain))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, plain)
	return out, params, nil
}

func (l *LocalizedUser) decryptDES(ciphertext, params []byte) ([]byte, error) {
	if len(ciphertext) == 0 || len(ciphertext)%des.BlockSize != 0 {
		return nil, &common.UsmError{Reason: "ciphertext is not a multiple of the block size"}
	}
	block, err := des.NewCipher(l.PrivKey[:8]) //nolint:gosec
	if err != nil {
		return nil, err
	}
	iv := make([]byte, des.BlockSize)
	for i := range iv {
		iv[i] = l.PrivKey[8+i] ^ params[i]
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ciphertext)
	return out, nil
}

// RFC 3826 3.1.2.1: the IV is engineBoots, engineTime and the 64-bit salt.
func aesIV(boots, engineTime int32, params []byte) []byte {
	iv := make([]byte, aes.BlockSize)
	binary.BigEndian.PutUint32(iv, uint32(boots))
	binary.BigEndian.PutUint32(iv[4:], uint32(engineTime))
	copy(iv[8:], params)
	return iv
}

func (l *LocalizedUser) encryptAES(plain []byte, boots, engineTime int32) ([]byte, []byte, error) {
	block, err := aes.NewCipher(l.PrivKey[:16])
	if err != nil {
		return nil, nil, err
	}
	params := make([]byte, saltLen)
	binary.BigEndian.PutUint64(params, l.salt.next())
	out := make([]byte, len(plain))
	cipher.NewCFBEncrypter(block, aesIV(boots, engineTime, params)).XORKeyStream(out, plain) //nolint:staticcheck
	return out, params, nil
}

func (l *LocalizedUser) decryptAES(ciphertext, params []byte, boots, engineTime int32) ([]byte, error) {
	block, err := aes.NewCipher(l.PrivKey[:16])
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(ciphertext))
	cipher.NewCFBDecrypter(block, aesIV(boots, engineTime, params)).XORKeyStream(out, ciphertext) //nolint:staticcheck
	return out, nil
}
