package types

import (
	"encoding/base64"
	"encoding/binary"
	"errors"

	sf "github.com/tinode/snowflake"
	"golang.org/x/crypto/xtea"
)

// UidGenerator produces random-looking unique ids for hubs, channels, ranks and users.
// Snowflake ids are sequential, so they are obfuscated with XTEA.
type UidGenerator struct {
	seq    *sf.SnowFlake
	cipher *xtea.Cipher
}

// Init initialises the Uid generator. Already initialised parts are left intact.
func (ug *UidGenerator) Init(workerID uint, key []byte) error {
	if ug.cipher == nil {
		cipher, err := xtea.NewCipher(key)
		if err != nil {
			return err
		}
		ug.cipher = cipher
	}
	if ug.seq == nil {
		seq, err := sf.NewSnowFlake(uint32(workerID))
		if err != nil {
			return err
		}
		ug.seq = seq
	}
	return nil
}

// Get generates a unique id. Returns ZeroUid if the generator is not initialised.
func (ug *UidGenerator) Get() Uid {
	buf, err := ug.idBuffer()
	if err != nil {
		return ZeroUid
	}
	return Uid(binary.LittleEndian.Uint64(buf))
}

// GetStr generates a unique id and returns it as unpadded base64 string.
func (ug *UidGenerator) GetStr() string {
	buf, err := ug.idBuffer()
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(buf)[:uidBase64Unpadded]
}

func (ug *UidGenerator) idBuffer() ([]byte, error) {
	if ug.seq == nil || ug.cipher == nil {
		return nil, errors.New("uid generator is not initialised")
	}
	id, err := ug.seq.Next()
	if err != nil {
		return nil, err
	}

	src := make([]byte, 8)
	dst := make([]byte, 8)
	binary.LittleEndian.PutUint64(src, id)
	ug.cipher.Encrypt(dst, src)

	return dst, nil
}
