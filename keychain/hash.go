package keychain

import (
	"crypto/sha256"
	"encoding"
	"hash"

	"golang.org/x/crypto/ripemd160" //nolint:staticcheck // matches the teacher's HASH160 construction
)

// shaState wraps a running SHA-256 digest with the ability to clone its
// internal state, which GetOnionRand needs in order to fork two independent
// outputs from a shared uniqueness prefix (mirroring the original
// KeysManager::get_onion_rand, which clones its HMAC-like engine mid-way).
// crypto/sha256's digest type implements encoding.BinaryMarshaler, which is
// the only portable way to snapshot a hash.Hash's internal state.
type shaState struct {
	h hash.Hash
}

func newShaState() shaState {
	return shaState{h: sha256.New()}
}

func (s shaState) Write(b []byte) {
	s.h.Write(b)
}

func (s shaState) Sum() [32]byte {
	var out [32]byte
	copy(out[:], s.h.Sum(nil))
	return out
}

func (s shaState) Clone() shaState {
	marshaler, ok := s.h.(encoding.BinaryMarshaler)
	if !ok {
		panic("lnkeysigner: sha256 implementation is not cloneable")
	}
	state, err := marshaler.MarshalBinary()
	if err != nil {
		panic("lnkeysigner: unable to snapshot sha256 state: " + err.Error())
	}

	clone := sha256.New()
	unmarshaler := clone.(encoding.BinaryUnmarshaler)
	if err := unmarshaler.UnmarshalBinary(state); err != nil {
		panic("lnkeysigner: unable to restore sha256 state: " + err.Error())
	}

	return shaState{h: clone}
}

// hash160 computes RIPEMD160(SHA256(b)), the standard Bitcoin HASH160 used
// to turn a compressed public key into a P2WPKH witness program.
func hash160(b []byte) []byte {
	shaSum := sha256.Sum256(b)
	ripemd := ripemd160.New()
	ripemd.Write(shaSum[:])
	return ripemd.Sum(nil)
}
