package keychain

import (
	"crypto/sha256"
	"encoding/binary"
	"sync/atomic"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/lightningnetwork/lnd/clock"
)

// hardened offsets the six fixed top-level children KeyRoot derives from
// the seed's master extended key. Their meanings are pinned by spec.md
// §4.1 and must not be reordered.
const (
	nodeKeyIndex          = hdkeychain.HardenedKeyStart + 0
	destinationKeyIndex   = hdkeychain.HardenedKeyStart + 1
	shutdownKeyIndex      = hdkeychain.HardenedKeyStart + 2
	channelMasterIndex    = hdkeychain.HardenedKeyStart + 3
	sessionMasterIndex    = hdkeychain.HardenedKeyStart + 4
	channelIDMasterIndex  = hdkeychain.HardenedKeyStart + 5
)

// counterSpaceBits is the width of a single hardened-child index; a
// KeyRoot's three allocation counters live in this space and exhaustion is
// fatal (spec.md §4.1).
const counterSpaceBits = 32

// KeyRoot deterministically derives every piece of per-node and per-channel
// key material a Lightning node needs from a single 32-byte seed, per
// spec.md §4.1. It is the Go analogue of the original's KeysManager.
//
// A KeyRoot is safe for concurrent use: its three counters are atomics and
// every other field is immutable after NewKeyRoot returns.
type KeyRoot struct {
	seed [32]byte

	startingTimeSecs  uint64
	startingTimeNanos uint32

	nodeSecret         *btcec.PrivateKey
	destinationScript  []byte
	shutdownPubKey     *btcec.PublicKey

	channelMaster   *hdkeychain.ExtendedKey
	sessionMaster   *hdkeychain.ExtendedKey
	channelIDMaster *hdkeychain.ExtendedKey

	channelCounter   atomic.Uint32
	sessionCounter   atomic.Uint32
	channelIDCounter atomic.Uint32
}

// NewKeyRoot constructs a KeyRoot from a 32-byte seed. startingTimeSecs and
// startingTimeNanos need not be an actual timestamp, but per spec.md §4.1
// and §9 they MUST be unique across every process that has ever run with
// this seed; reusing a (seed, startingTime) pair risks onion-session and
// channel-id collisions.
//
// A malformed seed is treated as a pathological-operator-error condition
// (spec.md §7) and NewKeyRoot panics rather than returning an error, matching
// the original KeysManager's "Your RNG is busted" panic-on-construction
// policy.
func NewKeyRoot(seed [32]byte, network *chaincfg.Params, startingTimeSecs uint64,
	startingTimeNanos uint32) *KeyRoot {

	master, err := hdkeychain.NewMaster(seed[:], network)
	if err != nil {
		panic("lnkeysigner: seed produced no valid BIP-32 master key: " + err.Error())
	}

	nodeKey, err := master.Child(nodeKeyIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive node key: " + err.Error())
	}
	nodeSecret, err := nodeKey.ECPrivKey()
	if err != nil {
		panic("lnkeysigner: node key is not a valid scalar: " + err.Error())
	}

	destKey, err := master.Child(destinationKeyIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive destination key: " + err.Error())
	}
	destPub, err := destKey.ECPubKey()
	if err != nil {
		panic("lnkeysigner: destination key is not valid: " + err.Error())
	}
	pubKeyHash := hash160(destPub.SerializeCompressed())
	destScript, err := txscript.NewScriptBuilder().
		AddOp(txscript.OP_0).
		AddData(pubKeyHash).
		Script()
	if err != nil {
		panic("lnkeysigner: unable to build destination script: " + err.Error())
	}

	shutdownKey, err := master.Child(shutdownKeyIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive shutdown key: " + err.Error())
	}
	shutdownPub, err := shutdownKey.ECPubKey()
	if err != nil {
		panic("lnkeysigner: shutdown key is not valid: " + err.Error())
	}

	channelMaster, err := master.Child(channelMasterIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive channel master: " + err.Error())
	}
	sessionMaster, err := master.Child(sessionMasterIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive session master: " + err.Error())
	}
	channelIDMaster, err := master.Child(channelIDMasterIndex)
	if err != nil {
		panic("lnkeysigner: unable to derive channel-id master: " + err.Error())
	}

	return &KeyRoot{
		seed:              seed,
		startingTimeSecs:  startingTimeSecs,
		startingTimeNanos: startingTimeNanos,
		nodeSecret:        nodeSecret,
		destinationScript: destScript,
		shutdownPubKey:    shutdownPub,
		channelMaster:     channelMaster,
		sessionMaster:     sessionMaster,
		channelIDMaster:   channelIDMaster,
	}
}

// NewKeyRootNow is a convenience constructor that sources the uniqueness
// nonce from the given clock instead of requiring the caller to supply one,
// matching the teacher's habit (package clock) of threading a testable
// clock.Clock through anything that would otherwise call time.Now directly.
func NewKeyRootNow(seed [32]byte, network *chaincfg.Params, c clock.Clock) *KeyRoot {
	now := c.Now()
	return NewKeyRoot(seed, network, uint64(now.Unix()), uint32(now.Nanosecond()))
}

// GetNodeSecret returns the node's long-term identity secret (seed/0').
func (k *KeyRoot) GetNodeSecret() *btcec.PrivateKey {
	return k.nodeSecret
}

// GetDestinationScript returns the P2WPKH scriptPubKey (seed/1') used for
// static sweep outputs the node is entitled to claim directly.
func (k *KeyRoot) GetDestinationScript() []byte {
	dst := make([]byte, len(k.destinationScript))
	copy(dst, k.destinationScript)
	return dst
}

// GetShutdownPubKey returns the public key (seed/2') used as the upfront
// shutdown script key during cooperative channel close.
func (k *KeyRoot) GetShutdownPubKey() *btcec.PublicKey {
	return k.shutdownPubKey
}

// ChannelCounter reports the next channel index that will be handed out by
// GetChannelKeys. Exposed for watchdog's counter-exhaustion monitoring.
func (k *KeyRoot) ChannelCounter() uint32 { return k.channelCounter.Load() }

// SessionCounter reports the next onion-session index GetOnionRand will use.
func (k *KeyRoot) SessionCounter() uint32 { return k.sessionCounter.Load() }

// ChannelIDCounter reports the next temporary-channel-id index GetChannelID
// will use.
func (k *KeyRoot) ChannelIDCounter() uint32 { return k.channelIDCounter.Load() }

// uniqueStart seeds a SHA-256 engine with the (startingTimeSecs,
// startingTimeNanos, seed) prefix shared by GetOnionRand and GetChannelID,
// mirroring the original KeysManager::derive_unique_start helper.
func (k *KeyRoot) uniqueStart() hasher {
	h := newHasher()
	h.writeU64(k.startingTimeSecs)
	h.writeU32(k.startingTimeNanos)
	h.write(k.seed[:])
	return h
}

// DeriveChannelKeys is a pure function of the root and the two derivation
// parameter words: for a given (seed, params) pair it always yields
// byte-identical secrets, independent of process, platform, or call
// order (spec.md §4.1, invariant I2, testable property 1).
func (k *KeyRoot) DeriveChannelKeys(channelValueSat uint64, params1,
	params2 uint64) *InMemoryChannelSigner {

	chanID := uint32((params1 >> 32) & 0xFFFFFFFF)

	h := newHasher()
	h.writeU64(params2)
	h.writeU32(uint32(params1 & 0xFFFFFFFF))
	h.write(k.seed[:])

	childKey, err := k.channelMaster.Child(hdkeychain.HardenedKeyStart + chanID)
	if err != nil {
		panic("lnkeysigner: channel key space exhausted: " + err.Error())
	}
	childPriv, err := childKey.ECPrivKey()
	if err != nil {
		panic("lnkeysigner: channel child key is not valid: " + err.Error())
	}
	h.write(childPriv.Serialize())

	seed32 := h.sum()

	commitmentSeed := sha256Sum(seed32[:], []byte("commitment seed"))

	fundingKey := scalarFromStep(seed32[:], commitmentSeed[:], "funding key")
	revocationBaseKey := scalarFromStep(seed32[:], fundingKey.Serialize(), "revocation base key")
	paymentKey := scalarFromStep(seed32[:], revocationBaseKey.Serialize(), "payment key")
	delayedPaymentBaseKey := scalarFromStep(seed32[:], paymentKey.Serialize(), "delayed payment base key")
	htlcBaseKey := scalarFromStep(seed32[:], delayedPaymentBaseKey.Serialize(), "HTLC base key")

	return newInMemoryChannelSigner(
		fundingKey, revocationBaseKey, paymentKey, delayedPaymentBaseKey,
		htlcBaseKey, commitmentSeed, channelValueSat, [2]uint64{params1, params2},
	)
}

// GetChannelKeys allocates a fresh, never-before-used ChannelSigner. The
// inbound flag is accepted for interface parity with the original
// KeysInterface but is not mixed into derivation; see DESIGN.md, open
// question O1.
func (k *KeyRoot) GetChannelKeys(inbound bool, channelValueSat uint64) *InMemoryChannelSigner {
	_ = inbound

	chanID := k.channelCounter.Add(1) - 1
	params1 := (uint64(chanID) << 32) | uint64(k.startingTimeNanos)
	params2 := k.startingTimeSecs

	return k.DeriveChannelKeys(channelValueSat, params1, params2)
}

// GetOnionRand returns a fresh secret key (used to construct an onion
// packet's ephemeral keys) and a 32-byte PRNG seed, allocating the next
// session counter slot.
func (k *KeyRoot) GetOnionRand() (*btcec.PrivateKey, [32]byte) {
	h := k.uniqueStart()

	childIx := k.sessionCounter.Add(1) - 1
	childKey, err := k.sessionMaster.Child(hdkeychain.HardenedKeyStart + childIx)
	if err != nil {
		panic("lnkeysigner: session key space exhausted: " + err.Error())
	}
	childPriv, err := childKey.ECPrivKey()
	if err != nil {
		panic("lnkeysigner: session child key is not valid: " + err.Error())
	}
	h.write(childPriv.Serialize())

	rngSeedHasher := h.clone()
	rngSeedHasher.write([]byte("RNG Seed Salt"))
	h.write([]byte("Session Key Salt"))

	sessionKeyBytes := h.sum()
	sessionKey, _ := btcec.PrivKeyFromBytes(sessionKeyBytes[:])

	return sessionKey, rngSeedHasher.sum()
}

// GetChannelID returns a fresh 32-byte temporary channel identifier,
// allocating the next channel-id counter slot.
func (k *KeyRoot) GetChannelID() [32]byte {
	h := k.uniqueStart()

	childIx := k.channelIDCounter.Add(1) - 1
	childKey, err := k.channelIDMaster.Child(hdkeychain.HardenedKeyStart + childIx)
	if err != nil {
		panic("lnkeysigner: channel-id key space exhausted: " + err.Error())
	}
	childPriv, err := childKey.ECPrivKey()
	if err != nil {
		panic("lnkeysigner: channel-id child key is not valid: " + err.Error())
	}
	h.write(childPriv.Serialize())

	return h.sum()
}

// scalarFromStep performs one link of the five-step chain described in
// spec.md §4.1 step 6: SHA256(seed32 || prev || label), interpreted as a
// secp256k1 scalar.
func scalarFromStep(seed32, prev []byte, label string) *btcec.PrivateKey {
	digest := sha256Sum(seed32, prev, []byte(label))
	key, _ := btcec.PrivKeyFromBytes(digest[:])
	return key
}

func sha256Sum(parts ...[]byte) [32]byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// hasher is a small incremental-SHA256 wrapper supporting the big-endian
// integer writes spec.md's derivation algorithms rely on, plus cheap
// cloning (GetOnionRand forks its hash state to produce two independent
// outputs from a shared prefix).
type hasher struct {
	s shaState
}

func newHasher() hasher {
	var h hasher
	h.s = newShaState()
	return h
}

func (h *hasher) write(b []byte)     { h.s.Write(b) }
func (h *hasher) writeU64(v uint64)  { var b [8]byte; binary.BigEndian.PutUint64(b[:], v); h.s.Write(b[:]) }
func (h *hasher) writeU32(v uint32)  { var b [4]byte; binary.BigEndian.PutUint32(b[:], v); h.s.Write(b[:]) }
func (h hasher) sum() [32]byte       { return h.s.Sum() }
func (h hasher) clone() hasher       { return hasher{s: h.s.Clone()} }
