package keychain

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/decred/dcrd/dcrec/secp256k1/v4"
)

// ChannelPublicKeys holds the five basepoints a channel party commits to at
// channel-open time, as required by BOLT-3. Everything a counterparty or a
// chain watcher later needs to reconstruct a per-commitment public key is
// derivable from one of these plus a per-commitment point.
type ChannelPublicKeys struct {
	// FundingPubKey is the key used for the 2-of-2 funding multi-sig.
	FundingPubKey *btcec.PublicKey

	// RevocationBasePoint is tweaked by the per-commitment point to
	// produce the revocation public key for a given commitment.
	RevocationBasePoint *btcec.PublicKey

	// PaymentBasePoint is tweaked by the per-commitment point to produce
	// the key backing our settled balance in the counterparty's
	// commitment.
	PaymentBasePoint *btcec.PublicKey

	// DelayedPaymentBasePoint is tweaked by the per-commitment point to
	// produce the CSV-delayed key backing our settled balance in our own
	// commitment.
	DelayedPaymentBasePoint *btcec.PublicKey

	// HtlcBasePoint is tweaked by the per-commitment point to produce the
	// key used in HTLC outputs.
	HtlcBasePoint *btcec.PublicKey
}

// tweakHash computes the BOLT-3 per-commitment tweak: SHA256(point ||
// basePoint), interpreted as a scalar.
func tweakHash(perCommitmentPoint, basePoint *btcec.PublicKey) [32]byte {
	h := sha256.New()
	h.Write(perCommitmentPoint.SerializeCompressed())
	h.Write(basePoint.SerializeCompressed())

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// DerivePublicKey derives the public key that corresponds to a private key
// derived via DerivePrivateKey, without requiring the private key itself.
// This is the standard BOLT-3 "pubkey = basePoint + SHA256(point ||
// basePoint)*G" tweak.
func DerivePublicKey(perCommitmentPoint, basePoint *btcec.PublicKey) *btcec.PublicKey {
	tweakBytes := tweakHash(perCommitmentPoint, basePoint)

	var tweakScalar secp256k1.ModNScalar
	tweakScalar.SetByteSlice(tweakBytes[:])

	var tweakPoint, basePointJ, resultJ secp256k1.JacobianPoint
	basePoint.AsJacobian(&basePointJ)
	secp256k1.ScalarBaseMultNonConst(&tweakScalar, &tweakPoint)
	secp256k1.AddNonConst(&tweakPoint, &basePointJ, &resultJ)
	resultJ.ToAffine()

	return btcec.NewPublicKey(&resultJ.X, &resultJ.Y)
}

// DerivePrivateKey derives the private key used to sign for a particular
// commitment given the base secret and the per-commitment point advertised
// by the counterparty (or, for our own keys, the point we ourselves
// published for that commitment height).
func DerivePrivateKey(baseSecret *btcec.PrivateKey, perCommitmentPoint *btcec.PublicKey) *btcec.PrivateKey {
	basePub := baseSecret.PubKey()
	tweakBytes := tweakHash(perCommitmentPoint, basePub)

	var tweakScalar, result secp256k1.ModNScalar
	tweakScalar.SetByteSlice(tweakBytes[:])
	result.Set(&baseSecret.Key)
	result.Add(&tweakScalar)

	return btcec.PrivKeyFromScalar(&result)
}

// DeriveRevocationPubkey derives the revocation public key for a given
// commitment given the revocation basepoint of the party able to punish a
// revoked broadcast, and the per-commitment point the broadcasting party
// published for that height.
// Per BOLT-3:
//
//	revocationPubkey = revocationBasePoint*SHA256(revocationBasePoint ||
//	    perCommitmentPoint) + perCommitmentPoint*SHA256(perCommitmentPoint
//	    || revocationBasePoint)
//
// Once the per-commitment *secret* (rather than just the point) is known,
// DeriveRevocationPrivKey can recover the matching private key by exploiting
// the homomorphism in the elliptic-curve group.
func DeriveRevocationPubkey(revocationBasePoint, perCommitmentPoint *btcec.PublicKey) *btcec.PublicKey {
	revokeTweakBytes := tweakHash(revocationBasePoint, perCommitmentPoint)
	commitTweakBytes := tweakHash(perCommitmentPoint, revocationBasePoint)

	var revokeTweak, commitTweak secp256k1.ModNScalar
	revokeTweak.SetByteSlice(revokeTweakBytes[:])
	commitTweak.SetByteSlice(commitTweakBytes[:])

	var revBaseJ, commitJ, revTermJ, commitTermJ, sumJ secp256k1.JacobianPoint
	revocationBasePoint.AsJacobian(&revBaseJ)
	perCommitmentPoint.AsJacobian(&commitJ)

	secp256k1.ScalarMultNonConst(&revokeTweak, &revBaseJ, &revTermJ)
	secp256k1.ScalarMultNonConst(&commitTweak, &commitJ, &commitTermJ)
	secp256k1.AddNonConst(&revTermJ, &commitTermJ, &sumJ)
	sumJ.ToAffine()

	return btcec.NewPublicKey(&sumJ.X, &sumJ.Y)
}

// DeriveRevocationPrivKey derives the private key that can spend a
// commitment output protected by DeriveRevocationPubkey, once the
// counterparty has revealed the per-commitment secret for that height.
//
//	revocationPriv = revocationBaseSecret*SHA256(revocationBasePoint ||
//	    perCommitmentPoint) + perCommitmentSecret*SHA256(perCommitmentPoint
//	    || revocationBasePoint)
func DeriveRevocationPrivKey(revocationBaseSecret *btcec.PrivateKey,
	perCommitmentSecret *btcec.PrivateKey) *btcec.PrivateKey {

	revocationBasePoint := revocationBaseSecret.PubKey()
	perCommitmentPoint := perCommitmentSecret.PubKey()

	revokeTweakBytes := tweakHash(revocationBasePoint, perCommitmentPoint)
	commitTweakBytes := tweakHash(perCommitmentPoint, revocationBasePoint)

	var revokeTweak, commitTweak secp256k1.ModNScalar
	revokeTweak.SetByteSlice(revokeTweakBytes[:])
	commitTweak.SetByteSlice(commitTweakBytes[:])

	var revokeTerm, commitTerm, sum secp256k1.ModNScalar
	revokeTerm.Set(&revocationBaseSecret.Key)
	revokeTerm.Mul(&revokeTweak)
	commitTerm.Set(&perCommitmentSecret.Key)
	commitTerm.Mul(&commitTweak)
	sum.Add2(&revokeTerm, &commitTerm)

	return btcec.PrivKeyFromScalar(&sum)
}
