package keychain_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/lnkeysigner/keychain"
)

func newTestRemoteBasepoints(t *testing.T) (*keychain.ChannelPublicKeys, *btcec.PrivateKey) {
	t.Helper()
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	return &keychain.ChannelPublicKeys{
		FundingPubKey:           priv.PubKey(),
		RevocationBasePoint:     priv.PubKey(),
		PaymentBasePoint:        priv.PubKey(),
		DelayedPaymentBasePoint: priv.PubKey(),
		HtlcBasePoint:           priv.PubKey(),
	}, priv
}

func dummyCommitmentTx(fundingOutpoint wire.OutPoint) *wire.MsgTx {
	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: fundingOutpoint})
	tx.AddTxOut(wire.NewTxOut(900_000, []byte{0}))
	return tx
}

// TestSetRemoteBasepointsOneShot covers invariant I1: the second call to
// SetRemoteBasepoints must fail (here, panic, per its documented contract).
func TestSetRemoteBasepointsOneShot(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(10), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	require.Panics(t, func() {
		_ = signer.SetRemoteBasepoints(remote)
	})
}

// TestSigningBeforeBasepointsSetFails covers the "Fresh" state: any signing
// primitive needing the remote basepoints must reject before they are set.
func TestSigningBeforeBasepointsSetFails(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(11), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})
	_, _, err := signer.SignRemoteCommitment(253, commitTx, &keychain.TxCreationKeys{}, nil, 144)
	require.ErrorIs(t, err, keychain.ErrMissingRemoteBasepoints)

	_, err = signer.UnsafeSignLocalCommitment(commitTx)
	require.ErrorIs(t, err, keychain.ErrMissingRemoteBasepoints)
}

// TestSignRemoteCommitmentProducesValidSignature checks that the commitment
// signature SignRemoteCommitment returns actually verifies against the
// 2-of-2 funding script's local half.
func TestSignRemoteCommitmentProducesValidSignature(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(12), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})
	commitSig, htlcSigs, err := signer.SignRemoteCommitment(
		253, commitTx, &keychain.TxCreationKeys{}, nil, 144,
	)
	require.NoError(t, err)
	require.Empty(t, htlcSigs)

	// Rebuild the funding redeem script's sighash the same way
	// signWitnessScript does, and confirm the signature verifies against
	// the local funding pubkey.
	a := signer.Pubkeys().FundingPubKey.SerializeCompressed()
	b := remote.FundingPubKey.SerializeCompressed()

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	if string(a) < string(b) {
		builder.AddData(a)
		builder.AddData(b)
	} else {
		builder.AddData(b)
		builder.AddData(a)
	}
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	redeemScript, err := builder.Script()
	require.NoError(t, err)

	fetcher := txscript.NewCannedPrevOutputFetcher(redeemScript, 1_000_000)
	sigHashes := txscript.NewTxSigHashes(commitTx, fetcher)
	digest, err := txscript.CalcWitnessSigHash(
		redeemScript, sigHashes, txscript.SigHashAll, commitTx, 0, 1_000_000,
	)
	require.NoError(t, err)

	require.True(t, commitSig.Verify(digest, signer.Pubkeys().FundingPubKey))
}

// TestSignLocalCommitmentIdempotent covers the optional one-shot hardening:
// repeated calls with a byte-identical tx return the same signature;
// calling again with a materially different tx is rejected.
func TestSignLocalCommitmentIdempotent(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(13), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})

	sig1, err := signer.SignLocalCommitment(commitTx)
	require.NoError(t, err)

	sig2, err := signer.SignLocalCommitment(commitTx)
	require.NoError(t, err)
	require.Equal(t, sig1.Serialize(), sig2.Serialize())

	otherTx := dummyCommitmentTx(wire.OutPoint{Index: 1})
	_, err = signer.SignLocalCommitment(otherTx)
	require.ErrorIs(t, err, keychain.ErrCommitmentAlreadySigned)

	// UnsafeSignLocalCommitment bypasses the one-shot gate entirely.
	_, err = signer.UnsafeSignLocalCommitment(otherTx)
	require.NoError(t, err)
}

// TestSignClosingTransactionStructuralGates covers the structural rejections
// SignClosingTransaction must enforce before it will sign.
func TestSignClosingTransactionStructuralGates(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(14), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	// Wrong input count.
	tooManyInputs := wire.NewMsgTx(2)
	tooManyInputs.AddTxIn(&wire.TxIn{})
	tooManyInputs.AddTxIn(&wire.TxIn{})
	_, err := signer.SignClosingTransaction(tooManyInputs)
	require.ErrorIs(t, err, keychain.ErrWrongInputCount)

	// Non-empty witness on the sole input.
	nonEmptyWitness := wire.NewMsgTx(2)
	nonEmptyWitness.AddTxIn(&wire.TxIn{Witness: wire.TxWitness{{0x01}}})
	_, err = signer.SignClosingTransaction(nonEmptyWitness)
	require.ErrorIs(t, err, keychain.ErrClosingWitnessNotEmpty)

	// Too many outputs.
	tooManyOutputs := wire.NewMsgTx(2)
	tooManyOutputs.AddTxIn(&wire.TxIn{})
	tooManyOutputs.AddTxOut(wire.NewTxOut(1, []byte{0}))
	tooManyOutputs.AddTxOut(wire.NewTxOut(1, []byte{0}))
	tooManyOutputs.AddTxOut(wire.NewTxOut(1, []byte{0}))
	_, err = signer.SignClosingTransaction(tooManyOutputs)
	require.ErrorIs(t, err, keychain.ErrTooManyClosingOutputs)

	// A well-formed closing transaction signs successfully.
	valid := wire.NewMsgTx(2)
	valid.AddTxIn(&wire.TxIn{})
	valid.AddTxOut(wire.NewTxOut(900_000, []byte{0}))
	_, err = signer.SignClosingTransaction(valid)
	require.NoError(t, err)
}

// TestSignChannelAnnouncementValidates checks that the gossip announcement
// signature verifies against the funding pubkey over SHA256d(msg).
func TestSignChannelAnnouncementValidates(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(15), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	msg := []byte("pretend channel announcement payload")
	sig, err := signer.SignChannelAnnouncement(msg)
	require.NoError(t, err)

	digest := chainhash.DoubleHashB(msg)
	require.True(t, sig.Verify(digest, signer.Pubkeys().FundingPubKey))
}

// TestSignHTLCTransactionsSkipsDust covers the "dust outputs are trimmed,
// order matches input htlcs slice" edge case for
// SignLocalCommitmentHTLCTransactions.
func TestSignHTLCTransactionsSkipsDust(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(16), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})
	perCommitmentSecret, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	perCommitmentPoint := perCommitmentSecret.PubKey()

	idx0 := uint32(0)
	htlcs := []keychain.HTLCDescriptor{
		{
			Offered:        true,
			AmountMsat:     500_000_000,
			PaymentHash160: make([]byte, 20),
			CLTVExpiry:     500_000,
			OutputIndex:    &idx0,
		},
		{
			// Dust: no OutputIndex.
			Offered:        false,
			AmountMsat:     1_000,
			PaymentHash160: make([]byte, 20),
			OutputIndex:    nil,
		},
	}

	sigs, err := signer.SignLocalCommitmentHTLCTransactions(
		commitTx, perCommitmentPoint, htlcs, 144,
	)
	require.NoError(t, err)
	require.Len(t, sigs, 2)
	require.NotNil(t, sigs[0])
	require.Nil(t, sigs[1])
}

// TestInMemoryChannelSignerRoundTripFresh covers invariant 3 (§8) for a
// signer that has not yet had remote basepoints bound.
func TestInMemoryChannelSignerRoundTripFresh(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(17), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(false, 1_000_000)

	var buf bytes.Buffer
	require.NoError(t, signer.Encode(&buf))

	decoded, err := keychain.DecodeInMemoryChannelSigner(&buf)
	require.NoError(t, err)

	require.Equal(t, signer.Pubkeys(), decoded.Pubkeys())
	require.Equal(t, signer.CommitmentSeed(), decoded.CommitmentSeed())
	require.Equal(t, signer.DerivationParams(), decoded.DerivationParams())
	require.Equal(t, signer.ChannelValueSat(), decoded.ChannelValueSat())

	// The decoded signer is still Fresh: signing must fail the same way
	// as it would on the original before basepoints were bound.
	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})
	_, err = decoded.UnsafeSignLocalCommitment(commitTx)
	require.ErrorIs(t, err, keychain.ErrMissingRemoteBasepoints)
}

// TestInMemoryChannelSignerRoundTripBound covers invariant 3 (§8) for a
// signer already bound to remote basepoints, checking that local basepoints
// are correctly re-derived (not read off the wire) and that the remote
// basepoints survive the round trip byte-for-byte.
func TestInMemoryChannelSignerRoundTripBound(t *testing.T) {
	root := keychain.NewKeyRoot(testSeed(18), &chaincfg.MainNetParams, 1, 0)
	signer := root.GetChannelKeys(true, 2_000_000)

	remote, _ := newTestRemoteBasepoints(t)
	require.NoError(t, signer.SetRemoteBasepoints(remote))

	var buf bytes.Buffer
	require.NoError(t, signer.Encode(&buf))
	encoded := append([]byte(nil), buf.Bytes()...)

	decoded, err := keychain.DecodeInMemoryChannelSigner(&buf)
	require.NoError(t, err)

	require.Equal(t, signer.Pubkeys(), decoded.Pubkeys())

	// A signing primitive that needs the remote basepoints must now
	// succeed on the decoded signer exactly as it does on the original.
	commitTx := dummyCommitmentTx(wire.OutPoint{Index: 0})
	sig, err := decoded.UnsafeSignLocalCommitment(commitTx)
	require.NoError(t, err)

	origSig, err := signer.UnsafeSignLocalCommitment(commitTx)
	require.NoError(t, err)
	require.Equal(t, origSig.Serialize(), sig.Serialize())

	// Re-encoding the decoded signer must reproduce the same bytes.
	var buf2 bytes.Buffer
	require.NoError(t, decoded.Encode(&buf2))
	require.Equal(t, encoded, buf2.Bytes())
}
