package keychain

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// witnessScriptHash wraps a redeem script in its v0 P2WSH scriptPubKey.
func witnessScriptHash(redeemScript []byte) ([]byte, error) {
	scriptHash := sha256Sum(redeemScript)

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(scriptHash[:])
	return builder.Script()
}

// genFundingRedeemScript builds the canonical 2-of-2 funding multi-sig
// redeem script. Pubkeys are sorted lexicographically by their compressed
// encoding, matching BOLT-3's canonical funding output ordering.
func genFundingRedeemScript(aPub, bPub *btcec.PublicKey) ([]byte, error) {
	a := aPub.SerializeCompressed()
	b := bPub.SerializeCompressed()

	if bytes.Compare(a, b) == 1 {
		a, b = b, a
	}

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	builder.AddData(a)
	builder.AddData(b)
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

// CombineFundingWitness assembles the final witness stack for the 2-of-2
// funding output given both parties' DER-encoded, sighash-byte-suffixed
// signatures, ordering them to match genFundingRedeemScript's pubkey
// ordering. Exported for the channel layer that holds both signatures after
// exchanging them over the wire.
func CombineFundingWitness(redeemScript []byte, pubA, sigA, pubB, sigB []byte) [][]byte {
	witness := make([][]byte, 4)
	witness[0] = nil

	if bytes.Compare(pubA, pubB) == 1 {
		witness[1] = sigB
		witness[2] = sigA
	} else {
		witness[1] = sigA
		witness[2] = sigB
	}

	witness[3] = redeemScript
	return witness
}

// commitScriptToSelf builds the CSV-delayed, revocable output script a
// channel party's own commitment transaction pays their settled balance to:
//
//	OP_IF
//	    <revocationPubkey> OP_CHECKSIG
//	OP_ELSE
//	    <to_self_delay> OP_CHECKSEQUENCEVERIFY OP_DROP
//	    <delayedPubkey> OP_CHECKSIG
//	OP_ENDIF
func commitScriptToSelf(toSelfDelay uint32, delayedPubkey, revocationPubkey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_IF)
	builder.AddData(revocationPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(int64(toSelfDelay))
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(delayedPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// offeredHTLCScript builds the BOLT-3 redeem script for an HTLC the local
// party offered the remote party within their commitment transaction:
//
//	OP_DUP OP_HASH160 <RIPEMD160(SHA256(revocationPubkey))> OP_EQUAL
//	OP_IF
//	    OP_CHECKSIG
//	OP_ELSE
//	    <remoteHtlcPubkey> OP_SWAP OP_SIZE 32 OP_EQUAL
//	    OP_NOTIF
//	        OP_DROP 2 OP_SWAP <localHtlcPubkey> 2 OP_CHECKMULTISIG
//	    OP_ELSE
//	        OP_HASH160 <paymentHash160> OP_EQUALVERIFY
//	        OP_CHECKSIG
//	    OP_ENDIF
//	OP_ENDIF
func offeredHTLCScript(revocationPubkey, localHtlcPubkey, remoteHtlcPubkey *btcec.PublicKey,
	paymentHash160 []byte) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(hash160(revocationPubkey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(remoteHtlcPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_NOTIF)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(localHtlcPubkey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(paymentHash160)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// receivedHTLCScript builds the BOLT-3 redeem script for an HTLC the local
// party received from the remote party within their commitment transaction:
//
//	OP_DUP OP_HASH160 <RIPEMD160(SHA256(revocationPubkey))> OP_EQUAL
//	OP_IF
//	    OP_CHECKSIG
//	OP_ELSE
//	    <remoteHtlcPubkey> OP_SWAP OP_SIZE 32 OP_EQUAL
//	    OP_IF
//	        OP_HASH160 <paymentHash160> OP_EQUALVERIFY
//	        2 OP_SWAP <localHtlcPubkey> 2 OP_CHECKMULTISIG
//	    OP_ELSE
//	        OP_DROP <cltv_expiry> OP_CHECKLOCKTIMEVERIFY OP_DROP
//	        OP_CHECKSIG
//	    OP_ENDIF
//	OP_ENDIF
func receivedHTLCScript(cltvExpiry uint32, revocationPubkey, localHtlcPubkey,
	remoteHtlcPubkey *btcec.PublicKey, paymentHash160 []byte) ([]byte, error) {

	builder := txscript.NewScriptBuilder()

	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(hash160(revocationPubkey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddData(remoteHtlcPubkey.SerializeCompressed())
	builder.AddOp(txscript.OP_SWAP)
	builder.AddOp(txscript.OP_SIZE)
	builder.AddInt64(32)
	builder.AddOp(txscript.OP_EQUAL)
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(paymentHash160)
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_SWAP)
	builder.AddData(localHtlcPubkey.SerializeCompressed())
	builder.AddInt64(2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	builder.AddOp(txscript.OP_ELSE)
	builder.AddOp(txscript.OP_DROP)
	builder.AddInt64(int64(cltvExpiry))
	builder.AddOp(txscript.OP_CHECKLOCKTIMEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// secondLevelHTLCScript builds the revocable-to-self script that guards the
// output of a second-stage HTLC-success/HTLC-timeout transaction, identical
// in shape to commitScriptToSelf (BOLT-3 mandates the same construction).
func secondLevelHTLCScript(toSelfDelay uint32, revocationPubkey,
	delayedPubkey *btcec.PublicKey) ([]byte, error) {

	return commitScriptToSelf(toSelfDelay, delayedPubkey, revocationPubkey)
}
