package walletspend

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

// revocableToSelfScript rebuilds the BOLT-3 CSV-delayed, revocable script a
// DynamicOutputP2WSH output is guarded by, mirroring
// keychain's unexported commitScriptToSelf (kept package-private there
// since only the signer needs it when building commitment transactions;
// walletspend needs the same shape again on the spending side).
func revocableToSelfScript(toSelfDelay uint32, delayedPubkey,
	revocationPubkey *btcec.PublicKey) ([]byte, error) {

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

// p2wpkhScript builds the plain P2WPKH script a StaticOutputRemotePayment
// descriptor's signature is verified against (not a true witness
// *program*, but the script txscript.RawTxInWitnessSignature needs to
// compute the BIP-143 sighash for a P2WKH-style spend).
func p2wpkhScript(pubkey *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_DUP)
	builder.AddOp(txscript.OP_HASH160)
	builder.AddData(btcutil.Hash160(pubkey.SerializeCompressed()))
	builder.AddOp(txscript.OP_EQUALVERIFY)
	builder.AddOp(txscript.OP_CHECKSIG)
	return builder.Script()
}
