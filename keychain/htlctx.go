package keychain

import (
	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// Second-stage HTLC transaction weights, used to compute the fee deducted
// from the HTLC amount before it lands in a delayed, revocable output.
// Grounded on the teacher's lnwallet/size.go weight table.
const (
	htlcTimeoutWeight = 663
	htlcSuccessWeight = 703
)

// buildHTLCTransaction constructs the unsigned second-stage transaction that
// claims a single HTLC output from a commitment transaction, spending it
// into a CSV-delayed, revocable output controlled by the delayed payment
// key. For an offered HTLC this is the HTLC-timeout transaction (nLockTime
// set to the HTLC's CLTV expiry); for a received HTLC it is the
// HTLC-success transaction (nLockTime zero, the witness instead supplies the
// payment preimage). The caller supplies the preimage out of band; this
// helper only shapes the transaction skeleton the signer then hashes and
// signs.
func buildHTLCTransaction(commitHash chainhash.Hash, htlcIndex uint32,
	feeratePerKw uint64, toSelfDelay uint32, htlcAmountSat int64,
	cltvExpiry uint32, offered bool, delayedPubkey, revocationPubkey *btcec.PublicKey) (*wire.MsgTx, error) {

	weight := int64(htlcSuccessWeight)
	if offered {
		weight = htlcTimeoutWeight
	}
	fee := (int64(feeratePerKw) * weight) / 1000

	outputScript, err := secondLevelHTLCScript(toSelfDelay, revocationPubkey, delayedPubkey)
	if err != nil {
		return nil, err
	}
	pkScript, err := witnessScriptHash(outputScript)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{
		PreviousOutPoint: wire.OutPoint{Hash: commitHash, Index: htlcIndex},
		Sequence:         0,
	})
	tx.AddTxOut(wire.NewTxOut(htlcAmountSat-fee, pkScript))

	if offered {
		tx.LockTime = cltvExpiry
	}

	return tx, nil
}
