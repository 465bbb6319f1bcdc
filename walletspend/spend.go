// Package walletspend is the wallet-facing consumer of
// keychain.SpendableOutputDescriptor: it turns a descriptor plus a
// re-derived keychain.ChannelSigner into a finalized, signed transaction
// ready for broadcast. It never broadcasts itself — transmission is the
// external chain-watcher's job.
//
// This generalizes the teacher's lnwallet.WitnessType /
// (WitnessType).GenWitnessFunc pattern (one witness-generating function per
// output "shape") from the teacher's three commitment-output witness types
// to the three SpendableOutputDescriptor variants this module defines.
package walletspend

import (
	"bytes"
	"fmt"

	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/lnkeysigner/keychain"
)

// WitnessGenerator builds the final witness stack for a single input of a
// sweep transaction, given the transaction, its BIP-143 sighash cache, and
// the input's index.
type WitnessGenerator func(tx *wire.MsgTx, hashCache *txscript.TxSigHashes,
	inputIndex int) (wire.TxWitness, error)

// BuildSpend assembles and finalizes a transaction spending the single
// output described by desc to destination, returning the finalized
// *wire.MsgTx. signer must be the exact ChannelSigner
// KeyRoot.DeriveChannelKeys(desc's channel value, desc's derivation
// params...) would produce for a DynamicOutputP2WSH or
// StaticOutputRemotePayment descriptor — the caller re-derives it from a
// KeyRoot before calling BuildSpend.
func BuildSpend(desc keychain.SpendableOutputDescriptor, signer keychain.ChannelSigner,
	feeSat int64, destination []byte) (*wire.MsgTx, error) {

	outpoint := desc.Outpoint()
	txOut := desc.TxOut()

	spendValue := txOut.Value - feeSat
	if spendValue <= 0 {
		return nil, fmt.Errorf("output value %d too small to cover fee %d", txOut.Value, feeSat)
	}

	log.Debugf("Building spend of %v (value=%d, fee=%d)", outpoint, txOut.Value, feeSat)

	tx := wire.NewMsgTx(2)
	tx.AddTxIn(&wire.TxIn{PreviousOutPoint: outpoint})
	tx.AddTxOut(wire.NewTxOut(spendValue, destination))

	witnessGen, err := witnessGeneratorFor(desc, signer)
	if err != nil {
		return nil, err
	}

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(txOut.PkScript, txOut.Value)
	hashCache := txscript.NewTxSigHashes(tx, prevOutFetcher)

	witness, err := witnessGen(tx, hashCache, 0)
	if err != nil {
		return nil, err
	}
	tx.TxIn[0].Witness = witness

	return tx, nil
}

// witnessGeneratorFor dispatches on the descriptor's concrete type,
// generalizing the teacher's per-WitnessType switch in GenWitnessFunc.
func witnessGeneratorFor(desc keychain.SpendableOutputDescriptor,
	signer keychain.ChannelSigner) (WitnessGenerator, error) {

	switch d := desc.(type) {
	case *keychain.StaticOutput:
		return nil, fmt.Errorf("static output at %v has no derivation hints; "+
			"walletspend cannot derive a witness for it on its own", d.OutPoint)

	case *keychain.DynamicOutputP2WSH:
		return dynamicOutputP2WSHWitness(d, signer)

	case *keychain.StaticOutputRemotePayment:
		return staticOutputRemotePaymentWitness(d, signer)

	default:
		return nil, fmt.Errorf("unknown spendable output descriptor type %T", desc)
	}
}

// dynamicOutputP2WSHWitness spends a CSV-locked, revocable P2WSH output
// paying the node's own delayed balance, deriving the delayed payment key
// from (per_commitment_point, delayed_payment_base_key) and producing the
// <sig> <empty> <witness_script> stack BOLT-3 requires.
func dynamicOutputP2WSHWitness(d *keychain.DynamicOutputP2WSH,
	signer keychain.ChannelSigner) (WitnessGenerator, error) {

	delayedPubkey := keychain.DerivePublicKey(d.PerCommitmentPoint, signer.Pubkeys().DelayedPaymentBasePoint)

	witnessScript, err := revocableToSelfScript(uint32(d.ToSelfDelay), delayedPubkey, d.RemoteRevocationPubkey)
	if err != nil {
		return nil, err
	}

	return func(tx *wire.MsgTx, _ *txscript.TxSigHashes, inputIndex int) (wire.TxWitness, error) {
		tx.TxIn[inputIndex].Sequence = uint32(d.ToSelfDelay)

		sig, err := signer.SignDelayedPaymentToUs(
			d.PerCommitmentPoint, tx, inputIndex, d.Output.Value, witnessScript,
		)
		if err != nil {
			return nil, err
		}

		return wire.TxWitness{
			append(sig.Serialize(), byte(txscript.SigHashAll)),
			nil,
			witnessScript,
		}, nil
	}, nil
}

// staticOutputRemotePaymentWitness spends a P2WPKH output paying the
// node's settled balance on the counterparty's commitment, signing with
// the channel's (untweaked) payment key.
func staticOutputRemotePaymentWitness(d *keychain.StaticOutputRemotePayment,
	signer keychain.ChannelSigner) (WitnessGenerator, error) {

	paymentPubkey := signer.Pubkeys().PaymentBasePoint
	witnessScript, err := p2wpkhScript(paymentPubkey)
	if err != nil {
		return nil, err
	}

	return func(tx *wire.MsgTx, _ *txscript.TxSigHashes, inputIndex int) (wire.TxWitness, error) {
		sig, err := signer.SignPaymentToUs(tx, inputIndex, d.Output.Value, witnessScript)
		if err != nil {
			return nil, err
		}

		return wire.TxWitness{
			append(sig.Serialize(), byte(txscript.SigHashAll)),
			paymentPubkey.SerializeCompressed(),
		}, nil
	}, nil
}

// ToPSBT wraps a BuildSpend result as a finalized PSBT packet, the format
// the rest of a wallet stack built on btcutil/psbt expects a completed
// spend to arrive in.
func ToPSBT(tx *wire.MsgTx, prevOut *wire.TxOut) (*psbt.Packet, error) {
	// The PSBT's unsigned transaction must carry no witness data; the
	// witness goes into the input's FinalScriptWitness instead.
	unsignedTx := tx.Copy()
	for _, txIn := range unsignedTx.TxIn {
		txIn.Witness = nil
	}

	packet, err := psbt.NewFromUnsignedTx(unsignedTx)
	if err != nil {
		return nil, fmt.Errorf("building PSBT from spend tx: %w", err)
	}

	packet.Inputs[0].WitnessUtxo = prevOut
	packet.Inputs[0].FinalScriptWitness = serializeWitness(tx.TxIn[0].Witness)

	return packet, nil
}

func serializeWitness(witness wire.TxWitness) []byte {
	var buf bytes.Buffer
	_ = psbt.WriteTxWitness(&buf, witness)
	return buf.Bytes()
}
