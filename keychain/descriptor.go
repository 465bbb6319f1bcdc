package keychain

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
)

// Variant tags for the binary encoding of SpendableOutputDescriptor.
const (
	staticOutputTag               = 0
	dynamicOutputP2WSHTag         = 1
	staticOutputRemotePaymentTag  = 2
)

// SpendableOutputDescriptor is the hand-off from the signing core to the
// wallet/broadcast layer: every on-chain output the node may claim,
// carrying enough derivation hints to re-mint the signer that can spend it.
type SpendableOutputDescriptor interface {
	// Outpoint returns the on-chain location of the output.
	Outpoint() wire.OutPoint

	// TxOut returns the claimed output itself (script and value).
	TxOut() *wire.TxOut

	Encode(w io.Writer) error
}

// StaticOutput describes an output whose spending script the wallet already
// holds the key for directly (e.g. a static remote-key output, or the
// result of a justice sweep where the revocation key was derived
// out-of-band). No derivation hints are carried.
type StaticOutput struct {
	OutPoint wire.OutPoint
	Output   wire.TxOut
}

func (d *StaticOutput) Outpoint() wire.OutPoint { return d.OutPoint }
func (d *StaticOutput) TxOut() *wire.TxOut      { return &d.Output }

func (d *StaticOutput) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{staticOutputTag}); err != nil {
		return err
	}
	if err := writeOutpoint(w, &d.OutPoint); err != nil {
		return err
	}
	return writeTxOut(w, &d.Output)
}

// DynamicOutputP2WSH describes a CSV-locked P2WSH output paying the node's
// delayed, revocable balance on its own commitment transaction. The wallet
// re-derives the signer from DerivationParams via KeyRoot.DeriveChannelKeys,
// then derives the delayed payment private key from (PerCommitmentPoint,
// delayed payment base key). Spending witness stack: <sig> <empty>
// <witness_script>. The spending input's nSequence must equal ToSelfDelay.
type DynamicOutputP2WSH struct {
	OutPoint             wire.OutPoint
	PerCommitmentPoint   *btcec.PublicKey
	ToSelfDelay          uint16
	Output               wire.TxOut
	DerivationParams     [2]uint64
	RemoteRevocationPubkey *btcec.PublicKey
}

func (d *DynamicOutputP2WSH) Outpoint() wire.OutPoint { return d.OutPoint }
func (d *DynamicOutputP2WSH) TxOut() *wire.TxOut      { return &d.Output }

func (d *DynamicOutputP2WSH) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{dynamicOutputP2WSHTag}); err != nil {
		return err
	}
	if err := writeOutpoint(w, &d.OutPoint); err != nil {
		return err
	}
	if _, err := w.Write(d.PerCommitmentPoint.SerializeCompressed()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, d.ToSelfDelay); err != nil {
		return err
	}
	if err := writeTxOut(w, &d.Output); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, d.DerivationParams[0]); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, d.DerivationParams[1]); err != nil {
		return err
	}
	_, err := w.Write(d.RemoteRevocationPubkey.SerializeCompressed())
	return err
}

// StaticOutputRemotePayment describes a P2WPKH output paying the node's
// settled balance on the counterparty's commitment transaction. The wallet
// re-derives the signer from DerivationParams and signs with the payment
// key. Witness: <sig> <payment_pubkey>.
type StaticOutputRemotePayment struct {
	OutPoint         wire.OutPoint
	Output           wire.TxOut
	DerivationParams [2]uint64
}

func (d *StaticOutputRemotePayment) Outpoint() wire.OutPoint { return d.OutPoint }
func (d *StaticOutputRemotePayment) TxOut() *wire.TxOut      { return &d.Output }

func (d *StaticOutputRemotePayment) Encode(w io.Writer) error {
	if _, err := w.Write([]byte{staticOutputRemotePaymentTag}); err != nil {
		return err
	}
	if err := writeOutpoint(w, &d.OutPoint); err != nil {
		return err
	}
	if err := writeTxOut(w, &d.Output); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, d.DerivationParams[0]); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, d.DerivationParams[1])
}

// DecodeSpendableOutputDescriptor reads back whichever variant was written
// by Encode, dispatching on the leading tag byte.
func DecodeSpendableOutputDescriptor(r io.Reader) (SpendableOutputDescriptor, error) {
	var tagBuf [1]byte
	if _, err := io.ReadFull(r, tagBuf[:]); err != nil {
		return nil, fmt.Errorf("reading variant tag: %w", err)
	}

	switch tagBuf[0] {
	case staticOutputTag:
		d := &StaticOutput{}
		if err := readOutpoint(r, &d.OutPoint); err != nil {
			return nil, err
		}
		if err := readTxOut(r, &d.Output); err != nil {
			return nil, err
		}
		return d, nil

	case dynamicOutputP2WSHTag:
		d := &DynamicOutputP2WSH{}
		if err := readOutpoint(r, &d.OutPoint); err != nil {
			return nil, err
		}

		var pubBuf [33]byte
		if _, err := io.ReadFull(r, pubBuf[:]); err != nil {
			return nil, fmt.Errorf("reading per_commitment_point: %w", err)
		}
		perCommitmentPoint, err := btcec.ParsePubKey(pubBuf[:])
		if err != nil {
			return nil, fmt.Errorf("%w: per_commitment_point: %s", ErrInvalidValue, err)
		}
		d.PerCommitmentPoint = perCommitmentPoint

		if err := binary.Read(r, binary.BigEndian, &d.ToSelfDelay); err != nil {
			return nil, fmt.Errorf("reading to_self_delay: %w", err)
		}
		if err := readTxOut(r, &d.Output); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &d.DerivationParams[0]); err != nil {
			return nil, fmt.Errorf("reading derivation_params.0: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &d.DerivationParams[1]); err != nil {
			return nil, fmt.Errorf("reading derivation_params.1: %w", err)
		}

		if _, err := io.ReadFull(r, pubBuf[:]); err != nil {
			return nil, fmt.Errorf("reading remote_revocation_pubkey: %w", err)
		}
		remoteRevocationPubkey, err := btcec.ParsePubKey(pubBuf[:])
		if err != nil {
			return nil, fmt.Errorf("%w: remote_revocation_pubkey: %s", ErrInvalidValue, err)
		}
		d.RemoteRevocationPubkey = remoteRevocationPubkey

		return d, nil

	case staticOutputRemotePaymentTag:
		d := &StaticOutputRemotePayment{}
		if err := readOutpoint(r, &d.OutPoint); err != nil {
			return nil, err
		}
		if err := readTxOut(r, &d.Output); err != nil {
			return nil, err
		}
		if err := binary.Read(r, binary.BigEndian, &d.DerivationParams[0]); err != nil {
			return nil, fmt.Errorf("reading derivation_params.0: %w", err)
		}
		if err := binary.Read(r, binary.BigEndian, &d.DerivationParams[1]); err != nil {
			return nil, fmt.Errorf("reading derivation_params.1: %w", err)
		}
		return d, nil

	default:
		return nil, fmt.Errorf("%w: tag %d", ErrInvalidValue, tagBuf[0])
	}
}

// writeOutpoint/readOutpoint implement the standard Bitcoin consensus
// serialization of an outpoint: a 32-byte txid followed by a 4-byte
// little-endian output index.
func writeOutpoint(w io.Writer, op *wire.OutPoint) error {
	if _, err := w.Write(op.Hash[:]); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, op.Index)
}

func readOutpoint(r io.Reader, op *wire.OutPoint) error {
	if _, err := io.ReadFull(r, op.Hash[:]); err != nil {
		return fmt.Errorf("reading outpoint hash: %w", err)
	}
	return binary.Read(r, binary.LittleEndian, &op.Index)
}

// writeTxOut/readTxOut implement the standard Bitcoin consensus
// serialization of a transaction output: an 8-byte little-endian value
// followed by a var-int-prefixed pkScript.
func writeTxOut(w io.Writer, out *wire.TxOut) error {
	if err := binary.Write(w, binary.LittleEndian, out.Value); err != nil {
		return err
	}
	return wire.WriteVarBytes(w, 0, out.PkScript)
}

func readTxOut(r io.Reader, out *wire.TxOut) error {
	if err := binary.Read(r, binary.LittleEndian, &out.Value); err != nil {
		return fmt.Errorf("reading output value: %w", err)
	}
	script, err := wire.ReadVarBytes(r, 0, wire.MaxMessagePayload, "pkScript")
	if err != nil {
		return fmt.Errorf("reading output script: %w", err)
	}
	out.PkScript = script
	return nil
}
