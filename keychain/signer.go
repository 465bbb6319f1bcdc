package keychain

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/lightninglabs/lnkeysigner/sigpool"
)

// HTLCDescriptor carries everything the signer needs to rebuild the redeem
// script and sighash for one HTLC output of a commitment transaction.
type HTLCDescriptor struct {
	// Offered is true if the local party offered this HTLC to the
	// remote party (an "offered" output from the local commitment's
	// perspective), false if the local party is the receiver.
	Offered bool

	// AmountMsat is the HTLC's value in millisatoshi; the on-chain
	// output amount truncates this to whole satoshis.
	AmountMsat uint64

	// PaymentHash160 is RIPEMD160(SHA256(payment_preimage)).
	PaymentHash160 []byte

	// CLTVExpiry is the absolute block height after which an offered
	// HTLC may be timed out by its sender.
	CLTVExpiry uint32

	// OutputIndex is the index of this HTLC's output within the
	// commitment transaction. A nil value means the HTLC is dust and was
	// trimmed from the commitment transaction entirely.
	OutputIndex *uint32
}

// amountSat truncates the HTLC's millisatoshi amount to whole satoshis, the
// unit the on-chain output and sighash operate in.
func (h *HTLCDescriptor) amountSat() int64 {
	return int64(h.AmountMsat / 1000)
}

// TxCreationKeys bundles the per-commitment-height keys the remote party's
// commitment transaction was built with, needed to reconstruct its HTLC
// redeem scripts.
type TxCreationKeys struct {
	PerCommitmentPoint *btcec.PublicKey
	LocalHtlcPubkey    *btcec.PublicKey
	RemoteHtlcPubkey   *btcec.PublicKey
	RevocationPubkey   *btcec.PublicKey
}

// ChannelSigner is the capability contract over a single channel's key
// material: accessors for static public data, and a signing primitive for
// every transaction class the channel state machine can construct. An
// implementation must be cheaply clonable and safe to hand off across
// threads; it needn't support concurrent use of the same instance.
type ChannelSigner interface {
	CommitmentSeed() [32]byte
	Pubkeys() *ChannelPublicKeys
	DerivationParams() [2]uint64
	ChannelValueSat() uint64

	SetRemoteBasepoints(pubkeys *ChannelPublicKeys) error

	SignRemoteCommitment(feeratePerKw uint64, commitmentTx *wire.MsgTx,
		txCreationKeys *TxCreationKeys, htlcs []HTLCDescriptor,
		toSelfDelay uint16) (*ecdsa.Signature, []*ecdsa.Signature, error)

	SignLocalCommitment(localCommitmentTx *wire.MsgTx) (*ecdsa.Signature, error)
	UnsafeSignLocalCommitment(localCommitmentTx *wire.MsgTx) (*ecdsa.Signature, error)

	SignLocalCommitmentHTLCTransactions(localCommitmentTx *wire.MsgTx,
		perCommitmentPoint *btcec.PublicKey, htlcs []HTLCDescriptor,
		localCSV uint16) ([]*ecdsa.Signature, error)

	SignJusticeTransaction(justiceTx *wire.MsgTx, inputIndex int, amount int64,
		perCommitmentSecret *btcec.PrivateKey, htlc *HTLCDescriptor,
		onRemoteTxCSV uint16) (*ecdsa.Signature, error)

	SignRemoteHTLCTransaction(htlcTx *wire.MsgTx, inputIndex int, amount int64,
		perCommitmentPoint *btcec.PublicKey, htlc *HTLCDescriptor) (*ecdsa.Signature, error)

	SignClosingTransaction(closingTx *wire.MsgTx) (*ecdsa.Signature, error)

	SignChannelAnnouncement(unsignedAnnouncement []byte) (*ecdsa.Signature, error)

	// SignDelayedPaymentToUs signs a spend of a DynamicOutputP2WSH output
	// (this channel's own delayed, revocable balance) with the private
	// key tweaked by perCommitmentPoint, per §4.3's description of how a
	// wallet re-derives and spends that descriptor variant.
	SignDelayedPaymentToUs(perCommitmentPoint *btcec.PublicKey, tx *wire.MsgTx,
		inputIndex int, amount int64, witnessScript []byte) (*ecdsa.Signature, error)

	// SignPaymentToUs signs a spend of a StaticOutputRemotePayment output
	// (this channel's settled balance on the counterparty's commitment)
	// with the untweaked payment key, per §4.3.
	SignPaymentToUs(tx *wire.MsgTx, inputIndex int, amount int64,
		witnessScript []byte) (*ecdsa.Signature, error)
}

// InMemoryChannelSigner is the reference ChannelSigner implementation: it
// holds the channel's secret scalars directly in process memory. KeyRoot
// mints one per channel; DecodeInMemoryChannelSigner reconstructs one from
// its serialized form (e.g. inside a channel monitor).
type InMemoryChannelSigner struct {
	fundingKey             *btcec.PrivateKey
	revocationBaseKey      *btcec.PrivateKey
	paymentKey             *btcec.PrivateKey
	delayedPaymentBaseKey  *btcec.PrivateKey
	htlcBaseKey            *btcec.PrivateKey
	commitmentSeed         [32]byte
	channelValueSat        uint64
	derivationParams       [2]uint64

	localPubkeys *ChannelPublicKeys

	// Pool, when non-nil, parallelizes per-HTLC signing across the
	// shared worker pool instead of looping serially. Optional: nil
	// means "sign sequentially," matching a fresh signer's zero value.
	Pool *sigpool.Pool

	mu                     sync.Mutex
	remotePubkeys          *ChannelPublicKeys
	localCommitmentSigned  bool
	localCommitmentTxHash  chainhash.Hash
	localCommitmentSig     *ecdsa.Signature
}

// newInMemoryChannelSigner builds a signer from the five chained scalars
// KeyRoot.DeriveChannelKeys derives, deriving the matching local basepoints.
func newInMemoryChannelSigner(fundingKey, revocationBaseKey, paymentKey,
	delayedPaymentBaseKey, htlcBaseKey *btcec.PrivateKey, commitmentSeed [32]byte,
	channelValueSat uint64, derivationParams [2]uint64) *InMemoryChannelSigner {

	return &InMemoryChannelSigner{
		fundingKey:            fundingKey,
		revocationBaseKey:     revocationBaseKey,
		paymentKey:            paymentKey,
		delayedPaymentBaseKey: delayedPaymentBaseKey,
		htlcBaseKey:           htlcBaseKey,
		commitmentSeed:        commitmentSeed,
		channelValueSat:       channelValueSat,
		derivationParams:      derivationParams,
		localPubkeys: &ChannelPublicKeys{
			FundingPubKey:           fundingKey.PubKey(),
			RevocationBasePoint:     revocationBaseKey.PubKey(),
			PaymentBasePoint:        paymentKey.PubKey(),
			DelayedPaymentBasePoint: delayedPaymentBaseKey.PubKey(),
			HtlcBasePoint:           htlcBaseKey.PubKey(),
		},
	}
}

// Encode writes the persisted form of the signer per §6: the five secret
// scalars, the commitment seed, the remote basepoints (a presence byte
// followed by five compressed pubkeys if bound), the channel value, and the
// two derivation-param words. Local basepoints are never written — a reader
// re-derives them from the secrets, matching the teacher's general
// preference for deriving over storing redundant public data.
func (s *InMemoryChannelSigner) Encode(w io.Writer) error {
	for _, key := range []*btcec.PrivateKey{
		s.fundingKey, s.revocationBaseKey, s.paymentKey,
		s.delayedPaymentBaseKey, s.htlcBaseKey,
	} {
		if _, err := w.Write(key.Serialize()); err != nil {
			return err
		}
	}
	if _, err := w.Write(s.commitmentSeed[:]); err != nil {
		return err
	}

	s.mu.Lock()
	remote := s.remotePubkeys
	s.mu.Unlock()

	if remote == nil {
		if _, err := w.Write([]byte{0x00}); err != nil {
			return err
		}
	} else {
		if _, err := w.Write([]byte{0x01}); err != nil {
			return err
		}
		for _, pub := range []*btcec.PublicKey{
			remote.FundingPubKey, remote.RevocationBasePoint, remote.PaymentBasePoint,
			remote.DelayedPaymentBasePoint, remote.HtlcBasePoint,
		} {
			if _, err := w.Write(pub.SerializeCompressed()); err != nil {
				return err
			}
		}
	}

	if err := binary.Write(w, binary.BigEndian, s.channelValueSat); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, s.derivationParams[0]); err != nil {
		return err
	}
	return binary.Write(w, binary.BigEndian, s.derivationParams[1])
}

// DecodeInMemoryChannelSigner reads back the form written by Encode,
// re-deriving local basepoints from the decoded secrets rather than reading
// them off the wire.
func DecodeInMemoryChannelSigner(r io.Reader) (*InMemoryChannelSigner, error) {
	var secretBuf [32]byte
	secrets := make([]*btcec.PrivateKey, 5)
	for i := range secrets {
		if _, err := io.ReadFull(r, secretBuf[:]); err != nil {
			return nil, fmt.Errorf("reading secret %d: %w", i, err)
		}
		secrets[i], _ = btcec.PrivKeyFromBytes(secretBuf[:])
	}

	s := newInMemoryChannelSigner(
		secrets[0], secrets[1], secrets[2], secrets[3], secrets[4],
		[32]byte{}, 0, [2]uint64{},
	)
	if _, err := io.ReadFull(r, s.commitmentSeed[:]); err != nil {
		return nil, fmt.Errorf("reading commitment_seed: %w", err)
	}

	var presence [1]byte
	if _, err := io.ReadFull(r, presence[:]); err != nil {
		return nil, fmt.Errorf("reading remote_basepoints presence: %w", err)
	}
	switch presence[0] {
	case 0x00:
		// Fresh signer, no remote basepoints bound yet.
	case 0x01:
		remote := &ChannelPublicKeys{}
		dests := []**btcec.PublicKey{
			&remote.FundingPubKey, &remote.RevocationBasePoint, &remote.PaymentBasePoint,
			&remote.DelayedPaymentBasePoint, &remote.HtlcBasePoint,
		}
		var pubBuf [33]byte
		for _, dest := range dests {
			if _, err := io.ReadFull(r, pubBuf[:]); err != nil {
				return nil, fmt.Errorf("reading remote basepoint: %w", err)
			}
			pub, err := btcec.ParsePubKey(pubBuf[:])
			if err != nil {
				return nil, fmt.Errorf("%w: remote basepoint: %s", ErrInvalidValue, err)
			}
			*dest = pub
		}
		s.remotePubkeys = remote
	default:
		return nil, fmt.Errorf("%w: remote_basepoints presence byte %d", ErrInvalidValue, presence[0])
	}

	if err := binary.Read(r, binary.BigEndian, &s.channelValueSat); err != nil {
		return nil, fmt.Errorf("reading channel_value_satoshis: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &s.derivationParams[0]); err != nil {
		return nil, fmt.Errorf("reading derivation_params.0: %w", err)
	}
	if err := binary.Read(r, binary.BigEndian, &s.derivationParams[1]); err != nil {
		return nil, fmt.Errorf("reading derivation_params.1: %w", err)
	}

	return s, nil
}

func (s *InMemoryChannelSigner) CommitmentSeed() [32]byte { return s.commitmentSeed }
func (s *InMemoryChannelSigner) Pubkeys() *ChannelPublicKeys { return s.localPubkeys }
func (s *InMemoryChannelSigner) DerivationParams() [2]uint64 { return s.derivationParams }
func (s *InMemoryChannelSigner) ChannelValueSat() uint64 { return s.channelValueSat }

// SetRemoteBasepoints transitions the signer from Fresh to Bound. It is a
// one-shot operation: calling it a second time is a caller logic error and
// is fatal, matching spec invariant I1.
func (s *InMemoryChannelSigner) SetRemoteBasepoints(pubkeys *ChannelPublicKeys) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remotePubkeys != nil {
		panic("lnkeysigner: " + ErrRemoteBasepointsAlreadySet.Error())
	}
	s.remotePubkeys = pubkeys
	return nil
}

func (s *InMemoryChannelSigner) remoteBasepoints() (*ChannelPublicKeys, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.remotePubkeys == nil {
		return nil, ErrMissingRemoteBasepoints
	}
	return s.remotePubkeys, nil
}

// signWitnessScript produces a BIP-143 sighash_all signature over the given
// witness script and input value, matching the teacher's
// RawTxInWitnessSignature + DER-trim idiom (lnwallet/script_utils.go,
// lnd/signer.go in the modern pack).
func signWitnessScript(tx *wire.MsgTx, inputIndex int, amountSat int64,
	witnessScript []byte, privKey *btcec.PrivateKey) (*ecdsa.Signature, error) {

	prevOutFetcher := txscript.NewCannedPrevOutputFetcher(witnessScript, amountSat)
	sigHashes := txscript.NewTxSigHashes(tx, prevOutFetcher)

	rawSig, err := txscript.RawTxInWitnessSignature(
		tx, sigHashes, inputIndex, amountSat, witnessScript,
		txscript.SigHashAll, privKey,
	)
	if err != nil {
		return nil, err
	}

	return ecdsa.ParseDERSignature(rawSig[:len(rawSig)-1])
}

// SignRemoteCommitment signs the remote party's version of the commitment
// transaction, plus every non-dust HTLC it carries.
func (s *InMemoryChannelSigner) SignRemoteCommitment(feeratePerKw uint64,
	commitmentTx *wire.MsgTx, txCreationKeys *TxCreationKeys, htlcs []HTLCDescriptor,
	toSelfDelay uint16) (*ecdsa.Signature, []*ecdsa.Signature, error) {

	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, nil, err
	}

	if len(commitmentTx.TxIn) != 1 {
		return nil, nil, ErrWrongInputCount
	}

	redeemScript, err := genFundingRedeemScript(s.localPubkeys.FundingPubKey, remote.FundingPubKey)
	if err != nil {
		return nil, nil, err
	}
	commitSig, err := signWitnessScript(
		commitmentTx, 0, int64(s.channelValueSat), redeemScript, s.fundingKey,
	)
	if err != nil {
		return nil, nil, err
	}

	// The second-stage HTLC transaction's delayed output belongs to
	// whichever party broadcasts this commitment — the remote party here
	// — so its delayed key is derived from their basepoint. The per-HTLC
	// keys are only derived once a non-dust HTLC needs them.
	var (
		remoteDelayedPubkey *btcec.PublicKey
		htlcKey             *btcec.PrivateKey
	)

	jobs := make([]func() (*ecdsa.Signature, error), 0, len(htlcs))

	for i := range htlcs {
		htlc := htlcs[i]
		if htlc.OutputIndex == nil {
			continue
		}
		if htlcKey == nil {
			remoteDelayedPubkey = DerivePublicKey(txCreationKeys.PerCommitmentPoint, remote.DelayedPaymentBasePoint)
			htlcKey = DerivePrivateKey(s.htlcBaseKey, txCreationKeys.PerCommitmentPoint)
		}
		outIdx := uint32(*htlc.OutputIndex)

		jobs = append(jobs, func() (*ecdsa.Signature, error) {
			htlcTx, err := buildHTLCTransaction(
				chainhash.HashH(mustSerialize(commitmentTx)), outIdx,
				feeratePerKw, uint32(toSelfDelay), htlc.amountSat(), htlc.CLTVExpiry,
				htlc.Offered, remoteDelayedPubkey, txCreationKeys.RevocationPubkey,
			)
			if err != nil {
				return nil, err
			}

			var redeemScript []byte
			if htlc.Offered {
				redeemScript, err = offeredHTLCScript(
					txCreationKeys.RevocationPubkey, txCreationKeys.LocalHtlcPubkey,
					txCreationKeys.RemoteHtlcPubkey, htlc.PaymentHash160,
				)
			} else {
				redeemScript, err = receivedHTLCScript(
					htlc.CLTVExpiry, txCreationKeys.RevocationPubkey,
					txCreationKeys.LocalHtlcPubkey, txCreationKeys.RemoteHtlcPubkey,
					htlc.PaymentHash160,
				)
			}
			if err != nil {
				return nil, err
			}
			return signWitnessScript(htlcTx, 0, htlc.amountSat(), redeemScript, htlcKey)
		})
	}

	htlcSigs, err := runSignJobs(s.Pool, jobs)
	if err != nil {
		return nil, nil, err
	}

	return commitSig, htlcSigs, nil
}

// runSignJobs executes jobs on the shared pool when one is configured,
// falling back to a plain sequential loop otherwise.
func runSignJobs(pool *sigpool.Pool, jobs []func() (*ecdsa.Signature, error)) ([]*ecdsa.Signature, error) {
	if pool != nil {
		return pool.Submit(jobs)
	}

	out := make([]*ecdsa.Signature, len(jobs))
	for i, job := range jobs {
		sig, err := job()
		if err != nil {
			return nil, err
		}
		out[i] = sig
	}
	return out, nil
}

// SignLocalCommitment signs the local commitment transaction. It is
// idempotent for repeat calls with a byte-identical transaction, and
// rejects any later call with a materially different transaction once it
// has signed once (the optional "LocalCommitmentSigned" hardening spec.md
// §4.2.2/§9 recommends).
func (s *InMemoryChannelSigner) SignLocalCommitment(localCommitmentTx *wire.MsgTx) (*ecdsa.Signature, error) {
	var buf bytes.Buffer
	if err := localCommitmentTx.Serialize(&buf); err != nil {
		return nil, err
	}
	txHash := chainhash.HashH(buf.Bytes())

	s.mu.Lock()
	if s.localCommitmentSigned {
		if txHash == s.localCommitmentTxHash {
			sig := s.localCommitmentSig
			s.mu.Unlock()
			return sig, nil
		}
		s.mu.Unlock()
		return nil, ErrCommitmentAlreadySigned
	}
	s.mu.Unlock()

	sig, err := s.UnsafeSignLocalCommitment(localCommitmentTx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.localCommitmentSigned = true
	s.localCommitmentTxHash = txHash
	s.localCommitmentSig = sig
	s.mu.Unlock()

	return sig, nil
}

// UnsafeSignLocalCommitment signs the local commitment transaction with no
// one-shot restriction. Reserved for tests and recovery tooling; production
// channel logic must call SignLocalCommitment instead.
func (s *InMemoryChannelSigner) UnsafeSignLocalCommitment(localCommitmentTx *wire.MsgTx) (*ecdsa.Signature, error) {
	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, err
	}
	if len(localCommitmentTx.TxIn) != 1 {
		return nil, ErrWrongInputCount
	}

	redeemScript, err := genFundingRedeemScript(s.localPubkeys.FundingPubKey, remote.FundingPubKey)
	if err != nil {
		return nil, err
	}
	return signWitnessScript(localCommitmentTx, 0, int64(s.channelValueSat), redeemScript, s.fundingKey)
}

// SignLocalCommitmentHTLCTransactions signs the second-stage HTLC
// transactions spending the local commitment's HTLC outputs. May be called
// multiple times with distinct commitment transactions (e.g. asymmetric
// watchtower behavior); the caller must never invoke this with a
// known-revoked commitment transaction.
func (s *InMemoryChannelSigner) SignLocalCommitmentHTLCTransactions(localCommitmentTx *wire.MsgTx,
	perCommitmentPoint *btcec.PublicKey, htlcs []HTLCDescriptor, localCSV uint16) ([]*ecdsa.Signature, error) {

	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, err
	}

	delayedPubkey := DerivePublicKey(perCommitmentPoint, s.localPubkeys.DelayedPaymentBasePoint)
	revocationPubkey := DeriveRevocationPubkey(remote.RevocationBasePoint, perCommitmentPoint)
	localHtlcPubkey := DerivePublicKey(perCommitmentPoint, s.localPubkeys.HtlcBasePoint)
	remoteHtlcPubkey := DerivePublicKey(perCommitmentPoint, remote.HtlcBasePoint)
	htlcKey := DerivePrivateKey(s.htlcBaseKey, perCommitmentPoint)

	out := make([]*ecdsa.Signature, len(htlcs))

	jobs := make([]func() (*ecdsa.Signature, error), 0, len(htlcs))
	positions := make([]int, 0, len(htlcs))

	for i := range htlcs {
		htlc := htlcs[i]
		if htlc.OutputIndex == nil {
			continue
		}
		outIdx := int(*htlc.OutputIndex)
		pos := i

		jobs = append(jobs, func() (*ecdsa.Signature, error) {
			htlcTx, err := buildHTLCTransaction(
				chainhash.HashH(mustSerialize(localCommitmentTx)), uint32(outIdx),
				0, uint32(localCSV), htlc.amountSat(), htlc.CLTVExpiry, htlc.Offered,
				delayedPubkey, revocationPubkey,
			)
			if err != nil {
				return nil, err
			}

			var redeemScript []byte
			if htlc.Offered {
				redeemScript, err = offeredHTLCScript(
					revocationPubkey, localHtlcPubkey, remoteHtlcPubkey, htlc.PaymentHash160,
				)
			} else {
				redeemScript, err = receivedHTLCScript(
					htlc.CLTVExpiry, revocationPubkey, localHtlcPubkey, remoteHtlcPubkey,
					htlc.PaymentHash160,
				)
			}
			if err != nil {
				return nil, err
			}

			return signWitnessScript(htlcTx, 0, htlc.amountSat(), redeemScript, htlcKey)
		})
		positions = append(positions, pos)
	}

	sigs, err := runSignJobs(s.Pool, jobs)
	if err != nil {
		return nil, err
	}
	for i, pos := range positions {
		out[pos] = sigs[i]
	}

	return out, nil
}

// SignJusticeTransaction signs the punishment spend of a single revoked
// output, given the revealed per-commitment secret.
func (s *InMemoryChannelSigner) SignJusticeTransaction(justiceTx *wire.MsgTx, inputIndex int,
	amount int64, perCommitmentSecret *btcec.PrivateKey, htlc *HTLCDescriptor,
	onRemoteTxCSV uint16) (*ecdsa.Signature, error) {

	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, err
	}

	revocationKey := DeriveRevocationPrivKey(s.revocationBaseKey, perCommitmentSecret)
	perCommitmentPoint := perCommitmentSecret.PubKey()

	var redeemScript []byte
	if htlc != nil {
		remoteHtlcPubkey := DerivePublicKey(perCommitmentPoint, remote.HtlcBasePoint)
		localHtlcPubkey := DerivePublicKey(perCommitmentPoint, s.localPubkeys.HtlcBasePoint)
		revocationPubkey := revocationKey.PubKey()

		if htlc.Offered {
			redeemScript, err = offeredHTLCScript(
				revocationPubkey, localHtlcPubkey, remoteHtlcPubkey, htlc.PaymentHash160,
			)
		} else {
			redeemScript, err = receivedHTLCScript(
				htlc.CLTVExpiry, revocationPubkey, localHtlcPubkey, remoteHtlcPubkey,
				htlc.PaymentHash160,
			)
		}
	} else {
		remoteDelayedPubkey := DerivePublicKey(perCommitmentPoint, remote.DelayedPaymentBasePoint)
		redeemScript, err = commitScriptToSelf(uint32(onRemoteTxCSV), remoteDelayedPubkey, revocationKey.PubKey())
	}
	if err != nil {
		return nil, err
	}

	return signWitnessScript(justiceTx, inputIndex, amount, redeemScript, revocationKey)
}

// SignRemoteHTLCTransaction signs a transaction claiming an HTLC output
// from the remote party's commitment transaction (an HTLC-success or
// HTLC-timeout transaction the remote party broadcast, or the justice-like
// penalty branch of it).
func (s *InMemoryChannelSigner) SignRemoteHTLCTransaction(htlcTx *wire.MsgTx, inputIndex int,
	amount int64, perCommitmentPoint *btcec.PublicKey, htlc *HTLCDescriptor) (*ecdsa.Signature, error) {

	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, err
	}

	htlcKey := DerivePrivateKey(s.htlcBaseKey, perCommitmentPoint)
	localHtlcPubkey := htlcKey.PubKey()
	remoteHtlcPubkey := DerivePublicKey(perCommitmentPoint, remote.HtlcBasePoint)
	revocationPubkey := DeriveRevocationPubkey(s.localPubkeys.RevocationBasePoint, perCommitmentPoint)

	var redeemScript []byte
	if htlc.Offered {
		redeemScript, err = offeredHTLCScript(
			revocationPubkey, localHtlcPubkey, remoteHtlcPubkey, htlc.PaymentHash160,
		)
	} else {
		redeemScript, err = receivedHTLCScript(
			htlc.CLTVExpiry, revocationPubkey, localHtlcPubkey, remoteHtlcPubkey, htlc.PaymentHash160,
		)
	}
	if err != nil {
		return nil, err
	}

	return signWitnessScript(htlcTx, inputIndex, amount, redeemScript, htlcKey)
}

// SignClosingTransaction signs a cooperative close transaction after
// validating its structural shape.
func (s *InMemoryChannelSigner) SignClosingTransaction(closingTx *wire.MsgTx) (*ecdsa.Signature, error) {
	remote, err := s.remoteBasepoints()
	if err != nil {
		return nil, err
	}

	if len(closingTx.TxIn) != 1 {
		return nil, ErrWrongInputCount
	}
	if len(closingTx.TxIn[0].Witness) != 0 {
		return nil, ErrClosingWitnessNotEmpty
	}
	if len(closingTx.TxOut) > 2 {
		return nil, ErrTooManyClosingOutputs
	}

	redeemScript, err := genFundingRedeemScript(s.localPubkeys.FundingPubKey, remote.FundingPubKey)
	if err != nil {
		return nil, err
	}
	return signWitnessScript(closingTx, 0, int64(s.channelValueSat), redeemScript, s.fundingKey)
}

// SignChannelAnnouncement signs SHA256d(announcement) with the funding key,
// certifying the channel's existence for gossip.
func (s *InMemoryChannelSigner) SignChannelAnnouncement(unsignedAnnouncement []byte) (*ecdsa.Signature, error) {
	digest := chainhash.DoubleHashB(unsignedAnnouncement)
	return ecdsa.Sign(s.fundingKey, digest), nil
}

// SignDelayedPaymentToUs implements the wallet-side spend of a
// DynamicOutputP2WSH descriptor: the key is the delayed payment base key
// tweaked by the per-commitment point the descriptor carries.
func (s *InMemoryChannelSigner) SignDelayedPaymentToUs(perCommitmentPoint *btcec.PublicKey,
	tx *wire.MsgTx, inputIndex int, amount int64, witnessScript []byte) (*ecdsa.Signature, error) {

	delayedKey := DerivePrivateKey(s.delayedPaymentBaseKey, perCommitmentPoint)
	return signWitnessScript(tx, inputIndex, amount, witnessScript, delayedKey)
}

// SignPaymentToUs implements the wallet-side spend of a
// StaticOutputRemotePayment descriptor with the untweaked payment key.
func (s *InMemoryChannelSigner) SignPaymentToUs(tx *wire.MsgTx, inputIndex int,
	amount int64, witnessScript []byte) (*ecdsa.Signature, error) {

	return signWitnessScript(tx, inputIndex, amount, witnessScript, s.paymentKey)
}

func mustSerialize(tx *wire.MsgTx) []byte {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		panic("lnkeysigner: unable to serialize transaction: " + err.Error())
	}
	return buf.Bytes()
}
