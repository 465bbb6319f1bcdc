package keychain_test

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/lnkeysigner/keychain"
)

func roundTrip(t *testing.T, desc keychain.SpendableOutputDescriptor) keychain.SpendableOutputDescriptor {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, desc.Encode(&buf))

	decoded, err := keychain.DecodeSpendableOutputDescriptor(&buf)
	require.NoError(t, err)
	return decoded
}

func TestStaticOutputRoundTrip(t *testing.T) {
	desc := &keychain.StaticOutput{
		OutPoint: wire.OutPoint{Index: 3},
		Output:   wire.TxOut{Value: 12345, PkScript: []byte{0, 20, 1, 2, 3}},
	}

	decoded := roundTrip(t, desc)
	got, ok := decoded.(*keychain.StaticOutput)
	require.True(t, ok)
	require.Equal(t, desc.OutPoint, got.Outpoint())
	require.Equal(t, desc.Output.Value, got.TxOut().Value)
	require.Equal(t, desc.Output.PkScript, got.TxOut().PkScript)
}

func TestDynamicOutputP2WSHRoundTrip(t *testing.T) {
	priv, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	desc := &keychain.DynamicOutputP2WSH{
		OutPoint:               wire.OutPoint{Index: 1},
		PerCommitmentPoint:     priv.PubKey(),
		ToSelfDelay:            144,
		Output:                 wire.TxOut{Value: 50_000, PkScript: []byte{0, 32}},
		DerivationParams:       [2]uint64{7, 9},
		RemoteRevocationPubkey: priv.PubKey(),
	}

	decoded := roundTrip(t, desc)
	got, ok := decoded.(*keychain.DynamicOutputP2WSH)
	require.True(t, ok)
	require.True(t, desc.PerCommitmentPoint.IsEqual(got.PerCommitmentPoint))
	require.Equal(t, desc.ToSelfDelay, got.ToSelfDelay)
	require.Equal(t, desc.DerivationParams, got.DerivationParams)
	require.True(t, desc.RemoteRevocationPubkey.IsEqual(got.RemoteRevocationPubkey))
}

func TestStaticOutputRemotePaymentRoundTrip(t *testing.T) {
	desc := &keychain.StaticOutputRemotePayment{
		OutPoint:         wire.OutPoint{Index: 2},
		Output:           wire.TxOut{Value: 77_777, PkScript: []byte{0, 20}},
		DerivationParams: [2]uint64{100, 200},
	}

	decoded := roundTrip(t, desc)
	got, ok := decoded.(*keychain.StaticOutputRemotePayment)
	require.True(t, ok)
	require.Equal(t, desc.DerivationParams, got.DerivationParams)
	require.Equal(t, desc.Output.Value, got.TxOut().Value)
}

func TestDecodeUnknownTagFails(t *testing.T) {
	buf := bytes.NewBuffer([]byte{99})
	_, err := keychain.DecodeSpendableOutputDescriptor(buf)
	require.ErrorIs(t, err, keychain.ErrInvalidValue)
}
