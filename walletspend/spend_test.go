package walletspend_test

import (
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/lightninglabs/lnkeysigner/keychain"
	"github.com/lightninglabs/lnkeysigner/walletspend"
)

func testKeyRoot(t *testing.T) *keychain.KeyRoot {
	t.Helper()
	var seed [32]byte
	for i := range seed {
		seed[i] = byte(i + 1)
	}
	return keychain.NewKeyRoot(seed, &chaincfg.MainNetParams, 0, 0)
}

func TestBuildSpendStaticOutputRemotePayment(t *testing.T) {
	root := testKeyRoot(t)
	signer := root.DeriveChannelKeys(1_000_000, 0x00000001_00000000, 0)

	destScript := root.GetDestinationScript()

	desc := &keychain.StaticOutputRemotePayment{
		OutPoint: wire.OutPoint{Index: 0},
		Output: wire.TxOut{
			Value:    50_000,
			PkScript: destScript,
		},
		DerivationParams: signer.DerivationParams(),
	}

	tx, err := walletspend.BuildSpend(desc, signer, 500, destScript)
	require.NoError(t, err)
	require.Len(t, tx.TxIn, 1)
	require.Len(t, tx.TxOut, 1)
	require.Equal(t, int64(49_500), tx.TxOut[0].Value)
	require.Len(t, tx.TxIn[0].Witness, 2)
}

func TestBuildSpendDynamicOutputP2WSH(t *testing.T) {
	root := testKeyRoot(t)
	signer := root.DeriveChannelKeys(1_000_000, 0x00000002_00000000, 0)

	remotePriv, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	signer.SetRemoteBasepoints(&keychain.ChannelPublicKeys{
		FundingPubKey:           remotePriv.PubKey(),
		RevocationBasePoint:     remotePriv.PubKey(),
		PaymentBasePoint:        remotePriv.PubKey(),
		DelayedPaymentBasePoint: remotePriv.PubKey(),
		HtlcBasePoint:           remotePriv.PubKey(),
	})

	perCommitmentSecret, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	perCommitmentPoint := perCommitmentSecret.PubKey()

	revocationPubkey := keychain.DeriveRevocationPubkey(remotePriv.PubKey(), perCommitmentPoint)

	desc := &keychain.DynamicOutputP2WSH{
		OutPoint:               wire.OutPoint{Index: 1},
		PerCommitmentPoint:     perCommitmentPoint,
		ToSelfDelay:            144,
		Output:                 wire.TxOut{Value: 100_000, PkScript: []byte{0}},
		DerivationParams:       signer.DerivationParams(),
		RemoteRevocationPubkey: revocationPubkey,
	}

	destScript := root.GetDestinationScript()
	tx, err := walletspend.BuildSpend(desc, signer, 1000, destScript)
	require.NoError(t, err)
	require.Equal(t, uint32(144), tx.TxIn[0].Sequence)
	require.Len(t, tx.TxIn[0].Witness, 3)
}

func TestBuildSpendFeeExceedsValue(t *testing.T) {
	root := testKeyRoot(t)
	signer := root.DeriveChannelKeys(1_000_000, 0x00000003_00000000, 0)

	desc := &keychain.StaticOutputRemotePayment{
		OutPoint:         wire.OutPoint{Index: 0},
		Output:           wire.TxOut{Value: 100, PkScript: []byte{0}},
		DerivationParams: signer.DerivationParams(),
	}

	_, err := walletspend.BuildSpend(desc, signer, 1000, root.GetDestinationScript())
	require.Error(t, err)
}
