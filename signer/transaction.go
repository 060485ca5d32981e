package signer

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"

	gwtypes "github.com/ethgate/gateway/types"
)

// Transaction is the unsigned body of a legacy (pre-EIP-155) transaction.
// Nonce and GasPrice are seeded by the caller (the signer-proxy pipeline),
// everything else is fixed for the lifetime of a signing request.
type Transaction struct {
	Nonce    uint64
	GasPrice *gwtypes.BigInt
	GasLimit uint64
	To       *common.Address // nil for contract creation
	Value    *gwtypes.BigInt
	Data     []byte
}

// Seed fills in the nonce and gas price determined by the transaction
// pipeline's caches, returning a copy ready for signing.
func (tx Transaction) Seed(nonce uint64, gasPrice *gwtypes.BigInt) Transaction {
	tx.Nonce = nonce
	tx.GasPrice = gasPrice
	return tx
}

// Sign produces the RLP-encoded, Homestead-signed (non-EIP-155) raw
// transaction bytes and the resulting transaction hash.
func (tx Transaction) Sign(privKey *ecdsa.PrivateKey) (raw []byte, hash common.Hash, err error) {
	gasPrice := bigIntOrZero(tx.GasPrice)
	value := bigIntOrZero(tx.Value)

	legacy := &ethtypes.LegacyTx{
		Nonce:    tx.Nonce,
		GasPrice: gasPrice,
		Gas:      tx.GasLimit,
		To:       tx.To,
		Value:    value,
		Data:     tx.Data,
	}

	signed, err := ethtypes.SignTx(ethtypes.NewTx(legacy), ethtypes.HomesteadSigner{}, privKey)
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("sign transaction: %w", err)
	}

	raw, err = signed.MarshalBinary()
	if err != nil {
		return nil, common.Hash{}, fmt.Errorf("encode signed transaction: %w", err)
	}
	return raw, signed.Hash(), nil
}

func bigIntOrZero(b *gwtypes.BigInt) *big.Int {
	if b == nil {
		return big.NewInt(0)
	}
	return b.MathBigInt()
}
