// Package chainutil holds small numeric helpers shared by the node-API
// block/log streams and the signer-proxy's nonce/price caches.
package chainutil

import "math/big"

// maxUint256 is the largest value representable in 256 bits.
var maxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Increment256 returns x+1, panicking if the result would overflow 256
// bits. Block numbers, nonces and gas prices are all modeled as unsigned
// 256-bit integers, and a rollover in any of them indicates a wildly
// corrupted cache rather than a condition to recover from.
func Increment256(x *big.Int) *big.Int {
	sum := new(big.Int).Add(x, big.NewInt(1))
	if sum.Cmp(maxUint256) > 0 {
		panic("256-bit integer overflow during increment")
	}
	return sum
}
