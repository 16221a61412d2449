package ethutil

import (
	"crypto/ecdsa"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// ParsePrivateKey decodes the hex-encoded signer key from configuration.
func ParsePrivateKey(hexKey string) (*ecdsa.PrivateKey, error) {
	return ethcrypto.HexToECDSA(hexKey)
}

func PrivateKeyAddress(key *ecdsa.PrivateKey) common.Address {
	return ethcrypto.PubkeyToAddress(key.PublicKey)
}

func PublicKeyBytesToAddress(pubKey []byte) common.Address {
	return common.BytesToAddress(ethcrypto.Keccak256(pubKey[1:])[12:])
}

// SignerForChain returns the transaction signer for the given chain id. All
// supported networks are post-London; EIP-155 remains for legacy gas mode.
func SignerForChain(chainID *big.Int, useEip1559 bool) ethtypes.Signer {
	if useEip1559 {
		return ethtypes.NewLondonSigner(chainID)
	}

	return ethtypes.NewEIP155Signer(chainID)
}
