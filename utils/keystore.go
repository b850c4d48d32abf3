package utils

import (
	"crypto/ecdsa"
	"math/big"
	"os"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
)

// GetPrivateKeyFromKeystore decrypts a go-ethereum keystore file.
func GetPrivateKeyFromKeystore(path string, password string) (*ecdsa.PrivateKey, error) {
	ksBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	key, err := keystore.DecryptKey(ksBytes, password)
	if err != nil {
		return nil, err
	}
	return key.PrivateKey, nil
}

// GetAuthFromKeystore builds EIP-155 transact opts from a keystore file.
func GetAuthFromKeystore(path string, password string, chainID *big.Int) (*bind.TransactOpts, error) {
	privateKey, err := GetPrivateKeyFromKeystore(path, password)
	if err != nil {
		return nil, err
	}
	return bind.NewKeyedTransactorWithChainID(privateKey, chainID)
}
