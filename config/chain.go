package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// NativeCurrency describes the chain's native token.
type NativeCurrency struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	Decimals int    `yaml:"decimals"`
}

// ChainConfig is the fixed identity of a target network: everything a wallet
// needs to recognize the chain or to add it when it is unknown.
type ChainConfig struct {
	ChainID           uint64         `yaml:"chainId"`
	ChainIDHex        string         `yaml:"chainIdHex"`
	Name              string         `yaml:"chainName"`
	NativeCurrency    NativeCurrency `yaml:"nativeCurrency"`
	RPCURLs           []string       `yaml:"rpcUrls"`
	BlockExplorerURLs []string       `yaml:"blockExplorerUrls"`
}

// NeuraTestnet is the deployment target of the pixel canvas contract.
var NeuraTestnet = ChainConfig{
	ChainID:    267,
	ChainIDHex: "0x10b",
	Name:       "Neura Testnet",
	NativeCurrency: NativeCurrency{
		Name:     "ANKR",
		Symbol:   "ANKR",
		Decimals: 18,
	},
	RPCURLs:           []string{"https://rpc.ankr.com/neura_testnet"},
	BlockExplorerURLs: []string{"https://explorer.neura.network"},
}

// ExplorerTxURL returns the explorer page for a transaction hash, or an empty
// string when the chain has no explorer configured.
func (c *ChainConfig) ExplorerTxURL(txHash string) string {
	if len(c.BlockExplorerURLs) == 0 {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", c.BlockExplorerURLs[0], txHash)
}

// LoadChain reads a chain definition from a yaml file. Missing file or fields
// are an error, there are no partial chain identities.
func LoadChain(path string) (*ChainConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chain ChainConfig
	if err := yaml.Unmarshal(data, &chain); err != nil {
		return nil, err
	}
	if chain.ChainID == 0 || len(chain.RPCURLs) == 0 {
		return nil, fmt.Errorf("incomplete chain definition in %s", path)
	}
	return &chain, nil
}
