package registry

import "strings"

// Block-explorer transaction URL templates by chain id. "{}" is replaced by
// the transaction hash.
var explorerTxTemplateByChainID = map[string]string{
	"1":        "https://etherscan.io/tx/{}",
	"10":       "https://optimistic.etherscan.io/tx/{}",
	"56":       "https://bscscan.com/tx/{}",
	"137":      "https://polygonscan.com/tx/{}",
	"8453":     "https://basescan.org/tx/{}",
	"42161":    "https://arbiscan.io/tx/{}",
	"43114":    "https://snowtrace.io/tx/{}",
	"84532":    "https://sepolia.basescan.org/tx/{}",
	"11155111": "https://sepolia.etherscan.io/tx/{}",
}

func ExplorerTxTemplate(chainID string) (string, bool) {
	tpl, ok := explorerTxTemplateByChainID[strings.TrimSpace(chainID)]
	return tpl, ok
}

// ExplorerTxURL renders the explorer link for hash on chainID.
func ExplorerTxURL(chainID, hash string) (string, bool) {
	tpl, ok := ExplorerTxTemplate(chainID)
	if !ok || strings.TrimSpace(hash) == "" {
		return "", false
	}
	return strings.Replace(tpl, "{}", hash, 1), true
}
