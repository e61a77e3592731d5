package app

import (
	"strings"

	"github.com/spf13/cobra"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
	"github.com/ggonzalez94/defi-sentinel/internal/id"
	"github.com/ggonzalez94/defi-sentinel/internal/model"
	"github.com/ggonzalez94/defi-sentinel/internal/registry"
)

func (s *runtimeState) newRegistryCommand() *cobra.Command {
	root := &cobra.Command{Use: "registry", Short: "Inspect the token, protocol and dependency registry"}

	var tokenSymbol, tokenChain string
	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Resolve a token symbol to its address on a chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID, err := s.chainArg(tokenChain)
			if err != nil {
				return err
			}
			symbol := strings.TrimSpace(tokenSymbol)
			address := s.registry.LookupTokenAddress(symbol, chainID)
			if address == registry.Unknown {
				return clierr.New(clierr.CodeUnresolved, "token "+symbol+" is not registered on chain "+chainID)
			}
			info := model.TokenInfo{
				Symbol:   strings.ToUpper(symbol),
				ChainID:  chainID,
				Address:  address,
				Decimals: s.registry.TokenDecimals(symbol),
			}
			if tok, ok := s.registry.LookupToken(symbol); ok {
				info.Symbol = tok.Symbol
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), info)
		},
	}
	tokenCmd.Flags().StringVar(&tokenSymbol, "symbol", "", "Token symbol")
	tokenCmd.Flags().StringVar(&tokenChain, "chain", "", "Chain id (default: registry default chain)")
	_ = tokenCmd.MarkFlagRequired("symbol")

	var protocolName, protocolChain string
	protocolCmd := &cobra.Command{
		Use:   "protocol",
		Short: "Show protocol contract metadata",
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(protocolName)
			if !s.registry.HasProtocol(name) {
				return clierr.New(clierr.CodeUnresolved, "protocol "+name+" is not registered")
			}
			var rows []model.ProtocolInfo
			for _, p := range s.registry.Protocols() {
				if p.Name != name {
					continue
				}
				for _, chain := range p.Chains {
					if protocolChain != "" && chain.ChainID != strings.TrimSpace(protocolChain) {
						continue
					}
					rows = append(rows, model.ProtocolInfo{Name: p.Name, ChainID: chain.ChainID, Config: chain.Config})
				}
			}
			if len(rows) == 0 {
				return clierr.New(clierr.CodeUnresolved, "protocol "+name+" has no deployment on chain "+protocolChain)
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), rows)
		},
	}
	protocolCmd.Flags().StringVar(&protocolName, "name", "", "Protocol name")
	protocolCmd.Flags().StringVar(&protocolChain, "chain", "", "Restrict to one chain id")
	_ = protocolCmd.MarkFlagRequired("name")

	var depsSymbol string
	depsCmd := &cobra.Command{
		Use:   "deps",
		Short: "List the underlying tokens a derivative token decomposes into",
		RunE: func(cmd *cobra.Command, args []string) error {
			edges := s.registry.LookupDependencies(strings.TrimSpace(depsSymbol))
			if edges == nil {
				edges = []registry.DependencyEdge{}
			}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), edges)
		},
	}
	depsCmd.Flags().StringVar(&depsSymbol, "symbol", "", "Derivative token symbol")
	_ = depsCmd.MarkFlagRequired("symbol")

	defaultChainCmd := &cobra.Command{
		Use:   "default-chain",
		Short: "Show the chain used when an alert names none",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			chainID := s.registry.DefaultChainID()
			source := "registry"
			if len(s.registry.Protocols()) == 0 {
				source = "fallback"
			}
			info := model.ChainInfo{ChainID: chainID, Name: id.LookupChain(chainID).Name, Source: source}
			return s.emitSuccess(trimRootPath(cmd.CommandPath()), info)
		},
	}

	root.AddCommand(tokenCmd)
	root.AddCommand(protocolCmd)
	root.AddCommand(depsCmd)
	root.AddCommand(defaultChainCmd)
	return root
}

func (s *runtimeState) chainArg(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return s.registry.DefaultChainID(), nil
	}
	if _, err := id.ParseChainID(raw); err != nil {
		return "", err
	}
	return raw, nil
}
