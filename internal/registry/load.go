package registry

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	clierr "github.com/ggonzalez94/defi-sentinel/internal/errors"
)

//go:embed data/*.json
var defaultData embed.FS

const (
	TokensFile       = "tokens.json"
	ProtocolsFile    = "protocols.json"
	DependenciesFile = "dependency_graph.json"
	BalancesFile     = "user_balances.json"
)

// Default returns the registry built from the embedded datasets.
func Default() (*Registry, error) {
	return Load("")
}

// Load reads the four datasets from dir. Any file missing from dir falls
// back to the embedded default.
func Load(dir string) (*Registry, error) {
	var data Data
	if err := readDataset(dir, TokensFile, &data.Tokens); err != nil {
		return nil, err
	}
	if err := readDataset(dir, ProtocolsFile, &data.Protocols); err != nil {
		return nil, err
	}
	if err := readDataset(dir, DependenciesFile, &data.Dependencies); err != nil {
		return nil, err
	}
	var balances balanceFile
	if err := readDataset(dir, BalancesFile, &balances); err != nil {
		return nil, err
	}
	data.Holdings = balances.holdings()
	return New(data), nil
}

func readDataset(dir, name string, dst any) error {
	var (
		buf []byte
		err error
	)
	if strings.TrimSpace(dir) != "" {
		buf, err = os.ReadFile(filepath.Join(dir, name))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("read registry file %s", name), err)
		}
	}
	if len(buf) == 0 {
		buf, err = defaultData.ReadFile("data/" + name)
		if err != nil {
			return clierr.Wrap(clierr.CodeInternal, fmt.Sprintf("read embedded registry file %s", name), err)
		}
	}
	if err := json.Unmarshal(buf, dst); err != nil {
		return clierr.Wrap(clierr.CodeUsage, fmt.Sprintf("parse registry file %s", name), err)
	}
	return nil
}

// UnmarshalJSON keeps the chains object in document order.
func (p *Protocol) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name   string          `json:"name"`
		Chains json.RawMessage `json:"chains"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.Name = raw.Name
	p.Chains = nil
	if len(bytes.TrimSpace(raw.Chains)) == 0 || string(bytes.TrimSpace(raw.Chains)) == "null" {
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw.Chains))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("protocol %s: chains must be an object", raw.Name)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("protocol %s: invalid chain key", raw.Name)
		}
		var cfg ChainConfig
		if err := dec.Decode(&cfg); err != nil {
			return fmt.Errorf("protocol %s chain %s: %w", raw.Name, key, err)
		}
		p.Chains = append(p.Chains, ProtocolChain{ChainID: key, Config: cfg})
	}
	_, err = dec.Token()
	return err
}

func (p Protocol) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"name":`)
	name, err := json.Marshal(p.Name)
	if err != nil {
		return nil, err
	}
	buf.Write(name)
	buf.WriteString(`,"chains":{`)
	for i, chain := range p.Chains {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, _ := json.Marshal(chain.ChainID)
		buf.Write(key)
		buf.WriteByte(':')
		cfg, err := json.Marshal(chain.Config)
		if err != nil {
			return nil, err
		}
		buf.Write(cfg)
	}
	buf.WriteString("}}")
	return buf.Bytes(), nil
}

// looseString accepts JSON strings and numbers.
type looseString string

func (s *looseString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}
	if data[0] == '"' {
		var v string
		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}
		*s = looseString(v)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*s = looseString(n.String())
	return nil
}

func (e *DependencyEdge) UnmarshalJSON(data []byte) error {
	var raw struct {
		DerivativeSymbol string         `json:"derivativeSymbol"`
		ChainID          looseString    `json:"chainId"`
		Protocol         string         `json:"protocol"`
		Underlyings      []Underlying   `json:"underlyings"`
		ExitFunctions    []ExitFunction `json:"exitFunctions"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*e = DependencyEdge{
		DerivativeSymbol: raw.DerivativeSymbol,
		ChainID:          string(raw.ChainID),
		Protocol:         raw.Protocol,
		Underlyings:      raw.Underlyings,
		ExitFunctions:    raw.ExitFunctions,
	}
	return nil
}

func (u *Underlying) UnmarshalJSON(data []byte) error {
	var raw struct {
		Symbol string      `json:"symbol"`
		Ratio  looseString `json:"ratio"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	u.Symbol = raw.Symbol
	u.Ratio = string(raw.Ratio)
	return nil
}

type rawPosition struct {
	Symbol    string      `json:"symbol"`
	TokenID   looseString `json:"tokenId"`
	Shares    looseString `json:"shares"`
	Liquidity looseString `json:"liquidity"`
}

// balanceFile is address -> chainId -> {symbol: amount, "positions": [...]}.
type balanceFile map[string]map[string]map[string]json.RawMessage

func (b balanceFile) holdings() []Holding {
	owners := make([]string, 0, len(b))
	for owner := range b {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var out []Holding
	for _, owner := range owners {
		chains := b[owner]
		chainIDs := make([]string, 0, len(chains))
		for chainID := range chains {
			chainIDs = append(chainIDs, chainID)
		}
		sort.Strings(chainIDs)
		for _, chainID := range chainIDs {
			holding := Holding{Owner: owner, ChainID: chainID, Balances: map[string]string{}}
			for key, value := range chains[chainID] {
				if key == "positions" {
					var positions []rawPosition
					if err := json.Unmarshal(value, &positions); err != nil {
						continue
					}
					for _, pos := range positions {
						holding.Positions = append(holding.Positions, UserPosition{
							Address:   owner,
							ChainID:   chainID,
							Symbol:    pos.Symbol,
							TokenID:   string(pos.TokenID),
							Shares:    string(pos.Shares),
							Liquidity: string(pos.Liquidity),
						})
					}
					continue
				}
				var amount looseString
				if err := json.Unmarshal(value, &amount); err != nil {
					continue
				}
				holding.Balances[key] = normalizeAmount(string(amount))
			}
			out = append(out, holding)
		}
	}
	return out
}

func normalizeAmount(v string) string {
	if !strings.ContainsAny(v, "eE") {
		return v
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return v
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
