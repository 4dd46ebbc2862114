package contracts

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Name identifies one of the deployed TrustPay contracts.
type Name string

const (
	SPAYToken         Name = "SPAYStablecoin"
	ETFToken          Name = "ETFToken"
	PayrollProcessor  Name = "PayrollProcessor"
	CollateralManager Name = "CollateralManager"
	InvestmentManager Name = "InvestmentManager"
	SavingsManager    Name = "SavingsManager"
	RoleManager       Name = "RoleManager"
)

// Names lists every contract in the order handles are built.
var Names = []Name{
	SPAYToken, ETFToken, PayrollProcessor, CollateralManager,
	InvestmentManager, SavingsManager, RoleManager,
}

var (
	//go:embed abis/SPAYStablecoin.json
	SPAYStablecoinABI []byte
	//go:embed abis/ETFToken.json
	ETFTokenABI []byte
	//go:embed abis/PayrollProcessor.json
	PayrollProcessorABI []byte
	//go:embed abis/CollateralManager.json
	CollateralManagerABI []byte
	//go:embed abis/InvestmentManager.json
	InvestmentManagerABI []byte
	//go:embed abis/SavingsManager.json
	SavingsManagerABI []byte
	//go:embed abis/RoleManager.json
	RoleManagerABI []byte
)

var rawABIs = map[Name][]byte{
	SPAYToken:         SPAYStablecoinABI,
	ETFToken:          ETFTokenABI,
	PayrollProcessor:  PayrollProcessorABI,
	CollateralManager: CollateralManagerABI,
	InvestmentManager: InvestmentManagerABI,
	SavingsManager:    SavingsManagerABI,
	RoleManager:       RoleManagerABI,
}

// ParseABIs parses the embedded interface definition of every contract.
func ParseABIs() (map[Name]abi.ABI, error) {
	return parseABIs(rawABIs)
}

func parseABIs(raw map[Name][]byte) (map[Name]abi.ABI, error) {
	parsed := make(map[Name]abi.ABI, len(Names))
	for _, name := range Names {
		blob, ok := raw[name]
		if !ok || len(blob) == 0 {
			return nil, fmt.Errorf("%w: missing abi for %s", ErrInitialization, name)
		}
		a, err := abi.JSON(strings.NewReader(string(blob)))
		if err != nil {
			return nil, fmt.Errorf("%w: parse %s abi: %v", ErrInitialization, name, err)
		}
		parsed[name] = a
	}
	return parsed, nil
}
