package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/viper"
)

const envPrefix = "TRUSTPAY"

// NativeCurrency describes the gas token of the target network.
type NativeCurrency struct {
	Name     string `mapstructure:"name" json:"name"`
	Symbol   string `mapstructure:"symbol" json:"symbol"`
	Decimals int    `mapstructure:"decimals" json:"decimals"`
}

// ChainConfig is the static description of the network the wallet must be on.
type ChainConfig struct {
	ID               uint64         `mapstructure:"id" json:"id"`
	Name             string         `mapstructure:"name" json:"name"`
	NativeCurrency   NativeCurrency `mapstructure:"native_currency" json:"nativeCurrency"`
	RPCURLs          []string       `mapstructure:"rpc_urls" json:"rpcUrls"`
	BlockExplorerURL string         `mapstructure:"block_explorer_url" json:"blockExplorerUrl"`
	Testnet          bool           `mapstructure:"testnet" json:"testnet"`
}

// HexID returns the chain id in the 0x-prefixed form wallets expect.
func (c ChainConfig) HexID() string {
	return hexutil.EncodeUint64(c.ID)
}

// AddressURL links an account or contract on the block explorer.
func (c ChainConfig) AddressURL(address string) string {
	if address == "" || c.BlockExplorerURL == "" {
		return ""
	}
	return strings.TrimRight(c.BlockExplorerURL, "/") + "/address/" + NormalizeAddress(address)
}

// ContractAddresses maps each deployed contract to its address.
type ContractAddresses struct {
	SPAYToken         string `mapstructure:"spay_token" json:"SPAY_TOKEN_CONTRACT"`
	ETFToken          string `mapstructure:"etf_token" json:"ETF_TOKEN_CONTRACT"`
	PayrollProcessor  string `mapstructure:"payroll_processor" json:"PAYROLL_PROCESSOR"`
	CollateralManager string `mapstructure:"collateral_manager" json:"COLLATERAL_MANAGER"`
	InvestmentManager string `mapstructure:"investment_manager" json:"INVESTMENT_MANAGER"`
	SavingsManager    string `mapstructure:"savings_manager" json:"SAVING_MANAGER_CONTRACT"`
	RoleManager       string `mapstructure:"role_manager" json:"ROLE_MANAGER_CONTRACT"`
}

// DeploymentConfig represents deployments.json.
type DeploymentConfig struct {
	ChainID   uint64            `json:"chainId"`
	Contracts ContractAddresses `json:"contracts"`
}

type ServiceConfig struct {
	HTTPPort          int           `mapstructure:"http_port"`
	CookieSecret      string        `mapstructure:"cookie_secret"`
	CookieMaxAge      time.Duration `mapstructure:"cookie_max_age"`
	CookieMaxSkew     time.Duration `mapstructure:"cookie_max_skew"`
	CookieSecure      bool          `mapstructure:"cookie_secure"`
	IdempotencyWindow time.Duration `mapstructure:"idempotency_window"`
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`
	NotificationLimit int           `mapstructure:"notification_limit"`
}

type StoreConfig struct {
	Backend   string `mapstructure:"backend"`
	Path      string `mapstructure:"path"`
	DSN       string `mapstructure:"dsn"`
	RedisAddr string `mapstructure:"redis_addr"`
	// PruneInterval is how often expired records are deleted from file and
	// postgres stores. Zero disables pruning.
	PruneInterval time.Duration `mapstructure:"prune_interval"`
}

type WalletConfig struct {
	RPCURL             string        `mapstructure:"rpc_url"`
	PrivateKey         string        `mapstructure:"private_key"`
	KeystorePath       string        `mapstructure:"keystore_path"`
	KeystorePassphrase string        `mapstructure:"keystore_passphrase"`
	Account            string        `mapstructure:"account"`
	WatchInterval      time.Duration `mapstructure:"watch_interval"`
	ReceiptTimeout     time.Duration `mapstructure:"receipt_timeout"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AppConfig ties together chain, deployment and service settings.
type AppConfig struct {
	Chain           ChainConfig       `mapstructure:"chain"`
	Contracts       ContractAddresses `mapstructure:"contracts"`
	DeploymentsPath string            `mapstructure:"deployments_path"`
	Service         ServiceConfig     `mapstructure:"service"`
	Store           StoreConfig       `mapstructure:"store"`
	Wallet          WalletConfig      `mapstructure:"wallet"`
	Log             LogConfig         `mapstructure:"log"`
}

var ErrChainMismatch = errors.New("deployments chain id does not match configured chain")

// Load aggregates configuration from defaults, an optional config file,
// TRUSTPAY_* environment variables and the deployments file.
func Load(configPath string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if cfg.DeploymentsPath != "" {
		deployCfg, err := loadDeployments(cfg.DeploymentsPath)
		if err != nil {
			return nil, fmt.Errorf("load deployments: %w", err)
		}
		if deployCfg.ChainID != 0 && deployCfg.ChainID != cfg.Chain.ID {
			return nil, fmt.Errorf("%w: %d != %d", ErrChainMismatch, deployCfg.ChainID, cfg.Chain.ID)
		}
		cfg.Contracts = mergeAddresses(cfg.Contracts, deployCfg.Contracts)
	}

	cfg.Contracts = cfg.Contracts.Normalized()
	if err := cfg.Chain.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports the first missing field of the chain descriptor.
func (c ChainConfig) Validate() error {
	if c.ID == 0 {
		return errors.New("chain.id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return errors.New("chain.name is required")
	}
	if len(c.RPCURLs) == 0 {
		return errors.New("chain.rpc_urls requires at least one url")
	}
	return nil
}

// Normalized rewrites every address to the 0x form.
func (a ContractAddresses) Normalized() ContractAddresses {
	return ContractAddresses{
		SPAYToken:         NormalizeAddress(a.SPAYToken),
		ETFToken:          NormalizeAddress(a.ETFToken),
		PayrollProcessor:  NormalizeAddress(a.PayrollProcessor),
		CollateralManager: NormalizeAddress(a.CollateralManager),
		InvestmentManager: NormalizeAddress(a.InvestmentManager),
		SavingsManager:    NormalizeAddress(a.SavingsManager),
		RoleManager:       NormalizeAddress(a.RoleManager),
	}
}

// NormalizeAddress converts network-prefixed addresses (xdc...) to 0x form.
// Anything else is returned trimmed and otherwise untouched.
func NormalizeAddress(address string) string {
	address = strings.TrimSpace(address)
	if len(address) > 3 && strings.EqualFold(address[:3], "xdc") {
		return "0x" + address[3:]
	}
	return address
}

func mergeAddresses(base, override ContractAddresses) ContractAddresses {
	pick := func(current, next string) string {
		if strings.TrimSpace(next) != "" {
			return next
		}
		return current
	}
	return ContractAddresses{
		SPAYToken:         pick(base.SPAYToken, override.SPAYToken),
		ETFToken:          pick(base.ETFToken, override.ETFToken),
		PayrollProcessor:  pick(base.PayrollProcessor, override.PayrollProcessor),
		CollateralManager: pick(base.CollateralManager, override.CollateralManager),
		InvestmentManager: pick(base.InvestmentManager, override.InvestmentManager),
		SavingsManager:    pick(base.SavingsManager, override.SavingsManager),
		RoleManager:       pick(base.RoleManager, override.RoleManager),
	}
}

func loadDeployments(path string) (*DeploymentConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg DeploymentConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("chain.id", 50002)
	v.SetDefault("chain.name", "Pharos Devnet")
	v.SetDefault("chain.native_currency.name", "Pharos")
	v.SetDefault("chain.native_currency.symbol", "pharos")
	v.SetDefault("chain.native_currency.decimals", 18)
	v.SetDefault("chain.rpc_urls", []string{"https://devnet.dplabs-internal.com"})
	v.SetDefault("chain.block_explorer_url", "https://pharosscan.xyz")
	v.SetDefault("chain.testnet", true)

	v.SetDefault("contracts.spay_token", "0x60c977735cfBF44Cf5B33bD02a8B637765E7AbbB")
	v.SetDefault("contracts.etf_token", "0x6157DCF5f7E0546706e7153AbEb2Fe48122bEec5")
	v.SetDefault("contracts.payroll_processor", "0x0878f2D8fBC9a2E08E0d1076763376920AC91145")
	v.SetDefault("contracts.collateral_manager", "0x5aE2B46aeF46Ef33d8d91Da8519C9B9C898086DC")
	v.SetDefault("contracts.investment_manager", "0x9bDA20E14700EbfD1B9A0900c3d54538F867bD59")
	v.SetDefault("contracts.savings_manager", "0x7d8940bAf8A432E09a30ce762abb3dD9Ab75eF3d")
	v.SetDefault("contracts.role_manager", "")
	v.SetDefault("deployments_path", "")

	v.SetDefault("service.http_port", 3000)
	v.SetDefault("service.cookie_secret", "")
	v.SetDefault("service.cookie_max_age", 24*time.Hour)
	v.SetDefault("service.cookie_max_skew", time.Minute)
	v.SetDefault("service.cookie_secure", false)
	v.SetDefault("service.idempotency_window", 10*time.Minute)
	v.SetDefault("service.read_header_timeout", 15*time.Second)
	v.SetDefault("service.notification_limit", 100)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.redis_addr", "")
	v.SetDefault("store.prune_interval", 10*time.Minute)

	v.SetDefault("wallet.rpc_url", "")
	v.SetDefault("wallet.private_key", "")
	v.SetDefault("wallet.keystore_path", "")
	v.SetDefault("wallet.keystore_passphrase", "")
	v.SetDefault("wallet.account", "")
	v.SetDefault("wallet.watch_interval", 2*time.Second)
	v.SetDefault("wallet.receipt_timeout", 2*time.Minute)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
}
