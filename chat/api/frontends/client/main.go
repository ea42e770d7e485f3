package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ardanlabs/conf/v3"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/walletchat/wchat/chat/api/frontends/client/ui/tui"
	"github.com/walletchat/wchat/chat/app/sdk/backend"
	"github.com/walletchat/wchat/chat/app/sdk/balance"
	"github.com/walletchat/wchat/chat/app/sdk/session"
	"github.com/walletchat/wchat/chat/app/sdk/session/storage/memory"
	"github.com/walletchat/wchat/chat/app/sdk/session/storage/sqldb"
	"github.com/walletchat/wchat/chat/app/sdk/validate"
	"github.com/walletchat/wchat/chat/app/sdk/wallet"
	"github.com/walletchat/wchat/chat/app/sdk/wallet/keywallet"
	"github.com/walletchat/wchat/chat/app/sdk/wallet/wsprovider"
	"github.com/walletchat/wchat/chat/foundation/logger"
)

var build = "develop"

func main() {
	var log *logger.Logger

	traceIDFn := func(ctx context.Context) string {
		return uuid.NewString()
	}

	logFile, err := os.OpenFile("client.log", os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
	defer logFile.Close()

	log = logger.New(logFile, logger.LevelInfo, "CLIENT", traceIDFn)

	ctx := context.Background()

	if err := run(ctx, log); err != nil {
		log.Error(ctx, "startup", "err", err)
		fmt.Printf("Error: %s\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, log *logger.Logger) error {

	// -------------------------------------------------------------------------
	// Configuration

	godotenv.Load()

	cfg := struct {
		conf.Version
		Backend struct {
			Host string `conf:"default:http://localhost:3000"`
		}
		Wallet struct {
			Provider  string `conf:"default:key,help:key | bridge | none"`
			BridgeURL string `conf:"default:ws://localhost:8555/wallet"`
			KeyPath   string `conf:"default:chat/zarf/client"`
		}
		Chain struct {
			ID           string `conf:"default:0xaa36a7"`
			Name         string `conf:"default:Sepolia"`
			RPCURL       string `conf:"default:https://rpc.sepolia.org"`
			NativeSymbol string `conf:"default:ETH"`
			Tokens       string `conf:"help:comma separated SYMBOL=0xcontract pairs"`
		}
		Storage struct {
			Policy   string `conf:"default:durable,help:durable | memory"`
			FilePath string `conf:"default:chat/zarf/client"`
		}
		Validation struct {
			PhoneRequired   bool `conf:"default:false"`
			DOBRequired     bool `conf:"default:false"`
			PasswordSpecial bool `conf:"default:true"`
		}
	}{
		Version: conf.Version{
			Build: build,
			Desc:  "Wallet Chat Client",
		},
	}

	const prefix = "WCHAT"
	help, err := conf.Parse(prefix, &cfg)
	if err != nil {
		if errors.Is(err, conf.ErrHelpWanted) {
			fmt.Println(help)
			return nil
		}
		return fmt.Errorf("parsing config: %w", err)
	}

	// -------------------------------------------------------------------------
	// App Starting

	log.Info(ctx, "starting client", "version", cfg.Build)
	defer log.Info(ctx, "shutdown complete")

	out, err := conf.String(&cfg)
	if err != nil {
		return fmt.Errorf("generating config for output: %w", err)
	}
	log.Info(ctx, "startup", "config", out)

	log.BuildInfo(ctx)

	// -------------------------------------------------------------------------
	// Wallet provider

	chain := wallet.ChainDescriptor{
		ChainID:      cfg.Chain.ID,
		Name:         cfg.Chain.Name,
		RPCURLs:      []string{cfg.Chain.RPCURL},
		NativeSymbol: cfg.Chain.NativeSymbol,
		Decimals:     18,
	}

	var provider wallet.Provider

	switch cfg.Wallet.Provider {
	case "key":
		p, err := keywallet.New(cfg.Wallet.KeyPath, chain.ChainID)
		if err != nil {
			return fmt.Errorf("key wallet: %w", err)
		}
		provider = p

	case "bridge":
		p, err := wsprovider.Dial(cfg.Wallet.BridgeURL)
		if err != nil {
			return fmt.Errorf("wallet bridge: %w", err)
		}
		defer p.Close()
		provider = p

	case "none":
		provider = nil

	default:
		return fmt.Errorf("unknown wallet provider: %q", cfg.Wallet.Provider)
	}

	connector := wallet.NewConnector(provider, chain)

	// -------------------------------------------------------------------------
	// Balances

	tokens, err := parseTokens(cfg.Chain.Tokens)
	if err != nil {
		return fmt.Errorf("parse tokens: %w", err)
	}

	var fetcher *balance.Fetcher

	switch provider {
	case nil:
		fetcher, err = balance.NewReadOnly(cfg.Chain.RPCURL, cfg.Chain.NativeSymbol)
		if err != nil {
			return fmt.Errorf("read-only balances: %w", err)
		}

	default:
		client, err := ethclient.Dial(cfg.Chain.RPCURL)
		if err != nil {
			return fmt.Errorf("dial rpc: %w", err)
		}
		defer client.Close()

		fetcher = balance.New(client, cfg.Chain.NativeSymbol, tokens, connector.EnsureChain)
	}

	// -------------------------------------------------------------------------
	// Session storage

	var storage session.Storage

	switch cfg.Storage.Policy {
	case "durable":
		storage, err = sqldb.New(cfg.Storage.FilePath)
		if err != nil {
			return fmt.Errorf("session storage: %w", err)
		}

	case "memory":
		storage = memory.New()

	default:
		return fmt.Errorf("unknown storage policy: %q", cfg.Storage.Policy)
	}

	// -------------------------------------------------------------------------
	// Session store and backend

	profile := validate.Profile{
		PhoneOptional:   !cfg.Validation.PhoneRequired,
		DOBOptional:     !cfg.Validation.DOBRequired,
		PasswordSpecial: cfg.Validation.PasswordSpecial,
	}

	var sess *session.Store

	backendClient := backend.New(cfg.Backend.Host, func() string {
		if sess == nil {
			return ""
		}
		if rec, ok := sess.Auth(); ok {
			return rec.Token
		}
		return ""
	})

	sess = session.New(session.Config{
		Log:     log,
		Backend: backendClient,
		Wallet:  connector,
		Balance: fetcher,
		Storage: storage,
		Profile: profile,
	})

	go connector.Listen(ctx)

	sess.Restore(ctx)

	// -------------------------------------------------------------------------
	// Run UI

	ui := tui.New(sess, backendClient)

	if err := ui.Run(); err != nil {
		return fmt.Errorf("run: %w", err)
	}

	return nil
}

func parseTokens(raw string) ([]balance.Token, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}

	var tokens []balance.Token

	for _, pair := range strings.Split(raw, ",") {
		sym, contract, ok := strings.Cut(strings.TrimSpace(pair), "=")
		if !ok || !common.IsHexAddress(contract) {
			return nil, fmt.Errorf("invalid token pair: %q", pair)
		}

		tokens = append(tokens, balance.Token{
			Symbol:   sym,
			Contract: common.HexToAddress(contract),
		})
	}

	return tokens, nil
}
