package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/loykin/chainforge/internal/nodeapi"
	"github.com/loykin/chainforge/internal/supervisor"
	"github.com/loykin/chainforge/internal/walletapi"
)

// Tool describes one callable tool for tools/list.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

func objSchema(props map[string]any, required ...string) map[string]any {
	if props == nil {
		props = map[string]any{}
	}
	req := required
	if req == nil {
		req = []string{}
	}
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   req,
	}
}

func strProp(desc string) map[string]any {
	return map[string]any{"type": "string", "description": desc}
}

func numProp(desc string) map[string]any {
	return map[string]any{"type": "number", "description": desc}
}

func intProp(desc string) map[string]any {
	return map[string]any{"type": "integer", "description": desc}
}

func toolCatalog() []Tool {
	return []Tool{
		// Node management
		{
			Name:        "start_node",
			Description: "Start the fullnode. This must be running before mining or wallet operations.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "stop_node",
			Description: "Stop the fullnode and all related services (miner, wallet service).",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "get_node_status",
			Description: "Get the current status of the fullnode including block height and network info.",
			InputSchema: objSchema(nil),
		},
		// Miner management
		{
			Name:        "start_miner",
			Description: "Start the CPU miner. The node must be running first.",
			InputSchema: objSchema(map[string]any{
				"address": strProp("Mining reward address (uses the default reward address if not provided)"),
			}),
		},
		{
			Name:        "stop_miner",
			Description: "Stop the CPU miner.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "get_miner_status",
			Description: "Get the current status of the CPU miner.",
			InputSchema: objSchema(nil),
		},
		// Wallet service
		{
			Name:        "start_wallet_service",
			Description: "Start the wallet service for multi-wallet support. Node must be running first.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "stop_wallet_service",
			Description: "Stop the wallet service.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "get_wallet_service_status",
			Description: "Get the status of the wallet service.",
			InputSchema: objSchema(nil),
		},
		// Wallet operations
		{
			Name:        "create_wallet",
			Description: "Create a new wallet from a 24-word seed phrase.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("Unique identifier for the wallet"),
				"seed":      strProp("24-word BIP39 seed phrase"),
			}, "wallet_id", "seed"),
		},
		{
			Name:        "get_wallet_seed",
			Description: "Retrieve the seed phrase for a wallet created in this session.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID"),
			}, "wallet_id"),
		},
		{
			Name:        "get_wallet_status",
			Description: "Get the sync status of a wallet (statusCode 3 = Ready).",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID"),
			}, "wallet_id"),
		},
		{
			Name:        "get_wallet_balance",
			Description: "Get the balance of a wallet (available and locked HTR in cents).",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID"),
			}, "wallet_id"),
		},
		{
			Name:        "get_wallet_addresses",
			Description: "Get the addresses of a wallet.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID"),
			}, "wallet_id"),
		},
		{
			Name:        "send_from_wallet",
			Description: "Send HTR from a wallet to an address.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID to send from"),
				"address":   strProp("Destination address"),
				"amount":    numProp("Amount of HTR to send"),
			}, "wallet_id", "address", "amount"),
		},
		{
			Name:        "close_wallet",
			Description: "Close a wallet and remove it from the wallet service.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID"),
			}, "wallet_id"),
		},
		// Faucet
		{
			Name:        "get_faucet_balance",
			Description: "Get the balance of the fullnode's built-in wallet (faucet).",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "send_from_faucet",
			Description: "Send HTR from the fullnode's built-in wallet (faucet) to an address.",
			InputSchema: objSchema(map[string]any{
				"address": strProp("Destination address"),
				"amount":  numProp("Amount of HTR to send"),
			}, "address", "amount"),
		},
		{
			Name:        "fund_wallet",
			Description: "Send HTR from the faucet to a wallet. Auto-determines address and reasonable amount.",
			InputSchema: objSchema(map[string]any{
				"wallet_id": strProp("The wallet ID to fund"),
				"amount":    numProp("Amount of HTR to send (auto-calculated if not provided)"),
			}, "wallet_id"),
		},
		// Blockchain
		{
			Name:        "get_blocks",
			Description: "Get recent blocks from the blockchain.",
			InputSchema: objSchema(map[string]any{
				"count": intProp("Number of blocks to retrieve (default: 10)"),
			}),
		},
		{
			Name:        "get_transaction",
			Description: "Get details of a specific transaction.",
			InputSchema: objSchema(map[string]any{
				"tx_id": strProp("Transaction ID (hash)"),
			}, "tx_id"),
		},
		// Utilities
		{
			Name:        "quick_start",
			Description: "Quickly start the full environment: node, miner, wallet service and gateway.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "quick_stop",
			Description: "Stop all services: node, miner, wallet service and gateway.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "get_full_status",
			Description: "Get comprehensive status of all services, balances, and active wallets.",
			InputSchema: objSchema(nil),
		},
		{
			Name:        "reset_data",
			Description: "Reset all blockchain data and stop all services. USE WITH CAUTION.",
			InputSchema: objSchema(nil),
		},
	}
}

type toolArgs map[string]any

func parseArgs(raw json.RawMessage) toolArgs {
	m := toolArgs{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &m)
	}
	return m
}

func (a toolArgs) str(key string) (string, bool) {
	v, ok := a[key].(string)
	return v, ok && v != ""
}

func (a toolArgs) f64(key string) (float64, bool) {
	v, ok := a[key].(float64)
	return v, ok
}

// htrToCents converts a tool-level HTR amount to the cents the APIs use.
func htrToCents(htr float64) int64 { return int64(htr * 100) }

func (s *Server) nodeClient() *nodeapi.Client {
	return nodeapi.New(s.sup.NodeAPIBase())
}

func (s *Server) walletClient() *walletapi.Client {
	return walletapi.New(s.sup.WalletAPIBase())
}

func (s *Server) execute(ctx context.Context, name string, rawArgs json.RawMessage) (string, error) {
	args := parseArgs(rawArgs)

	switch name {
	// Node management
	case "start_node":
		return s.sup.StartNode(nil)

	case "stop_node", "quick_stop":
		msgs := s.sup.StopAll()
		if len(msgs) == 0 {
			return "Nothing was running", nil
		}
		return strings.Join(msgs, "\n"), nil

	case "get_node_status":
		st := s.sup.NodeStatus(ctx)
		return marshal(st)

	// Miner management
	case "start_miner":
		var cfg *supervisor.MinerConfig
		if addr, ok := args.str("address"); ok {
			c := supervisor.DefaultMinerConfig()
			c.Address = addr
			cfg = &c
		}
		return s.sup.StartMiner(cfg)

	case "stop_miner":
		return s.sup.StopMiner()

	case "get_miner_status":
		return marshal(s.sup.MinerStatus())

	// Wallet service
	case "start_wallet_service":
		return s.sup.StartWallet(nil)

	case "stop_wallet_service":
		return s.sup.StopWallet()

	case "get_wallet_service_status":
		return marshal(s.sup.WalletStatus())

	// Wallet operations
	case "create_wallet":
		return s.createWallet(ctx, args)

	case "get_wallet_seed":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		s.mu.Lock()
		seed, found := s.seeds[walletID]
		s.mu.Unlock()
		if !found {
			return marshal(map[string]any{
				"error": "Seed not found. Only seeds from wallets created in this session are stored.",
			})
		}
		return marshal(map[string]any{"wallet_id": walletID, "seed": seed})

	case "get_wallet_status":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		st, err := s.walletClient().Status(ctx, walletID)
		if err != nil {
			return "", fmt.Errorf("failed to get wallet status: %w", err)
		}
		return string(st.Raw), nil

	case "get_wallet_balance":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		b, err := s.walletClient().Balance(ctx, walletID)
		if err != nil {
			return "", fmt.Errorf("failed to get wallet balance: %w", err)
		}
		return marshal(b)

	case "get_wallet_addresses":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		addrs, err := s.walletClient().Addresses(ctx, walletID)
		if err != nil {
			return "", fmt.Errorf("failed to get wallet addresses: %w", err)
		}
		return marshal(map[string]any{"addresses": addrs})

	case "send_from_wallet":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		address, ok := args.str("address")
		if !ok {
			return "", fmt.Errorf("address is required")
		}
		amount, ok := args.f64("amount")
		if !ok {
			return "", fmt.Errorf("amount is required")
		}
		raw, err := s.walletClient().SendTx(ctx, walletID, address, htrToCents(amount))
		if err != nil {
			return "", fmt.Errorf("failed to send transaction: %w", err)
		}
		return string(raw), nil

	case "close_wallet":
		walletID, ok := args.str("wallet_id")
		if !ok {
			return "", fmt.Errorf("wallet_id is required")
		}
		raw, err := s.walletClient().Close(ctx, walletID)
		if err != nil {
			return "", fmt.Errorf("failed to close wallet: %w", err)
		}
		s.mu.Lock()
		delete(s.seeds, walletID)
		s.mu.Unlock()
		return string(raw), nil

	// Faucet
	case "get_faucet_balance":
		b, err := s.nodeClient().WalletBalance(ctx)
		if err != nil {
			return "", fmt.Errorf("failed to get faucet balance: %w", err)
		}
		return marshal(b)

	case "send_from_faucet":
		address, ok := args.str("address")
		if !ok {
			return "", fmt.Errorf("address is required")
		}
		amount, ok := args.f64("amount")
		if !ok {
			return "", fmt.Errorf("amount is required")
		}
		hash, err := s.nodeClient().SendTokens(ctx, address, htrToCents(amount))
		if err != nil {
			return "", fmt.Errorf("failed to send from faucet: %w", err)
		}
		return marshal(map[string]any{"success": true, "hash": hash})

	case "fund_wallet":
		return s.fundWallet(ctx, args)

	// Blockchain
	case "get_blocks":
		return s.getBlocks(ctx, args)

	case "get_transaction":
		txID, ok := args.str("tx_id")
		if !ok {
			return "", fmt.Errorf("tx_id is required")
		}
		raw, err := s.nodeClient().Transaction(ctx, txID)
		if err != nil {
			return "", fmt.Errorf("failed to get transaction: %w", err)
		}
		return string(raw), nil

	// Utilities
	case "quick_start":
		msgs, err := s.sup.StartAll(ctx)
		out := strings.Join(msgs, "\n")
		if err != nil {
			if out != "" {
				out += "\n"
			}
			return out + "Error: " + err.Error(), nil
		}
		return out, nil

	case "get_full_status":
		return s.fullStatus(ctx)

	case "reset_data":
		s.sup.StopAll()
		s.mu.Lock()
		s.seeds = make(map[string]string)
		s.mu.Unlock()
		if _, err := s.sup.ResetData(); err != nil {
			return "", err
		}
		return "All data cleared. Start the node again to begin fresh.", nil

	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

func (s *Server) createWallet(ctx context.Context, args toolArgs) (string, error) {
	walletID, ok := args.str("wallet_id")
	if !ok {
		return "", fmt.Errorf("wallet_id is required")
	}
	seed, ok := args.str("seed")
	if !ok {
		return "", fmt.Errorf("seed is required")
	}

	if err := s.walletClient().Create(ctx, walletID, seed); err != nil {
		return "", err
	}

	s.mu.Lock()
	s.seeds[walletID] = seed
	s.mu.Unlock()

	return marshal(map[string]any{
		"success":     true,
		"wallet_id":   walletID,
		"seed_stored": true,
		"message":     "Wallet created with provided seed",
	})
}

func (s *Server) fundWallet(ctx context.Context, args toolArgs) (string, error) {
	walletID, ok := args.str("wallet_id")
	if !ok {
		return "", fmt.Errorf("wallet_id is required")
	}

	addrs, err := s.walletClient().Addresses(ctx, walletID)
	if err != nil {
		return "", fmt.Errorf("failed to get wallet addresses: %w", err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("wallet has no addresses; wait for it to sync")
	}

	balance, err := s.nodeClient().WalletBalance(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get faucet balance: %w", err)
	}
	if balance.Available <= 0 {
		return "", fmt.Errorf("faucet has no funds; mine some blocks first")
	}

	var cents int64
	if amount, given := args.f64("amount"); given {
		cents = htrToCents(amount)
	} else {
		// Default to 10% of the faucet, clamped to a sane range.
		cents = balance.Available / 10
		if cents < 100 {
			cents = 100
		}
		if cents > 10000 {
			cents = 10000
		}
	}

	hash, err := s.nodeClient().SendTokens(ctx, addrs[0], cents)
	if err != nil {
		return "", fmt.Errorf("failed to send from faucet: %w", err)
	}

	return marshal(map[string]any{
		"funded":    true,
		"wallet_id": walletID,
		"amount":    float64(cents) / 100.0,
		"hash":      hash,
	})
}

func (s *Server) getBlocks(ctx context.Context, args toolArgs) (string, error) {
	count := uint64(10)
	if v, ok := args.f64("count"); ok && v > 0 {
		count = uint64(v)
	}

	info, err := s.nodeClient().Status(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get status: %w", err)
	}
	height := uint64(0)
	if info.BestBlockHeight != nil {
		height = *info.BestBlockHeight
	}

	from := uint64(0)
	if height > count {
		from = height - count
	}
	blocks := make([]json.RawMessage, 0, count+1)
	for h := height; ; h-- {
		if block, err := s.nodeClient().BlockAtHeight(ctx, h); err == nil {
			blocks = append(blocks, block)
		}
		if h == from {
			break
		}
	}

	return marshal(map[string]any{"blocks": blocks, "currentHeight": height})
}

func (s *Server) fullStatus(ctx context.Context) (string, error) {
	state := s.sup.State()

	s.mu.Lock()
	wallets := make([]string, 0, len(s.seeds))
	for id := range s.seeds {
		wallets = append(wallets, id)
	}
	s.mu.Unlock()

	status := map[string]any{
		"node":          map[string]any{"running": state.NodeRunning},
		"miner":         map[string]any{"running": state.MinerRunning},
		"wallet":        s.sup.WalletStatus(),
		"gateway":       s.sup.GatewayStatus(),
		"activeWallets": wallets,
	}

	// Best effort; the faucet is only reachable while the node API is up.
	if b, err := s.nodeClient().WalletBalance(ctx); err == nil {
		status["faucetBalance"] = b
	}

	return marshal(status)
}

func marshal(v any) (string, error) {
	buf, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(buf), nil
}
