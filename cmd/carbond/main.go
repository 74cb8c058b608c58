package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"carbonbridge/config"
	"carbonbridge/core/events"
	"carbonbridge/core/types"
	"carbonbridge/gateway"
	"carbonbridge/native/bridge"
	"carbonbridge/native/exchange"
	"carbonbridge/native/rewards"
	"carbonbridge/native/token"
	"carbonbridge/observability/logging"
	"carbonbridge/rpc"
	"carbonbridge/state"
	"carbonbridge/storage"
)

// moduleAddress derives the deterministic account a module engine acts as.
// Module accounts hold the roles their engine needs (minting, contribution
// updates, pool funding) and custody escrowed funds.
func moduleAddress(name string) [20]byte {
	var addr [20]byte
	copy(addr[:], ethcrypto.Keccak256([]byte("carbonbridge/module/"+name))[:20])
	return addr
}

func main() {
	configFile := flag.String("config", "./config.toml", "Path to the configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.Setup("carbond", cfg.Environment, nil)

	db, err := storage.NewLevelDB(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open database", "error", err, "path", cfg.DataDir)
		os.Exit(1)
	}
	defer db.Close()

	manager := state.NewManager(db)
	emitter := &logEmitter{log: logger}

	bridgeModule := moduleAddress("bridge")
	rewardsModule := moduleAddress("rewards")
	exchangeModule := moduleAddress("exchange")
	opsModule := moduleAddress("ops")

	treasury, err := parseAccount(cfg.TreasuryAddress)
	if err != nil {
		logger.Error("invalid treasury address", "error", err)
		os.Exit(1)
	}

	if err := seedRoles(manager, cfg, bridgeModule, exchangeModule, opsModule); err != nil {
		logger.Error("failed to seed roles", "error", err)
		os.Exit(1)
	}

	tokens := token.NewLedger(manager)
	tokens.SetEmitter(emitter)

	rewardsEngine := rewards.NewEngine()
	rewardsEngine.SetStore(manager)
	rewardsEngine.SetPool(rewards.NewTokenPool(tokens, rewardsModule, ""))
	rewardsEngine.SetPauses(manager)
	rewardsEngine.SetEmitter(emitter)
	if cfg.RewardRatePerSecond > 0 {
		if err := rewardsEngine.SetRate(opsModule, big.NewInt(cfg.RewardRatePerSecond)); err != nil {
			logger.Error("failed to configure reward rate", "error", err)
			os.Exit(1)
		}
	}

	bridgeEngine := bridge.NewEngine()
	bridgeEngine.SetStore(manager)
	bridgeEngine.SetMinter(bridge.NewTokenMinter(tokens, bridgeModule, treasury))
	bridgeEngine.SetRegistry(bridge.NewRewardsUpdater(rewardsEngine, bridgeModule))
	bridgeEngine.SetPauses(manager)
	bridgeEngine.SetEmitter(emitter)
	mode := bridge.ModeDelayed
	if cfg.ImmediateSettlement {
		mode = bridge.ModeImmediate
	}
	params := bridge.Params{
		ChallengeWindow:  cfg.ChallengeWindowSeconds,
		MinParticipants:  cfg.MinParticipants,
		EmissionFactor:   cfg.EmissionFactorBig(),
		LocaleFactors:    cfg.LocaleFactorsBig(),
		OperatorShareBps: cfg.OperatorShareBps,
		Mode:             mode,
	}
	if err := bridgeEngine.SetParams(params); err != nil {
		logger.Error("invalid bridge parameters", "error", err)
		os.Exit(1)
	}

	exchangeEngine := exchange.NewEngine(exchangeModule, treasury)
	exchangeEngine.SetStore(manager)
	exchangeEngine.SetTokens(tokens)
	exchangeEngine.SetPoolFunder(rewardsEngine)
	exchangeEngine.SetPauses(manager)
	exchangeEngine.SetEmitter(emitter)
	if err := exchangeEngine.SetFees(cfg.ExchangeFeeBps, cfg.ExchangePoolShareBps); err != nil {
		logger.Error("invalid exchange fees", "error", err)
		os.Exit(1)
	}

	rpcServer := rpc.NewServer(bridgeEngine, rewardsEngine, exchangeEngine, tokens, logger)

	accessLogger := logger
	if strings.TrimSpace(cfg.AccessLogPath) != "" {
		accessLogger = slog.New(slog.NewJSONHandler(gateway.AccessLogWriter(cfg.AccessLogPath), nil))
	}
	gatewayHandler := gateway.New(gateway.Config{
		Bridge:      bridgeEngine,
		Rewards:     rewardsEngine,
		Exchange:    exchangeEngine,
		Tokens:      tokens,
		RateLimiter: gateway.NewRateLimiter(gateway.RateLimit{RequestsPerMinute: 600, Burst: 50}),
		Logger:      accessLogger,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rpcSrv := &http.Server{Addr: cfg.RPCAddress, Handler: rpcServer, ReadHeaderTimeout: 10 * time.Second}
	gwSrv := &http.Server{Addr: cfg.GatewayAddress, Handler: gatewayHandler, ReadHeaderTimeout: 10 * time.Second}

	errCh := make(chan error, 2)
	go func() {
		logger.Info("rpc server listening", "address", cfg.RPCAddress)
		if err := rpcSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("rpc server: %w", err)
		}
	}()
	go func() {
		logger.Info("gateway listening", "address", cfg.GatewayAddress)
		if err := gwSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("gateway: %w", err)
		}
	}()

	logger.Info("carbond started",
		"network", cfg.NetworkName,
		"dataDir", cfg.DataDir,
		"immediateSettlement", cfg.ImmediateSettlement,
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := rpcSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("rpc shutdown incomplete", "error", err)
	}
	if err := gwSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("gateway shutdown incomplete", "error", err)
	}
	logger.Info("carbond stopped")
}

// seedRoles grants the configured accounts and module accounts their roles.
// SetRole is idempotent, so re-seeding on restart is safe.
func seedRoles(manager *state.Manager, cfg *config.Config, bridgeModule, exchangeModule, opsModule [20]byte) error {
	grants := []struct {
		role string
		addr [20]byte
	}{
		{token.RoleMinter, bridgeModule},
		{rewards.RoleRewardUpdater, bridgeModule},
		{rewards.RolePoolFunder, exchangeModule},
		{rewards.RoleRewardAdmin, opsModule},
	}
	for _, grant := range grants {
		if err := manager.SetRole(grant.role, grant.addr); err != nil {
			return err
		}
	}
	lists := []struct {
		role  string
		addrs []string
	}{
		{bridge.RoleSubmitter, cfg.Submitters},
		{bridge.RoleArbiter, cfg.Arbiters},
		{bridge.RoleBridgeAdmin, cfg.Admins},
		{rewards.RoleRewardAdmin, cfg.Admins},
		{rewards.RolePoolFunder, cfg.Admins},
	}
	for _, list := range lists {
		for _, raw := range list.addrs {
			addr, err := parseAccount(raw)
			if err != nil {
				return fmt.Errorf("role %s: %w", list.role, err)
			}
			if err := manager.SetRole(list.role, addr); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseAccount(value string) ([20]byte, error) {
	var addr [20]byte
	trimmed := strings.TrimPrefix(strings.TrimSpace(value), "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return addr, fmt.Errorf("invalid address %q", value)
	}
	if len(decoded) != 20 {
		return addr, fmt.Errorf("address %q must be 20 bytes", value)
	}
	copy(addr[:], decoded)
	return addr, nil
}

// logEmitter surfaces module events as structured log lines.
type logEmitter struct {
	log *slog.Logger
}

func (e *logEmitter) Emit(event events.Event) {
	if e == nil || e.log == nil || event == nil {
		return
	}
	args := []any{"event", event.EventType()}
	if carrier, ok := event.(interface {
		Event() *types.Event
	}); ok {
		if evt := carrier.Event(); evt != nil {
			for key, value := range evt.Attributes {
				args = append(args, key, value)
			}
		}
	}
	e.log.Info("module event", args...)
}
