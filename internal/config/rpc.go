package config

import (
	"errors"
	"time"

	"github.com/gagliardetto/solana-go/rpc"
)

type RPCConfig struct {
	// RPCUrls are load-balanced; the first entry is used until health
	// checks have ranked them.
	RPCUrls             []string
	Commitment          rpc.CommitmentType
	HealthCheckInterval time.Duration
	SendConcurrency     int
	ConfirmPollInterval time.Duration
	// ConfirmTimeout caps confirmation in wall-clock time on top of the
	// blockhash expiry height.
	ConfirmTimeout time.Duration
}

func (r *RPCConfig) Key() string {
	return RPC_CONFIG_KEY
}

func (r *RPCConfig) Load() error {
	v := newEnv()
	v.SetDefault("RPC_URLS", rpc.MainNetBeta_RPC)
	v.SetDefault("RPC_COMMITMENT", string(rpc.CommitmentConfirmed))
	v.SetDefault("RPC_SEND_CONCURRENCY", 3)

	r.RPCUrls = splitList(v.GetString("RPC_URLS"))
	r.Commitment = rpc.CommitmentType(v.GetString("RPC_COMMITMENT"))
	r.HealthCheckInterval = durationOrDefault(v, "RPC_HEALTH_INTERVAL", 30*time.Second)
	r.SendConcurrency = v.GetInt("RPC_SEND_CONCURRENCY")
	r.ConfirmPollInterval = durationOrDefault(v, "RPC_CONFIRM_POLL_INTERVAL", time.Second)
	r.ConfirmTimeout = durationOrDefault(v, "RPC_CONFIRM_TIMEOUT", 90*time.Second)
	return r.Validate()
}

func (r *RPCConfig) Validate() error {
	if len(r.RPCUrls) == 0 {
		return errors.New("invalid rpc config: at least one RPC url is required")
	}
	switch r.Commitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		return errors.New("invalid rpc config: commitment must be processed, confirmed or finalized")
	}
	if r.SendConcurrency <= 0 {
		return errors.New("invalid rpc config: send concurrency must be positive")
	}
	return nil
}
