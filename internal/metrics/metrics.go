// Package metrics provides application-level metrics collection.
// This is a lightweight metrics foundation using atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Metrics holds application metrics using atomic counters for thread safety.
type Metrics struct {
	// RPC metrics
	rpcCallsTotal   atomic.Int64
	rpcErrorsTotal  atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Wallet session metrics
	walletOpsTotal  atomic.Int64
	walletOpsErrors atomic.Int64

	// Balance reads
	balanceFetches     atomic.Int64
	balanceFetchErrors atomic.Int64

	// Transaction lifecycle
	txSubmitted atomic.Int64
	txConfirmed atomic.Int64
	txFailed    atomic.Int64
}

// Global is the global metrics instance.
// Use this for recording metrics throughout the application.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// RecordRPCCall records an RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordWalletOp records a wallet account request or listing.
func (m *Metrics) RecordWalletOp(err error) {
	m.walletOpsTotal.Add(1)
	if err != nil {
		m.walletOpsErrors.Add(1)
	}
}

// RecordBalanceFetch records a contract balance read.
func (m *Metrics) RecordBalanceFetch(err error) {
	m.balanceFetches.Add(1)
	if err != nil {
		m.balanceFetchErrors.Add(1)
	}
}

// RecordTxSubmitted records a transaction accepted by the network.
func (m *Metrics) RecordTxSubmitted() {
	m.txSubmitted.Add(1)
}

// RecordTxConfirmed records a transaction mined with success status.
func (m *Metrics) RecordTxConfirmed() {
	m.txConfirmed.Add(1)
}

// RecordTxFailed records a transaction that failed at any stage.
func (m *Metrics) RecordTxFailed() {
	m.txFailed.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal      int64 `json:"rpc_calls_total"`
	RPCErrorsTotal     int64 `json:"rpc_errors_total"`
	RPCLatencyNanos    int64 `json:"rpc_latency_nanos"`
	WalletOpsTotal     int64 `json:"wallet_ops_total"`
	WalletOpsErrors    int64 `json:"wallet_ops_errors"`
	BalanceFetches     int64 `json:"balance_fetches"`
	BalanceFetchErrors int64 `json:"balance_fetch_errors"`
	TxSubmitted        int64 `json:"tx_submitted"`
	TxConfirmed        int64 `json:"tx_confirmed"`
	TxFailed           int64 `json:"tx_failed"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:      m.rpcCallsTotal.Load(),
		RPCErrorsTotal:     m.rpcErrorsTotal.Load(),
		RPCLatencyNanos:    m.rpcLatencyNanos.Load(),
		WalletOpsTotal:     m.walletOpsTotal.Load(),
		WalletOpsErrors:    m.walletOpsErrors.Load(),
		BalanceFetches:     m.balanceFetches.Load(),
		BalanceFetchErrors: m.balanceFetchErrors.Load(),
		TxSubmitted:        m.txSubmitted.Load(),
		TxConfirmed:        m.txConfirmed.Load(),
		TxFailed:           m.txFailed.Load(),
	}
}

// RPCLatencyAvgMs returns the average RPC latency in milliseconds.
// Returns 0 if no calls have been made.
func (m *Metrics) RPCLatencyAvgMs() float64 {
	calls := m.rpcCallsTotal.Load()
	if calls == 0 {
		return 0
	}
	nanos := m.rpcLatencyNanos.Load()
	return float64(nanos) / float64(calls) / 1e6
}

// TxSuccessRate returns the share of settled transactions that confirmed, as a percentage (0-100).
// Returns 0 if nothing has settled.
func (m *Metrics) TxSuccessRate() float64 {
	confirmed := m.txConfirmed.Load()
	total := confirmed + m.txFailed.Load()
	if total == 0 {
		return 0
	}
	return float64(confirmed) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.walletOpsTotal.Store(0)
	m.walletOpsErrors.Store(0)
	m.balanceFetches.Store(0)
	m.balanceFetchErrors.Store(0)
	m.txSubmitted.Store(0)
	m.txConfirmed.Store(0)
	m.txFailed.Store(0)
}
