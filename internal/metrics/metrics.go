// Package metrics provides process-level counters for the wallet core.
// Counters are atomic; there is no exporter.
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
	rpcRetriesTotal atomic.Int64
	rpcLatencyNanos atomic.Int64

	// Signing
	signaturesTotal atomic.Int64

	// Approval outcomes
	approvalsGranted  atomic.Int64
	approvalsDenied   atomic.Int64
	approvalsTimedOut atomic.Int64

	// Vault
	unlockFailures atomic.Int64

	// Cache metrics
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
}

// Global is the global metrics instance.
//
//nolint:gochecknoglobals // Intentional global for metrics access
var Global = &Metrics{}

// Approval outcomes accepted by RecordApproval.
const (
	ApprovalGranted  = "granted"
	ApprovalDenied   = "denied"
	ApprovalTimedOut = "timed-out"
)

// RecordRPCCall records an RPC call with its duration and success status.
func (m *Metrics) RecordRPCCall(duration time.Duration, err error) {
	m.rpcCallsTotal.Add(1)
	m.rpcLatencyNanos.Add(duration.Nanoseconds())

	if err != nil {
		m.rpcErrorsTotal.Add(1)
	}
}

// RecordRPCRetry records one retried RPC attempt.
func (m *Metrics) RecordRPCRetry() {
	m.rpcRetriesTotal.Add(1)
}

// RecordSignature records one produced signature.
func (m *Metrics) RecordSignature() {
	m.signaturesTotal.Add(1)
}

// RecordApproval records the outcome of an approval request.
func (m *Metrics) RecordApproval(outcome string) {
	switch outcome {
	case ApprovalGranted:
		m.approvalsGranted.Add(1)
	case ApprovalDenied:
		m.approvalsDenied.Add(1)
	case ApprovalTimedOut:
		m.approvalsTimedOut.Add(1)
	}
}

// RecordUnlockFailure records a rejected password.
func (m *Metrics) RecordUnlockFailure() {
	m.unlockFailures.Add(1)
}

// RecordCacheHit records a cache hit.
func (m *Metrics) RecordCacheHit() {
	m.cacheHits.Add(1)
}

// RecordCacheMiss records a cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.cacheMisses.Add(1)
}

// Snapshot is a point-in-time copy of all metrics.
type Snapshot struct {
	RPCCallsTotal     int64 `json:"rpcCalls"`
	RPCErrorsTotal    int64 `json:"rpcErrors"`
	RPCRetriesTotal   int64 `json:"rpcRetries"`
	RPCLatencyNanos   int64 `json:"rpcLatencyNanos"`
	SignaturesTotal   int64 `json:"signatures"`
	ApprovalsGranted  int64 `json:"approvalsGranted"`
	ApprovalsDenied   int64 `json:"approvalsDenied"`
	ApprovalsTimedOut int64 `json:"approvalsTimedOut"`
	UnlockFailures    int64 `json:"unlockFailures"`
	CacheHits         int64 `json:"cacheHits"`
	CacheMisses       int64 `json:"cacheMisses"`
}

// Snapshot returns a point-in-time copy of all metrics.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		RPCCallsTotal:     m.rpcCallsTotal.Load(),
		RPCErrorsTotal:    m.rpcErrorsTotal.Load(),
		RPCRetriesTotal:   m.rpcRetriesTotal.Load(),
		RPCLatencyNanos:   m.rpcLatencyNanos.Load(),
		SignaturesTotal:   m.signaturesTotal.Load(),
		ApprovalsGranted:  m.approvalsGranted.Load(),
		ApprovalsDenied:   m.approvalsDenied.Load(),
		ApprovalsTimedOut: m.approvalsTimedOut.Load(),
		UnlockFailures:    m.unlockFailures.Load(),
		CacheHits:         m.cacheHits.Load(),
		CacheMisses:       m.cacheMisses.Load(),
	}
}

// RPCCallsTotal returns the total number of RPC calls made.
func (m *Metrics) RPCCallsTotal() int64 {
	return m.rpcCallsTotal.Load()
}

// RPCErrorsTotal returns the total number of RPC errors.
func (m *Metrics) RPCErrorsTotal() int64 {
	return m.rpcErrorsTotal.Load()
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

// CacheHitRate returns the cache hit rate as a percentage (0-100).
// Returns 0 if no cache operations have occurred.
func (m *Metrics) CacheHitRate() float64 {
	hits := m.cacheHits.Load()
	misses := m.cacheMisses.Load()
	total := hits + misses
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total) * 100
}

// Reset resets all metrics to zero.
// Useful for testing.
func (m *Metrics) Reset() {
	m.rpcCallsTotal.Store(0)
	m.rpcErrorsTotal.Store(0)
	m.rpcRetriesTotal.Store(0)
	m.rpcLatencyNanos.Store(0)
	m.signaturesTotal.Store(0)
	m.approvalsGranted.Store(0)
	m.approvalsDenied.Store(0)
	m.approvalsTimedOut.Store(0)
	m.unlockFailures.Store(0)
	m.cacheHits.Store(0)
	m.cacheMisses.Store(0)
}
