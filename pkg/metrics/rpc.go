package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// RPCMetrics provides observability for ONC RPC client sessions.
//
// Implementations collect counts of calls, queueing behaviour, reply
// matching and session lifecycle. This interface is optional: a session
// created without metrics uses a no-op implementation.
//
// Example usage:
//
//	metrics.InitRegistry()
//	session := rpc.Open(conn, cred, rpc.AuthNone{}, prog, vers,
//	    rpc.WithMetrics(metrics.NewRPCMetrics()))
type RPCMetrics interface {
	// RecordCall records a call handed to the session.
	//
	// Parameters:
	//   - program: RPC program number
	//   - procedure: procedure number
	//   - queued: true if the call was queued instead of sent immediately
	RecordCall(program, procedure uint32, queued bool)

	// RecordFlush records queued calls sent after the send window opened.
	RecordFlush(program uint32, count int)

	// RecordReply records a delivered reply.
	//
	// Parameters:
	//   - program: RPC program number
	//   - matched: false if no pending call had the reply's XID
	RecordReply(program uint32, matched bool)

	// RecordBytes records framed bytes moved through the session.
	//
	// Parameters:
	//   - program: RPC program number
	//   - direction: "sent" or "received"
	//   - bytes: number of bytes including the record mark
	RecordBytes(program uint32, direction string, bytes int)

	// SetPending updates the queue depth gauges.
	SetPending(program uint32, calls, replies int)

	// RecordSessionClosed records a session shutdown.
	//
	// Parameters:
	//   - program: RPC program number
	//   - err: close reason, nil for an orderly shutdown
	RecordSessionClosed(program uint32, err error)
}

// rpcMetrics is the Prometheus implementation of RPCMetrics.
type rpcMetrics struct {
	callsTotal     *prometheus.CounterVec
	flushedTotal   *prometheus.CounterVec
	repliesTotal   *prometheus.CounterVec
	bytesTotal     *prometheus.CounterVec
	pendingCalls   *prometheus.GaugeVec
	pendingReplies *prometheus.GaugeVec
	sessionsClosed *prometheus.CounterVec
}

// NewRPCMetrics creates a new Prometheus-backed RPCMetrics instance.
//
// Returns a no-op implementation if metrics are not enabled (InitRegistry
// not called). Collectors are registered on creation, so create one
// instance per process and share it between sessions.
func NewRPCMetrics() RPCMetrics {
	if !IsEnabled() {
		return NewNoopRPCMetrics()
	}
	return newRPCMetrics(GetRegistry())
}

func newRPCMetrics(reg prometheus.Registerer) *rpcMetrics {
	return &rpcMetrics{
		callsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_calls_total",
				Help: "Total number of RPC calls by program, procedure, and dispatch mode",
			},
			[]string{"program", "procedure", "mode"}, // mode: sent or queued
		),
		flushedTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_flushed_calls_total",
				Help: "Total number of queued RPC calls sent after the send window opened",
			},
			[]string{"program"},
		),
		repliesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_replies_total",
				Help: "Total number of RPC replies by program and match outcome",
			},
			[]string{"program", "outcome"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_bytes_total",
				Help: "Total framed RPC bytes by program and direction",
			},
			[]string{"program", "direction"},
		),
		pendingCalls: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nfsfetch_rpc_pending_calls",
				Help: "Current number of RPC calls waiting for the send window",
			},
			[]string{"program"},
		),
		pendingReplies: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "nfsfetch_rpc_pending_replies",
				Help: "Current number of RPC calls awaiting a reply",
			},
			[]string{"program"},
		),
		sessionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "nfsfetch_rpc_sessions_closed_total",
				Help: "Total number of RPC sessions closed by program and status",
			},
			[]string{"program", "status"},
		),
	}
}

func programLabel(program uint32) string {
	return strconv.FormatUint(uint64(program), 10)
}

func (m *rpcMetrics) RecordCall(program, procedure uint32, queued bool) {
	mode := "sent"
	if queued {
		mode = "queued"
	}
	m.callsTotal.WithLabelValues(programLabel(program), strconv.FormatUint(uint64(procedure), 10), mode).Inc()
}

func (m *rpcMetrics) RecordFlush(program uint32, count int) {
	m.flushedTotal.WithLabelValues(programLabel(program)).Add(float64(count))
}

func (m *rpcMetrics) RecordReply(program uint32, matched bool) {
	outcome := "matched"
	if !matched {
		outcome = "discarded"
	}
	m.repliesTotal.WithLabelValues(programLabel(program), outcome).Inc()
}

func (m *rpcMetrics) RecordBytes(program uint32, direction string, bytes int) {
	m.bytesTotal.WithLabelValues(programLabel(program), direction).Add(float64(bytes))
}

func (m *rpcMetrics) SetPending(program uint32, calls, replies int) {
	label := programLabel(program)
	m.pendingCalls.WithLabelValues(label).Set(float64(calls))
	m.pendingReplies.WithLabelValues(label).Set(float64(replies))
}

func (m *rpcMetrics) RecordSessionClosed(program uint32, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.sessionsClosed.WithLabelValues(programLabel(program), status).Inc()
}

// NewNoopRPCMetrics returns an RPCMetrics that discards everything.
func NewNoopRPCMetrics() RPCMetrics {
	return noopRPCMetrics{}
}

// noopRPCMetrics is a no-op implementation of RPCMetrics with zero overhead.
type noopRPCMetrics struct{}

func (noopRPCMetrics) RecordCall(program, procedure uint32, queued bool)       {}
func (noopRPCMetrics) RecordFlush(program uint32, count int)                   {}
func (noopRPCMetrics) RecordReply(program uint32, matched bool)                {}
func (noopRPCMetrics) RecordBytes(program uint32, direction string, bytes int) {}
func (noopRPCMetrics) SetPending(program uint32, calls, replies int)           {}
func (noopRPCMetrics) RecordSessionClosed(program uint32, err error)           {}
