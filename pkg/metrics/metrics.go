package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// 批次結果標籤
const (
	OutcomeCommitted = "committed"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
	OutcomeReplayed  = "replayed"
	OutcomeEmpty     = "empty"
)

// Ledger 帳務相關的 Prometheus 指標
//
// 方法皆可在 nil receiver 上呼叫，未啟用指標時直接略過
type Ledger struct {
	batches      *prometheus.CounterVec
	transactions *prometheus.CounterVec
	lockWait     prometheus.Histogram
}

// New 建立指標並註冊到 reg
func New(reg prometheus.Registerer) *Ledger {
	m := &Ledger{
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "batches_total",
			Help:      "Transaction batches by outcome.",
		}, []string{"outcome"}),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "transactions_applied_total",
			Help:      "Applied transactions by kind.",
		}, []string{"kind"}),
		lockWait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "lock_wait_seconds",
			Help:      "Time spent acquiring the exclusive account lock.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}),
	}
	if reg != nil {
		reg.MustRegister(m.batches, m.transactions, m.lockWait)
	}
	return m
}

// ObserveBatch 記錄一個批次結果
func (m *Ledger) ObserveBatch(outcome string) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(outcome).Inc()
}

// ObserveTransaction 記錄一筆已提交的交易
func (m *Ledger) ObserveTransaction(kind string) {
	if m == nil {
		return
	}
	m.transactions.WithLabelValues(kind).Inc()
}

// ObserveLockWait 記錄取得帳戶鎖的等待時間
func (m *Ledger) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.lockWait.Observe(d.Seconds())
}
