package core

// Metrics records application events. services/metrics implements it on top of prometheus.
type Metrics interface {
	EmailsSent(kind, status string, n int)
	ScheduledOperation(kind, status string)
	Login(result string)
	SAPSync(status string)
	Import(entity string, rows int, ok bool)
}

// NopMetrics discards everything.
type NopMetrics struct{}

var _ Metrics = NopMetrics{}

func (NopMetrics) EmailsSent(string, string, int) {}
func (NopMetrics) ScheduledOperation(string, string) {}
func (NopMetrics) Login(string) {}
func (NopMetrics) SAPSync(string) {}
func (NopMetrics) Import(string, int, bool) {}
