package metricsvc

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ademscil/Event-Management-BE-sub001/core"
)

const namespace = "csi_portal"

// Prometheus records the application metrics in a prometheus registry.
type Prometheus struct {
	registry *prometheus.Registry

	emails     *prometheus.CounterVec
	operations *prometheus.CounterVec
	logins     *prometheus.CounterVec
	sapSyncs   *prometheus.CounterVec
	imports    *prometheus.CounterVec
	importRows *prometheus.CounterVec
}

var _ core.Metrics = (*Prometheus)(nil)

// NewPrometheus registers the application metrics along with the Go and process collectors.
func NewPrometheus(build string) *Prometheus {
	reg := prometheus.NewRegistry()
	p := &Prometheus{
		registry: reg,
		emails: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "emails_total", Help: "Emails sent, by kind and status.",
		}, []string{"kind", "status"}),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "scheduled_operations_total", Help: "Scheduled operation runs, by type and outcome.",
		}, []string{"type", "status"}),
		logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "logins_total", Help: "Login attempts, by result.",
		}, []string{"result"}),
		sapSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "sap_syncs_total", Help: "SAP synchronisations, by status.",
		}, []string{"status"}),
		imports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "imports_total", Help: "Excel imports, by entity and outcome.",
		}, []string{"entity", "ok"}),
		importRows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "import_rows_total", Help: "Rows read by Excel imports, by entity.",
		}, []string{"entity"}),
	}
	buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Name: "build_info", Help: "Build of the running binary.",
		ConstLabels: prometheus.Labels{"build": build},
	})
	buildInfo.Set(1)

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		buildInfo,
		p.emails, p.operations, p.logins, p.sapSyncs, p.imports, p.importRows,
	)
	return p
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }

// Handler serves the registry in the prometheus exposition format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) EmailsSent(kind, status string, n int) {
	p.emails.WithLabelValues(kind, status).Add(float64(n))
}

func (p *Prometheus) ScheduledOperation(kind, status string) {
	p.operations.WithLabelValues(kind, status).Inc()
}

func (p *Prometheus) Login(result string) {
	p.logins.WithLabelValues(result).Inc()
}

func (p *Prometheus) SAPSync(status string) {
	p.sapSyncs.WithLabelValues(status).Inc()
}

func (p *Prometheus) Import(entity string, rows int, ok bool) {
	p.imports.WithLabelValues(entity, strconv.FormatBool(ok)).Inc()
	p.importRows.WithLabelValues(entity).Add(float64(rows))
}
