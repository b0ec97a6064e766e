package render

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "wikidoc"

// mathFailuresTotal counts formulas replaced by their literal source.
// Labels:
//   - mode: inline or display
//   - reason: error or panic
var mathFailuresTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "render",
		Name:      "math_failures_total",
		Help:      "Formulas that failed to convert to MathML",
	},
	[]string{"mode", "reason"},
)

func recordMathFailure(display bool, reason string) {
	mode := "inline"
	if display {
		mode = "display"
	}
	mathFailuresTotal.WithLabelValues(mode, reason).Inc()
}
