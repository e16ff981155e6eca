package constants

// ─── Histogram Buckets ─────────────────────────────────────────────
// Pre-defined bucket sets for Prometheus histograms.

// GCPauseBuckets covers 100µs to 10s, the range of young and full collections.
var GCPauseBuckets = []float64{
	0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005,
	0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 10.0,
}

// ─── Common Prometheus Label Sets ──────────────────────────────────
// Pre-defined label slices to avoid repeated allocations.

var LabelsKindNode = []string{LabelKind, LabelNode}
var LabelsDaemonNode = []string{LabelDaemon, LabelNode}
var LabelsCaughtNode = []string{LabelCaught, LabelNode}
var LabelsNode = []string{LabelNode}
var LabelsKind = []string{LabelKind}
var LabelsSubscriber = []string{LabelSubscriber}
var LabelsVMInfo = []string{LabelVersion, LabelAgent, LabelNode}
