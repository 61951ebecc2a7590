package internaldefs

import (
	"strconv"
	"strings"

	"github.com/MrEthical07/portalauth"
)

// Namespace prefixes every exported series.
const Namespace = "portalauth"

type CounterDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   portalauth.MetricID
	Name string
	Help string
}

var counterHelp = map[portalauth.MetricID]string{
	portalauth.MetricLoginSuccess:           "Logins that established a session.",
	portalauth.MetricLoginFailure:           "Logins rejected after validation.",
	portalauth.MetricLoginRateLimited:       "Logins refused by the rate limiter.",
	portalauth.MetricLoginValidationFailed:  "Login submissions with invalid fields.",
	portalauth.MetricCSRFRejected:           "Requests rejected for a bad CSRF token.",
	portalauth.MetricCredentialMigrated:     "Stored credentials rewritten to argon2id.",
	portalauth.MetricProfileNotAssigned:     "Logins with no resolvable role profile.",
	portalauth.MetricDataQualityFlag:        "Data quality flags raised during profile resolution.",
	portalauth.MetricStoreUnavailable:       "Operations failed by a store error or timeout.",
	portalauth.MetricSessionCreated:         "Security contexts created.",
	portalauth.MetricSessionCheckSuccess:    "Session checks that admitted the request.",
	portalauth.MetricSessionCheckFailure:    "Session checks that refused the request.",
	portalauth.MetricSessionBindingMismatch: "Sessions presented from a different client.",
	portalauth.MetricSessionInvalidated:     "Security contexts destroyed by invalidation.",
	portalauth.MetricLogout:                 "Logouts.",
	portalauth.MetricCSRFRotated:            "CSRF tokens issued or rotated.",
	portalauth.MetricAuditDropped:           "Audit events dropped by dispatcher backpressure.",
}

// CounterDefs lists every engine counter in id order.
var CounterDefs = buildCounterDefs()

var HistogramDefs = []HistogramDef{
	{
		ID:   portalauth.MetricLoginLatency,
		Name: Namespace + "_" + portalauth.MetricLoginLatency.String(),
		Help: "Login attempt latency.",
	},
}

// HistogramBounds are the bucket upper bounds in seconds. The engine's last
// bucket is unbounded and has no entry here.
var HistogramBounds = buildBounds()

// HistogramBoundSuffix names each engine bucket, "inf" included, for
// backends without labelled buckets.
var HistogramBoundSuffix = buildSuffixes()

func buildCounterDefs() []CounterDef {
	ids := portalauth.MetricIDs()
	out := make([]CounterDef, 0, len(ids))
	for _, id := range ids {
		out = append(out, CounterDef{ID: id, Name: Namespace + "_" + id.String(), Help: counterHelp[id]})
	}
	return out
}

func buildBounds() []float64 {
	out := make([]float64, 0, len(portalauth.HistogramBounds))
	for _, b := range portalauth.HistogramBounds {
		out = append(out, b.Seconds())
	}
	return out
}

func buildSuffixes() []string {
	out := make([]string, 0, BucketCount)
	for _, b := range buildBounds() {
		out = append(out, strings.ReplaceAll(strconv.FormatFloat(b, 'f', -1, 64), ".", "_"))
	}
	return append(out, "inf")
}

// BucketCount is the number of engine histogram buckets.
const BucketCount = len(portalauth.HistogramBounds) + 1

// NormalizeBuckets pads or truncates raw to BucketCount entries.
func NormalizeBuckets(raw []uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	copy(out[:], raw)
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [BucketCount]uint64) [BucketCount]uint64 {
	var out [BucketCount]uint64
	var running uint64
	for i, v := range raw {
		running += v
		out[i] = running
	}
	return out
}
