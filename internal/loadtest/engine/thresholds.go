package engine

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/wesleyorama2/cacheload/internal/loadtest/config"
	"github.com/wesleyorama2/cacheload/internal/loadtest/metrics"
)

// ThresholdResult contains the result of a threshold evaluation.
type ThresholdResult struct {
	Metric     string `json:"metric"`
	Expression string `json:"expression"`
	Passed     bool   `json:"passed"`
	Value      string `json:"value"`
	Message    string `json:"message,omitempty"`
}

var thresholdExprRe = regexp.MustCompile(`^(\w+)\s*([<>=!]+)\s*(.+)$`)

// EvaluateThresholds evaluates every configured threshold against snapshot,
// in config order: duration, failed, reqs, checks, cache hits.
func EvaluateThresholds(th *config.ThresholdsConfig, snapshot *metrics.Snapshot) []ThresholdResult {
	if th == nil {
		return nil
	}

	var results []ThresholdResult

	for _, expr := range th.HTTPReqDuration {
		results = append(results, evaluateDurationThreshold(expr, snapshot))
	}
	for _, expr := range th.HTTPReqFailed {
		results = append(results, evaluateRateThreshold("http_req_failed", expr, snapshot.ErrorRate))
	}
	for _, expr := range th.HTTPReqs {
		results = append(results, evaluateRequestsThreshold(expr, snapshot))
	}
	for _, expr := range th.Checks {
		results = append(results, evaluateRateThreshold("checks", expr, snapshot.Checks.Rate))
	}
	for _, expr := range th.CacheHits {
		results = append(results, evaluateRateThreshold("cache_hits", expr, snapshot.Cache.HitRate))
	}

	return results
}

// AllPassed reports whether every threshold passed.
func AllPassed(results []ThresholdResult) bool {
	for _, tr := range results {
		if !tr.Passed {
			return false
		}
	}
	return true
}

// evaluateDurationThreshold evaluates a latency expression like "p95 < 500ms".
func evaluateDurationThreshold(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     "http_req_duration",
		Expression: expr,
	}

	stat, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	var actualValue time.Duration
	switch stat {
	case "min":
		actualValue = snapshot.Latency.Min
	case "max":
		actualValue = snapshot.Latency.Max
	case "avg":
		actualValue = snapshot.Latency.Mean
	case "med", "p50":
		actualValue = snapshot.Latency.P50
	case "p90":
		actualValue = snapshot.Latency.P90
	case "p95":
		actualValue = snapshot.Latency.P95
	case "p99":
		actualValue = snapshot.Latency.P99
	default:
		result.Message = fmt.Sprintf("unknown metric: %s", stat)
		return result
	}

	thresholdValue, err := time.ParseDuration(valueStr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = actualValue.String()
	result.Passed = compareValues(float64(actualValue), op, float64(thresholdValue))

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %s, threshold: %s %s", stat, actualValue, op, thresholdValue)
	}

	return result
}

// evaluateRateThreshold evaluates a "rate <op> <fraction>" expression.
func evaluateRateThreshold(metric, expr string, rate float64) ThresholdResult {
	result := ThresholdResult{
		Metric:     metric,
		Expression: expr,
	}

	stat, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	if stat != "rate" {
		result.Message = fmt.Sprintf("%s only supports 'rate' metric, got: %s", metric, stat)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	result.Value = fmt.Sprintf("%.4f", rate)
	result.Passed = compareValues(rate, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("rate is %.4f, threshold: %s %.4f", rate, op, thresholdValue)
	}

	return result
}

// evaluateRequestsThreshold evaluates a request count/rate threshold expression.
func evaluateRequestsThreshold(expr string, snapshot *metrics.Snapshot) ThresholdResult {
	result := ThresholdResult{
		Metric:     "http_reqs",
		Expression: expr,
	}

	stat, op, valueStr, err := parseThresholdExpression(expr)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse expression: %v", err)
		return result
	}

	thresholdValue, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		result.Message = fmt.Sprintf("failed to parse threshold value: %v", err)
		return result
	}

	var actualValue float64
	switch stat {
	case "count":
		actualValue = float64(snapshot.TotalRequests)
	case "rate":
		actualValue = snapshot.RPS
	default:
		result.Message = fmt.Sprintf("http_reqs only supports 'count' or 'rate' metrics, got: %s", stat)
		return result
	}

	result.Value = fmt.Sprintf("%.2f", actualValue)
	result.Passed = compareValues(actualValue, op, thresholdValue)

	if !result.Passed {
		result.Message = fmt.Sprintf("%s is %.2f, threshold: %s %.2f", stat, actualValue, op, thresholdValue)
	}

	return result
}

// parseThresholdExpression parses an expression like "p95 < 500ms".
func parseThresholdExpression(expr string) (stat, op, value string, err error) {
	matches := thresholdExprRe.FindStringSubmatch(strings.TrimSpace(expr))
	if len(matches) != 4 {
		return "", "", "", fmt.Errorf("invalid expression format: %s", expr)
	}

	return matches[1], matches[2], strings.TrimSpace(matches[3]), nil
}

// compareValues compares two values using the given operator.
func compareValues(actual float64, op string, threshold float64) bool {
	switch op {
	case "<":
		return actual < threshold
	case "<=":
		return actual <= threshold
	case ">":
		return actual > threshold
	case ">=":
		return actual >= threshold
	case "==", "=":
		return actual == threshold
	case "!=", "<>":
		return actual != threshold
	default:
		return false
	}
}
