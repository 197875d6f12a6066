// SPDX-License-Identifier: Apache-2.0
// Gnosis Error Handling & Observability Dashboards
// This file documents dashboard templates for OpenTelemetry OTEL UI or Grafana.
//
// DASHBOARD: Error Rate & Recovery
//   Shows error trends over time with breakdown by error code and component.
//
//   Queries:
//   - gnosis.errors.total{error.code} (rate 5m)
//     Metric: Error rate by error code
//     Display: Line chart with legend (TOOL_FAILURE, TIMEOUT, RATE_LIMITED, LLM_ERROR, VECTOR_STORE_ERROR, etc)
//     Alert Threshold: > 10 errors/min for INTERNAL_ERROR or BATCH_JOB_FAILED
//
//   - gnosis.errors.recovered{error.code} (rate 5m)
//     Metric: Recovery rate by error code
//     Display: Stacked area chart
//     Goal: errors.recovered / errors.total > 80% (recovery rate)
//
//   - gnosis.errors.rate{component}
//     Metric: Error rate per component (errors/min)
//     Display: Single stat with gauge
//     Threshold: Warning > 5/min, Critical > 20/min
//
// DASHBOARD: Component Health
//   Shows the health status of the agent loop and its dependencies. The serve
//   command polls every registered health checker on a 30s interval and
//   publishes the result per component (agent, llm, vectorstore).
//
//   Queries:
//   - gnosis.health.status{component}
//     Metric: Current health (0=unhealthy, 1=degraded, 2=healthy)
//     Display: Status grid with color coding
//     Color Map: Red (0), Yellow (1), Green (2)
//
//   - gnosis.circuitbreaker.state{component}
//     Metric: Circuit breaker state (0=open, 1=half-open, 2=closed)
//     Display: Status panels per component (stock_tool is the only breaker today)
//     Meaning:
//       OPEN (0): Circuit is broken, tool returns an error message, requests rejected
//       HALF_OPEN (1): Testing recovery, allowing limited requests
//       CLOSED (2): Normal operation, requests flowing
//
// DASHBOARD: Agent Run Performance
//   Latency breakdown of chat runs into LLM time and tool time.
//
//   Queries:
//   - gnosis.agent.runs (rate 5m) vs gnosis.agent.errors (rate 5m)
//     Metric: Run throughput and failure count
//     Display: Dual line chart
//
//   - gnosis.agent.run_latency_ms (p50/p95/p99)
//     Metric: End-to-end run latency histogram
//     Display: Heatmap or percentile lines
//
//   - gnosis.agent.llm_latency_ms vs gnosis.agent.tool_latency_ms
//     Metric: Where run time is spent
//     Display: Stacked percentile chart
//     Insight: Is a slow run the model or a slow tool?
//
// DASHBOARD: Error Details
//   Deep dive into specific error patterns and recovery strategies.
//
//   Queries:
//   - gnosis.errors.total by (error.code, component, recoverable)
//     Breakdown: Error code × component × recoverability
//     Display: Heatmap or table
//     Insight: Which components have non-recoverable errors?
//
//   - gnosis.errors.total{error.code="TIMEOUT"} vs gnosis.circuitbreaker.state
//     Correlation: Timeouts vs circuit breaker trips
//     Display: Dual axis line chart
//     Insight: Do stock API timeouts trigger breaker opens?
//
// ALERT RULES (Prometheus/AlertManager format):
//
// Alert 1: High Error Rate
//   Name: GnosisHighErrorRate
//   Condition: rate(gnosis.errors.total[5m]) > 10
//   Duration: 2m
//   Severity: critical
//   Message: "Gnosis error rate {{ $value }} errors/sec, threshold 10"
//   Action: Page on-call engineer, check service logs
//
// Alert 2: Low Recovery Rate
//   Name: GnosisLowRecoveryRate
//   Condition: rate(gnosis.errors.recovered[5m]) / rate(gnosis.errors.total[5m]) < 0.8
//   Duration: 5m
//   Severity: warning
//   Message: "Error recovery rate {{ $value }}%, goal 80%"
//   Action: Review retry/fallback configurations
//
// Alert 3: Circuit Breaker Open
//   Name: GnosisCircuitBreakerOpen
//   Condition: gnosis.circuitbreaker.state{component=~".*"} == 0
//   Duration: 1m
//   Severity: critical
//   Message: "Circuit breaker OPEN on {{ $labels.component }}, tool calls failing fast"
//   Action: Investigate component health, check upstream API
//
// Alert 4: Component Degraded
//   Name: GnosisComponentDegraded
//   Condition: gnosis.health.status{component=~".*"} == 1
//   Duration: 3m
//   Severity: warning
//   Message: "Component {{ $labels.component }} DEGRADED"
//   Action: Monitor for further degradation or recovery
//
// Alert 5: Component Unhealthy
//   Name: GnosisComponentUnhealthy
//   Condition: gnosis.health.status{component=~".*"} == 0
//   Duration: 1m
//   Severity: critical
//   Message: "Component {{ $labels.component }} UNHEALTHY"
//   Action: Immediate investigation, possible failover needed
//
// Alert 6: Non-Recoverable Errors
//   Name: GnosisNonRecoverableErrors
//   Condition: rate(gnosis.errors.total{recoverable="false"}[5m]) > 1
//   Duration: 2m
//   Severity: critical
//   Message: "{{ $value }} non-recoverable errors/sec"
//   Action: Check for bugs or configuration issues
//
// OTEL QUERY EXAMPLES for OTEL UI or Grafana:
//
// 1. Error Rate by Code (5-minute)
//    Metric QL: rate(gnosis_errors_total[5m]) by (error_code)
//    PromQL: rate(gnosis.errors.total{error.code=~".+"}[5m]) group by (error.code)
//
// 2. Recovery Success Percentage
//    PromQL: (rate(gnosis.errors.recovered[5m]) / rate(gnosis.errors.total[5m])) * 100
//    Display: Single stat, goal >= 80%
//
// 3. Top Components by Error Count
//    PromQL: topk(5, sum(rate(gnosis.errors.total[5m])) by (component))
//    Display: Bar chart
//
// 4. Run Latency p95 (24h)
//    PromQL: histogram_quantile(0.95, rate(gnosis.agent.run_latency_ms[5m]))
//    Range: 24h
//    Display: Area chart
//
// 5. Circuit Breaker State Changes
//    PromQL: rate(changes(gnosis.circuitbreaker.state[5m])[1h:5m]) by (component)
//    Display: Line chart, shows how often the stock breaker flips
//
// INTEGRATION PATTERNS:
//
// 1. Auto-Recovery Tracking:
//    - Start span before operation
//    - On failure: RecordErrorMetric(ctx, err, component)
//    - On retry success: RecordRecovery(ctx, errorCode)
//    - Dashboard shows: errors vs recoveries ratio
//
// 2. Health-Based Alerting:
//    - Query gnosis.health.status{component} for current state
//    - Alert when the vectorstore checker reports UNHEALTHY (0): ingest and
//      retrieval are both down until Qdrant recovers
//    - The agent checker reports DEGRADED (1) while runs are in flight with
//      a saturated iteration budget
//
// 3. SLO Tracking:
//    - Error rate SLO: errors/min < 5
//    - Recovery rate SLO: recovered/errors > 80% (resilience goal)
//    - Component health SLO: all components HEALTHY >= 95% of time
//
// 4. Cost Optimization:
//    - Monitor RATE_LIMITED errors to adjust embedding batch thresholds
//    - Monitor TOOL_FAILURE to identify expensive/unreliable tools
//    - Compare llm_latency_ms across models when tuning llm.model
//
package internal

// This file is documentation only.
// See pkg/telemetry/metrics.go for implementation.
