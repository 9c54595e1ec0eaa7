// Package metrics holds the pure arithmetic behind every derived number the
// monitor reports: duration and magnitude formatting, per-hour rates and
// fuel burn projection.
//
// All rate helpers return an ok flag instead of dividing by zero; callers
// omit the figure when ok is false.
package metrics
