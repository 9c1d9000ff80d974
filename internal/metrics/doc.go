// Package metrics provides observability hooks for dexbuilder runs.
//
// # Design Philosophy
//
// This package implements the Null Object pattern to enable metrics collection
// without requiring explicit nil checks throughout the codebase. By default,
// all components use NoopRecorder which implements the Recorder interface with
// no-op methods that inline to nothing at compile time.
//
// # Architecture
//
// The metrics system has three components:
//
//  1. Recorder interface - Defines all metrics operations
//  2. NoopRecorder - Default implementation that does nothing (zero overhead)
//  3. PrometheusRecorder - Registers dexbuilder_* instruments on a registry
//
// # Usage Pattern
//
// Components receive a Recorder through dependency injection:
//
//	type Fetcher struct {
//	    recorder metrics.Recorder
//	}
//
// # Activation
//
// The build command creates a PrometheusRecorder and serves it over HTTP when
// metrics.listen is configured:
//
//	reg := prom.NewRegistry()
//	recorder := metrics.NewPrometheusRecorder(reg)
//	stop := metrics.ServeHTTP(cfg.Metrics.Listen, reg)
//	defer stop()
//
// With no listen address configured the pipeline runs with NoopRecorder and
// pays no collection cost.
package metrics
