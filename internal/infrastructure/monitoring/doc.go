/*
Package monitoring provides performance monitoring and metrics collection.

# Overview

This package implements Prometheus-based metrics collection for the kernel
daemon, tracking HTTP requests, process lifecycle, and the IPC fast path.

# Features

- HTTP request metrics (latency, throughput)
- Process lifecycle metrics (live, spawned, restarted)
- IPC metrics (discoveries, notifies, upcalls, silent drops)
- MPU and grant accounting
- WebSocket connection metrics
- System metrics (uptime)

# Usage

	// Create metrics collector
	metrics := monitoring.NewMetrics()

	// Add middleware to Gin router
	router.Use(monitoring.Middleware(metrics))

	// Record custom metrics
	metrics.RecordNotify("service", "enqueued")
	metrics.RecordSilentDrop("initiator_gone")

# Metrics Endpoint

Expose metrics via the standard Prometheus endpoint:

	import "github.com/prometheus/client_golang/prometheus/promhttp"
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
*/
package monitoring
