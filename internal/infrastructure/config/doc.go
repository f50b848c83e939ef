// Package config provides 12-factor configuration management for the kernel
// daemon.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags can override environment variables for development flexibility.
//
// Configuration Sections:
//   - Server: HTTP server settings (port, host)
//   - Kernel: process-table and queue limits, grant budget
//   - Boot: board manifest path
//   - Logging: log level and output format
//   - RateLimit: per-IP rate limiting configuration
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("Kernel running on %s:%s\n", cfg.Server.Host, cfg.Server.Port)
//
// Environment Variables:
//   - PORT, HOST, BOOT_MANIFEST
//   - KERNEL_MAX_PROCS, KERNEL_TASK_QUEUE_DEPTH, KERNEL_UPCALL_QUEUE_DEPTH
//   - KERNEL_PROC_MEM_BYTES, KERNEL_GRANT_BUDGET
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST
package config
