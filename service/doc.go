// Package service orchestrates the core components of the ingest
// pipeline — pool, handoff ring, overflow journal, and egress
// producer.
//
// It provides a single Submit entry point, decoupled from the Kafka
// transports feeding and draining it.
package service
