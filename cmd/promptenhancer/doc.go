/*
Package main provides the promptenhancer CLI entry point.

# Overview

cmd/promptenhancer wires the five components (C1 inference client, C2
cache layer, C3 intent classifier, C4 technique registry+engine, C5
enhancement orchestrator) into a runnable process and exposes
enhance/enhance_batch as subcommands. There is no HTTP edge: callers
either embed the orchestrator directly as a library or drive it
through this CLI.

# Commands

  - enhance   run one prompt through the pipeline, print the JSON response
  - batch     run a JSON-encoded batch request from stdin
  - migrate   apply the persistence adapter's schema (AutoMigrate)
  - version   print build metadata

# Lifecycle

buildCore performs init(): cache client, database pool + AutoMigrate,
inference client, technique registry, classifier, orchestrator, in that
order. core.shutdown() drains the orchestrator's async history queue
before closing the database pool and cache client, matching §6's
init()/shutdown() contract.
*/
package main
