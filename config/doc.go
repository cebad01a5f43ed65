// Copyright 2026 AgentFlow Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package config manages configuration for the prompt-enhancement core.

Config aggregates Cache, Database, Inference, Classifier, Engine,
Orchestrator, Log and Process settings. Values resolve in three layers,
later layers winning: built-in defaults, an optional YAML file, then
environment variables under the PROMPTENHANCER_ prefix.

	cfg, err := config.NewLoader().
	    WithConfigPath("config.yaml").
	    WithEnvPrefix("PROMPTENHANCER").
	    Load()
*/
package config
