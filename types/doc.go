// Copyright (c) AgentFlow Authors.
// Licensed under the MIT License.

// Package types holds the shared data model for the prompt-enhancement
// core: the request/response wire shapes, the intent and technique
// records that flow between the classifier and the engine, and the
// structured error taxonomy. It depends on nothing else in the module
// so every other package can import it without cycles.
package types
