// Package tlsutil provides centralized, hardened TLS configuration (TLS
// 1.2+, AEAD-only cipher suites) for every HTTP client in the prompt
// enhancement core: the ML inference client and any server-side listener.
package tlsutil
