// Package core holds the launcher domain types, the contracts implemented by
// providers, stores and the artifact pipeline, and the Service that
// orchestrates them. Core must not import any adapter package.
package core
