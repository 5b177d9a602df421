// Package risk produces scored risk analyses from incidents and risk
// indicators. It defines the Analyzer (input gathering, persistence), the
// Scorer strategy interface with LLM and heuristic implementations, and the
// FallbackScorer that degrades from the LLM path to the heuristic path on
// any error.
package risk
