// Package snvindex maintains a sparse pairwise SNV distance matrix over
// a growing collection of reference-mapped bacterial consensus
// sequences, and exposes neighbour, multiple-alignment, mixture, and
// clustering queries over it.
package snvindex
