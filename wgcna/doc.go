// Package wgcna is a compact weighted gene co-expression network builder. It
// computes a soft-thresholded adjacency, the weighted topological overlap
// (TOM), and cuts modules as connected components of the TOM graph, merging
// modules whose eigengenes are nearly collinear.
//
// It satisfies multiwgcna.Builder. It does not reproduce WGCNA's dynamic tree
// cut; any Builder can be substituted where fidelity to that algorithm
// matters.
package wgcna
