// Package hpyp implements a hierarchical Pitman-Yor process engine for
// discrete symbol sequences: a context trie of Chinese-restaurant seating
// arrangements with several interchangeable representations, Gibbs training
// sweeps with hyperparameter resampling, and a binary persistence format
// that reproduces predictions exactly after reload.
package hpyp
