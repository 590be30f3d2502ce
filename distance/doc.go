// Package distance provides the vector distance functions used for
// candidate scoring. Every function returned by ForMetric orders vectors so
// that a smaller result means a closer match, which is the contract the
// graph search relies on.
package distance
