// Package normalisers provides implementations of the Normaliser interface
// for the content formats providers return. Each normaliser knows how to
// turn one format into readable text plus embedded code and images.
//
// Normalisers are registered with the Registry at startup; the hit
// subpackage builds items on top of them.
package normalisers
