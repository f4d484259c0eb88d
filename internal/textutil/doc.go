// Package textutil provides text helpers for file naming, hashtag cleanup,
// and display labels.
package textutil
