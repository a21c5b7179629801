// Package html provides a Normaliser implementation for HTML pages.
// It extracts readable text content from HTML, dropping scripts, styles
// and navigation chrome, and collects <pre> code blocks and image URLs.
package html
