// Package main analyzes the latent space of a trained piano-roll model: it extracts
// (or loads the cached) latent corpus, projects it with PCA and t-SNE into CSV files
// coloured by every symbolic feature, decodes dimension traversals and latent vector
// arithmetic to MIDI and trains one probe per feature on the latent codes.
package main
