// Package main trains one piano-roll autoencoder variant (ae, vae, vae-flow or wae) on
// the configured corpus, checkpointing every epoch, exporting test reconstructions as
// MIDI and streaming the loss curves to the log and, when configured, to MongoDB.
package main
