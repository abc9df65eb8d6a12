// Package catalog lists the model weights on disk and the per-model prompt
// templates stored in models.toml.
package catalog
