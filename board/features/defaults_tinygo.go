//go:build tinygo

package features

// On the device the build tags are the selection.
const defaultFlags = Compiled
