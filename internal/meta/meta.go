// Package meta holds build metadata.
package meta

// Version is overridden at build time with -ldflags "-X".
var Version = "dev"
