//go:build !amd64 && !arm64

package distance

// No wide kernel on this architecture; scalarKernel (the package default)
// is both the reference and the production path.
