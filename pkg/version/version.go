package version

// Version is the release tag reported by the binaries and the API.
const Version = "v0.3.1"
