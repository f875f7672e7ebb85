package sessionkit

// Version is overridden at build time with
// -ldflags "-X github.com/aretw0/sessionkit.Version=<version>".
var Version = "0.1.0-dev"
