package main

// Version is the statiker release version. Overridable at build time:
//
//	go build -ldflags "-X main.Version=v1.2.3" ./cmd/statiker
var Version = "dev"
