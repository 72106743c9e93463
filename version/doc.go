// Package version reports the build of a conveyor host.
//
//	go build -ldflags "-X github.com/kbukum/justconveyor/version.Version=1.0.0"
package version
