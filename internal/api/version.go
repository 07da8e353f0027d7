package api

// Just define a constant version here
const wasmmeterVersion = "1.0.0"

// LibwasmmeterVersion returns the version of this library as a string.
func LibwasmmeterVersion() string {
	return wasmmeterVersion
}
