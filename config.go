package main

import (
	"os"
	"path/filepath"
	"strconv"
)

var (
	defaultCache  string = envCache()
	defaultStrict bool   = envStrict()
)

func envCache() string {
	if e := os.Getenv("UNTAR_CACHE"); e != "" {
		return filepath.Clean(e)
	}
	return "" // no catalog
}

func envStrict() bool {
	if e := os.Getenv("UNTAR_STRICT"); e != "" {
		b, err := strconv.ParseBool(e)
		if err != nil {
			panic("malformed UNTAR_STRICT environment variable, should be 0 or 1: " + e)
		}
		return b
	}
	return true
}
