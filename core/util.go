package core

import (
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// NowFunc is the clock used by the domain packages. Tests may swap it.
var NowFunc = time.Now

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// OnlyDigits drops every non-digit rune from `s`.
func OnlyDigits(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, s)
}

// Getwd tries to find the project root, ie. the closest parent directory holding a go.mod.
// go-test changes the working directory to the test package being run during tests,
// so relative paths (config/, assets/) have to be resolved from the root.
// Falls back to the current working directory when no go.mod is found (deployed binaries).
func Getwd() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	currDir := wd
	for {
		if fi, err := os.Stat(filepath.Join(currDir, "go.mod")); err == nil && !fi.IsDir() {
			return currDir
		}
		newDir := filepath.Dir(currDir)
		if newDir == currDir {
			return wd
		}
		currDir = newDir
	}
}
