// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package pathsearch

import (
	"os"
	"strings"
)

// Search looks for programName in each directory named by the PATH
// environment variable, in order. For each non-empty ';'-delimited element
// it first tries "element\programName", then "element\programName.exe",
// returning the first that names an existing file. It returns ok=false if
// PATH is unset or no element yields a match.
//
// Callers are expected to pre-check, per spec: Search should only be
// invoked when programName contains no '\' and does not already resolve as
// a file relative to the server's current directory.
func Search(programName string) (resolved string, ok bool) {
	path, found := os.LookupEnv("PATH")
	if !found {
		return "", false
	}

	for _, elem := range strings.Split(path, ";") {
		if elem == "" {
			continue
		}

		candidate := elem + "\\" + programName
		if fileExists(candidate) {
			return candidate, true
		}

		candidate += ".exe"
		if fileExists(candidate) {
			return candidate, true
		}
	}

	return "", false
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
