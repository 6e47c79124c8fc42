// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package pathsearch resolves a bare executable name against the target
// OS's PATH search rules: ';'-delimited directories joined to the program
// name with '\', trying the name as given and then with a ".exe" suffix.
//
// This is deliberately not exec.LookPath, which uses the host build
// platform's PATH separator (':' on UNIX) and suffix rules (none, or
// PATHEXT on Windows as actually configured), neither of which is what the
// wire protocol's application_path field means: it is always resolved
// against the daemon's own environment using the fixed Windows 9x rules,
// regardless of what platform the daemon binary happens to be built for.
package pathsearch
