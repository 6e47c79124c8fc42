// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package client

import "strings"

// BuildCommandLine joins args into a single command-line string using the
// same backslash-run/quote-escaping rules the Windows CRT's argument
// parser expects: an argument is left bare if it contains neither
// whitespace nor a quote, and otherwise is wrapped in quotes with
// internal quotes and runs of backslashes immediately preceding a quote
// doubled, so the daemon's CommandLineToArgvW-compatible parser (see
// session.splitCommandLine, its inverse) recovers exactly args.
func BuildCommandLine(args []string) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = quoteArg(a)
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s != "" && !strings.ContainsAny(s, " \t\"") {
		return s
	}

	var b strings.Builder
	b.WriteByte('"')
	backslashes := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '\\':
			backslashes++
		case '"':
			b.WriteString(strings.Repeat(`\`, backslashes*2+1))
			b.WriteByte('"')
			backslashes = 0
		default:
			if backslashes > 0 {
				b.WriteString(strings.Repeat(`\`, backslashes))
				backslashes = 0
			}
			b.WriteByte(s[i])
		}
	}
	if backslashes > 0 {
		b.WriteString(strings.Repeat(`\`, backslashes*2))
	}
	b.WriteByte('"')
	return b.String()
}
