// Copyright 2024 the ice9 Authors. All rights reserved
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

//go:build windows

package server

import "net"

// listenConfig is the default on Windows: net.Listen's TCP sockets are
// already rebindable without an explicit SO_REUSEADDR, and setting it
// would additionally permit the silent multi-listener bind Windows uses
// SO_REUSEADDR for, which this daemon does not want.
var listenConfig net.ListenConfig
