// Copyright (c) 2019-2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package types implements concrete types for marshalling to and from the
powcoord JSON-RPC commands, return values, and notifications.

The commands are registered with dcrjson under the Method type of this
package, so requests are parsed with

	cmd, err := dcrjson.ParseParams(types.Method(req.Method), req.Params)

and marshalled with dcrjson.MarshalCmd.  Optional parameters are pointers and
parameters with a jsonrpcdefault tag are assigned their default when omitted.

The websocket-only commands (authenticate, notifywork, stopnotifywork and
session) and the work notification are registered with the
dcrjson.UFWebsocketOnly flag.
*/
package types
