// Copyright (c) 2019 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package rpcserver implements the JSON-RPC API that miners and pools use to
obtain work and submit solutions.

Requests are accepted over HTTP POST on the root path, with HTTP Basic
authentication for an admin and an optional limited user, and over websockets
on /ws where clients may register for newwork notifications that are sent
whenever the chain tip changes.  The server also exposes the process metrics
on /metrics.

The handlers translate the typed errors of the mining packages into JSON-RPC
error codes compatible with the clients of bitcoind-style mining interfaces.
*/
package rpcserver
