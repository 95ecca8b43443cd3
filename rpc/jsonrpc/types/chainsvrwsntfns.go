// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2015-2020 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// NOTE: This file is intended to house the RPC websocket notifications that are
// supported by a chain server.

package types

import "github.com/decred/dcrd/dcrjson/v4"

const (
	// NewWorkNtfnMethod is the method used for notifications from the chain
	// server that the work handed out to miners changed.
	NewWorkNtfnMethod Method = "newwork"
)

// NewWorkNtfn defines the newwork JSON-RPC notification.  Miners receiving
// it should request a new template with the long-poll id.
type NewWorkNtfn struct {
	Hash       string
	Height     int64
	LongPollID string
}

// NewNewWorkNtfn returns a new instance which can be used to issue a newwork
// JSON-RPC notification.
func NewNewWorkNtfn(hash string, height int64, longPollID string) *NewWorkNtfn {
	return &NewWorkNtfn{
		Hash:       hash,
		Height:     height,
		LongPollID: longPollID,
	}
}

func init() {
	// The commands in this file are only usable by websockets and are
	// notifications.
	flags := dcrjson.UFWebsocketOnly | dcrjson.UFNotification

	dcrjson.MustRegister(NewWorkNtfnMethod, (*NewWorkNtfn)(nil), flags)
}
