// Copyright (c) 2014 The btcsuite developers
// Copyright (c) 2015-2017 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package types

import "github.com/decred/dcrd/dcrjson/v4"

// Commands only accepted over the /ws endpoint.
type (
	// AuthenticateCmd authenticates a websocket connection whose upgrade
	// request carried no credentials.  It must be the first request.
	AuthenticateCmd struct {
		Username   string
		Passphrase string
	}

	// NotifyWorkCmd registers the connection for newwork notifications.
	NotifyWorkCmd struct{}

	// StopNotifyWorkCmd cancels a notifywork registration.
	StopNotifyWorkCmd struct{}

	// SessionCmd returns the identifier of the websocket session.
	SessionCmd struct{}
)

// NewAuthenticateCmd returns a new authenticate command.
func NewAuthenticateCmd(username, passphrase string) *AuthenticateCmd {
	return &AuthenticateCmd{Username: username, Passphrase: passphrase}
}

// NewNotifyWorkCmd returns a new notifywork command.
func NewNotifyWorkCmd() *NotifyWorkCmd { return &NotifyWorkCmd{} }

// NewStopNotifyWorkCmd returns a new stopnotifywork command.
func NewStopNotifyWorkCmd() *StopNotifyWorkCmd { return &StopNotifyWorkCmd{} }

// NewSessionCmd returns a new session command.
func NewSessionCmd() *SessionCmd { return &SessionCmd{} }

func init() {
	wsCmds := []struct {
		method Method
		cmd    interface{}
	}{
		{"authenticate", (*AuthenticateCmd)(nil)},
		{"notifywork", (*NotifyWorkCmd)(nil)},
		{"stopnotifywork", (*StopNotifyWorkCmd)(nil)},
		{"session", (*SessionCmd)(nil)},
	}
	for _, c := range wsCmds {
		dcrjson.MustRegister(c.method, c.cmd, dcrjson.UFWebsocketOnly)
	}
}
