// Copyright (c) 2015 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/multialgo/powcoord/rpc/jsonrpc/types"
)

// helpDescs maps each RPC method to its short description.
var helpDescs = map[types.Method]string{
	"authenticate":          "Authenticate the websocket with the RPC server.  This is only required if the credentials were not already supplied via HTTP auth headers.  It must be the first command sent or the websocket will be closed.",
	"debuglevel":            "Dynamically changes the debug logging level.  The levelspec can either a debug level or of the form <subsystem>=<level>,<subsystem2>=<level2>,...  The special value 'show' lists the available subsystems.",
	"generate":              "Generates a set number of blocks (simnet only) and returns a JSON array of their hashes.",
	"getbestblockhash":      "Returns the hash of the best block of the main chain.",
	"getblockcount":         "Returns the number of blocks in the longest block chain.",
	"getblocktemplate":      "Returns a block template for external mining purposes or validates a block proposal.  The algorithm may be selected by the second parameter or the algo field of the request object.",
	"getdifficulty":         "Returns the proof-of-work difficulty of the algorithm as a multiple of the minimum difficulty.",
	"getgenerate":           "Returns if the server is set to generate coins (mine) or not.",
	"gethalvinginfo":        "Returns the state of the supply driven halving schedule and its epochs.",
	"gethashespersec":       "Returns a recent hashes per second performance measurement while generating coins (mining).",
	"getmininginfo":         "Returns a JSON object containing mining-related information for the algorithm.",
	"getminingstats":        "Returns the block reward statistics of every algorithm over the last day and week.",
	"getmultialgoinfo":      "Returns the difficulty, hashrate and last block of every algorithm.",
	"getnetworkhashps":      "Returns the estimated network hashes per second of the algorithm over the block window ending at the given height.",
	"help":                  "Returns a list of all commands or help for a specified command.",
	"notifywork":            "Request notifications for whenever new work is available for miners.",
	"prioritisetransaction": "Accepts the transaction into mined blocks at a higher or lower priority by adjusting the fee it is ranked with.",
	"sendrawtransaction":    "Submits the serialized, hex-encoded transaction to the local peer and relays it to the network.",
	"session":               "Return details regarding a websocket client's current connection session.",
	"setgenerate":           "Set the server to generate coins (mine) or not.",
	"stop":                  "Shutdown powcoord.",
	"stopnotifywork":        "Stop receiving new work notifications.",
	"submitblock":           "Attempts to submit a new serialized, hex-encoded block to the network.  Returns nothing on success or the BIP22 rejection reason.",
	"submitheader":          "Decodes the given hex data as a block header and submits it as a candidate chain tip if valid.  Throws when the header is invalid.",
}

// helpCacher provides a concurrent safe type that provides help and usage for
// the RPC server commands and caches the results for future calls.
type helpCacher struct {
	sync.Mutex
	usage      string
	wsUsage    string
	methodHelp map[types.Method]string
}

// RPCMethodHelp returns an RPC help string for the provided method.
//
// This function is safe for concurrent access.
func (c *helpCacher) RPCMethodHelp(method types.Method) (string, error) {
	c.Lock()
	defer c.Unlock()

	// Return the cached method help if it exists.
	if help, exists := c.methodHelp[method]; exists {
		return help, nil
	}

	desc, ok := helpDescs[method]
	if !ok {
		return "", errors.New("no help description for method " +
			string(method))
	}
	usage, err := dcrjson.MethodUsageText(method)
	if err != nil {
		return "", err
	}
	help := usage + "\n\n" + desc

	// Cache the help text.
	c.methodHelp[method] = help
	return help, nil
}

// RPCUsage returns one-line usage for all support RPC commands.
//
// This function is safe for concurrent access.
func (c *helpCacher) RPCUsage(includeWebsockets bool) (string, error) {
	c.Lock()
	defer c.Unlock()

	// Return the cached usage if it is available.
	if c.usage != "" && !includeWebsockets {
		return c.usage, nil
	}
	if c.wsUsage != "" && includeWebsockets {
		return c.wsUsage, nil
	}

	// Generate a list of one-line usage for every command.
	usageTexts := make([]string, 0, len(rpcHandlers))
	for k := range rpcHandlers {
		usage, err := dcrjson.MethodUsageText(k)
		if err != nil {
			return "", err
		}
		usageTexts = append(usageTexts, usage)
	}

	// Include websockets commands if requested.
	if includeWebsockets {
		usageTexts = append(usageTexts, "authenticate \"username\" \"passphrase\"")
		for k := range wsHandlers {
			if _, ok := rpcHandlers[k]; ok {
				continue
			}
			usage, err := dcrjson.MethodUsageText(k)
			if err != nil {
				return "", err
			}
			usageTexts = append(usageTexts, usage)
		}
	}

	sort.Strings(usageTexts)
	usage := strings.Join(usageTexts, "\n")
	if includeWebsockets {
		c.wsUsage = usage
	} else {
		c.usage = usage
	}
	return usage, nil
}

// newHelpCacher returns a new instance of a help cacher which provides help and
// usage for the RPC server commands and caches the results for future calls.
func newHelpCacher() *helpCacher {
	return &helpCacher{
		methodHelp: make(map[types.Method]string),
	}
}
