// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2022 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
powcoord is the mining coordinator of a multi-algorithm proof-of-work chain.
It tracks the best chain, accounts per-algorithm difficulty and rewards,
follows the supply driven halving schedule and serves block templates to
external miners over JSON-RPC with long polling and websocket notifications.

The long form of all of the options (except -C) can be specified in a
configuration file that is automatically parsed when powcoord starts up.  By
default, the configuration file is located at ~/.powcoord/powcoord.conf on
POSIX-style operating systems and %LOCALAPPDATA%\Powcoord\powcoord.conf on
Windows.  A commented sample is written there on first start.

Usage:

	powcoord [OPTIONS]

Application Options:

	-V, --version                Display version information and exit
	-A, --appdata=               Path to application home directory
	-C, --configfile=            Path to configuration file
	-b, --datadir=               Directory to store the halving state
	    --logdir=                Directory to log output
	    --logrolls=              Number of rotated log files to keep
	    --nofilelogging          Disable file logging
	-d, --debuglevel=            Logging level for all subsystems {trace,
	                             debug, info, warn, error, critical} -- You
	                             may also specify <subsystem>=<level>,... to
	                             set the log level for individual subsystems
	                             -- Use show to list available subsystems
	    --profile=               Enable HTTP profiling on given [addr:]port
	    --cpuprofile=            Write CPU profile to the specified file
	    --memprofile=            Write mem profile to the specified file
	    --testnet                Use the test network
	    --simnet                 Use the simulation test network
	    --rpclisten=             Add an interface/port to listen for RPC
	                             connections (default port: 21337, testnet:
	                             21338, simnet: 21339)
	-u, --rpcuser=               Username for RPC connections
	-P, --rpcpass=               Password for RPC connections
	    --rpclimituser=          Username for limited RPC connections
	    --rpclimitpass=          Password for limited RPC connections
	    --promptpass             Prompt for the RPC password on the terminal
	    --rpcmaxclients=         Max number of RPC clients for standard
	                             connections (default: 10)
	    --rpcmaxwebsockets=      Max number of RPC websocket connections
	                             (default: 25)
	    --rpcmaxconcurrentreqs=  Max number of concurrent RPC requests
	                             (default: 20)
	    --rpcbackcompatible      Serve block templates to clients that do not
	                             declare support for every required deployment
	    --notls                  Disable TLS for the RPC server (localhost
	                             listeners only)
	    --rpccert=               File containing the certificate file
	    --rpckey=                File containing the certificate key
	    --tlscurve=              Curve to use when generating TLS keypairs
	                             (default: P-256)
	    --altdnsnames=           Additional DNS names for the generated RPC
	                             server certificate
	    --miningaddr=            Address the coinbase pays the miner reward to
	    --miningalgo=            Algorithm of requests that do not name one
	                             (default: sha256d)
	    --payeeaddr=             Address every coinbase must pay the payee
	                             share of the subsidy to
	    --payeepercent=          Percentage of the max block subsidy paid to
	                             the payee address (default: 10)
	    --blockmaxweight=        Maximum block weight of templates
	    --blockmaxsigops=        Maximum signature operation cost of templates
	    --coinbaseflags=         Text appended to the coinbase signature script
	    --generate               Generate (mine) coins using the CPU
	    --genproclimit=          Number of CPU workers used by --generate
	    --genalgo=               Algorithm the CPU miner rotates through
	    --maxtipage=             Age of the best block after which no work is
	                             handed out (default: 0, disabled)
	    --longpollmaxwait=       Longest a long poll waits without a new tip;
	                             above 1m the mempool is rechecked every 10s
	                             (default: 0, return at the 1m timeout)
	    --minrelaytxfee=         The minimum transaction fee in coins/kB
	    --maxtxfee=              The highest fee in coins a transaction may pay
	    --acceptnonstd           Accept non-standard transactions

Help Options:

	-h, --help                   Show this help message
*/
package main
