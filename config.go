// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2024 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
	flags "github.com/jessevdk/go-flags"
	"github.com/multialgo/powcoord/internal/algo"
	"github.com/multialgo/powcoord/internal/memchain"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/internal/version"
	"golang.org/x/term"
)

const (
	defaultConfigFilename       = "powcoord.conf"
	defaultDataDirname          = "data"
	defaultLogLevel             = "info"
	defaultLogDirname           = "logs"
	defaultLogFilename          = "powcoord.log"
	defaultMaxLogRolls          = 8
	defaultMaxRPCClients        = 10
	defaultMaxRPCWebsockets     = 25
	defaultMaxRPCConcurrentReqs = 20
	defaultMiningAlgo           = "sha256d"
	defaultGenerateWorkers      = 1
	defaultMinRelayTxFee        = btcutil.Amount(1000)
	defaultMaxTxFee             = btcutil.Amount(1e7)
	defaultTLSCurve             = "P-256"
	minBlockMaxWeight           = 8000
)

var (
	defaultHomeDir     = btcutil.AppDataDir("powcoord", false)
	defaultConfigFile  = filepath.Join(defaultHomeDir, defaultConfigFilename)
	defaultDataDir     = filepath.Join(defaultHomeDir, defaultDataDirname)
	defaultRPCKeyFile  = filepath.Join(defaultHomeDir, "rpc.key")
	defaultRPCCertFile = filepath.Join(defaultHomeDir, "rpc.cert")
	defaultLogDir      = filepath.Join(defaultHomeDir, defaultLogDirname)
)

// config defines the configuration options for powcoord.
//
// See loadConfig for details on the configuration load process.
type config struct {
	// General application behavior.
	ShowVersion   bool   `short:"V" long:"version" description:"Display version information and exit"`
	HomeDir       string `short:"A" long:"appdata" description:"Path to application home directory" env:"POWCOORD_APPDATA"`
	ConfigFile    string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir       string `short:"b" long:"datadir" description:"Directory to store the halving state"`
	LogDir        string `long:"logdir" description:"Directory to log output"`
	MaxLogRolls   int    `long:"logrolls" description:"Number of rotated log files to keep"`
	NoFileLogging bool   `long:"nofilelogging" description:"Disable file logging"`
	DebugLevel    string `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile       string `long:"profile" description:"Enable HTTP profiling on given [addr:]port -- NOTE port must be between 1024 and 65535"`
	CPUProfile    string `long:"cpuprofile" description:"Write CPU profile to the specified file"`
	MemProfile    string `long:"memprofile" description:"Write mem profile to the specified file"`

	// Network selection.
	TestNet bool `long:"testnet" description:"Use the test network"`
	SimNet  bool `long:"simnet" description:"Use the simulation test network"`

	// RPC server options.
	RPCListeners         []string `long:"rpclisten" description:"Add an interface/port to listen for RPC connections (default port: 21337, testnet: 21338, simnet: 21339)"`
	RPCUser              string   `short:"u" long:"rpcuser" description:"Username for RPC connections"`
	RPCPass              string   `short:"P" long:"rpcpass" default-mask:"-" description:"Password for RPC connections"`
	RPCLimitUser         string   `long:"rpclimituser" description:"Username for limited RPC connections"`
	RPCLimitPass         string   `long:"rpclimitpass" default-mask:"-" description:"Password for limited RPC connections"`
	PromptPass           bool     `long:"promptpass" description:"Prompt for the RPC password on the terminal when it is not configured"`
	RPCMaxClients        int      `long:"rpcmaxclients" description:"Max number of RPC clients for standard connections"`
	RPCMaxWebsockets     int      `long:"rpcmaxwebsockets" description:"Max number of RPC websocket connections"`
	RPCMaxConcurrentReqs int      `long:"rpcmaxconcurrentreqs" description:"Max number of concurrent RPC requests that may be processed concurrently"`
	RPCBackCompatible    bool     `long:"rpcbackcompatible" description:"Serve block templates to clients that do not declare support for every required deployment"`
	DisableTLS           bool     `long:"notls" description:"Disable TLS for the RPC server -- NOTE: This is only allowed if the RPC server is bound to localhost"`
	RPCCert              string   `long:"rpccert" description:"File containing the certificate file"`
	RPCKey               string   `long:"rpckey" description:"File containing the certificate key"`
	TLSCurve             string   `long:"tlscurve" description:"Curve to use when generating TLS keypairs {P-256, P-384, P-521}"`
	AltDNSNames          []string `long:"altdnsnames" description:"Specify additional DNS names to use when generating the RPC server certificate" env:"POWCOORD_ALT_DNSNAMES" env-delim:","`

	// Mining options.
	MiningAddr      string        `long:"miningaddr" description:"Address the coinbase of block templates pays the miner reward to"`
	MiningAlgo      string        `long:"miningalgo" description:"Algorithm of block templates requests that do not name one {sha256d, scrypt, nist5, lyra2z, x11, x16r}"`
	PayeeAddr       string        `long:"payeeaddr" description:"Address every coinbase must pay the payee share of the subsidy to"`
	PayeePercent    int64         `long:"payeepercent" description:"Percentage of the max block subsidy paid to the payee address"`
	BlockMaxWeight  int64         `long:"blockmaxweight" description:"Maximum block weight to be used when creating a block"`
	BlockMaxSigOps  int64         `long:"blockmaxsigops" description:"Maximum signature operation cost to be used when creating a block"`
	CoinbaseFlags   string        `long:"coinbaseflags" description:"Text appended to the coinbase signature script of block templates"`
	Generate        bool          `long:"generate" description:"Generate (mine) coins using the CPU"`
	GenProcLimit    int32         `long:"genproclimit" description:"Number of CPU workers used by --generate"`
	GenAlgos        []string      `long:"genalgo" description:"Algorithm the CPU miner rotates through; may be specified multiple times (default: the mining algorithm)"`
	MaxTipAge       time.Duration `long:"maxtipage" description:"Age of the best block after which no work is handed out (0 disables the check)"`
	LongPollMaxWait time.Duration `long:"longpollmaxwait" description:"Longest a getblocktemplate long poll waits without a new tip; when above the 1 minute coarse timeout, mempool changes are rechecked every 10 seconds after it (0 returns at the coarse timeout)"`

	// Mempool policy.
	MinRelayTxFee float64 `long:"minrelaytxfee" description:"The minimum transaction fee in coins/kB to be considered a non-zero fee"`
	MaxTxFee      float64 `long:"maxtxfee" description:"The highest fee in coins a transaction may pay"`
	AcceptNonStd  bool    `long:"acceptnonstd" description:"Accept and relay non-standard transactions to the network regardless of the default settings for the active network"`

	// The following fields are computed while loading the configuration.
	params      *params
	miningAlgo  algo.ID
	genAlgos    []algo.ID
	payToScript []byte
	payeeScript []byte
	minRelayFee btcutil.Amount
	maxTxFee    btcutil.Amount
}

// errSuppressUsage signifies that an error that happened during the initial
// configuration phase should suppress the usage output since it was not caused
// by the user.
type errSuppressUsage string

// Error implements the error interface.
func (e errSuppressUsage) Error() string {
	return string(e)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Nothing to do when no path is given.
	if path == "" {
		return path
	}

	// Expand initial ~ to the current user's home directory, or ~otheruser
	// to otheruser's home directory.  On Windows, both forward and backward
	// slashes can be used.
	if path[0] == '~' {
		homeDir := filepath.Dir(defaultHomeDir)
		if h, err := os.UserHomeDir(); err == nil {
			homeDir = h
		}
		path = filepath.Join(homeDir, path[1:])
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// normalizeAddress returns addr with the passed default port appended if
// there is not already a port specified.
func normalizeAddress(addr, defaultPort string) string {
	_, _, err := net.SplitHostPort(addr)
	if err != nil {
		return net.JoinHostPort(addr, defaultPort)
	}
	return addr
}

// normalizeAddresses returns a new slice with all the passed peer addresses
// normalized with the given default port, and all duplicates removed.
func normalizeAddresses(addrs []string, defaultPort string) []string {
	result := make([]string, 0, len(addrs))
	seen := map[string]struct{}{}
	for _, addr := range addrs {
		addr = normalizeAddress(addr, defaultPort)
		if _, ok := seen[addr]; !ok {
			result = append(result, addr)
			seen[addr] = struct{}{}
		}
	}
	return result
}

// isLoopbackListener returns whether the listen address refers only to the
// local machine.
func isLoopbackListener(addr string) bool {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return false
	}
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// payToAddrScript decodes the address for the active network and returns the
// script that pays to it.
func payToAddrScript(addr string, p *params) ([]byte, error) {
	decoded, err := btcutil.DecodeAddress(addr, p.addrParams)
	if err != nil {
		return nil, err
	}
	if !decoded.IsForNet(p.addrParams) {
		return nil, fmt.Errorf("address %s is not for the %s network",
			addr, p.Name)
	}
	return txscript.PayToAddrScript(decoded)
}

// promptPassword reads the RPC password from the terminal without echoing it.
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("standard input is not a terminal")
	}
	fmt.Fprint(os.Stderr, "RPC password: ")
	pass, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(pass), nil
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfg *config, options flags.Options) *flags.Parser {
	return flags.NewParser(cfg, options)
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
//  1. Start with a default config with sane settings
//  2. Pre-parse the command line to check for an alternative config file
//  3. Load configuration file overwriting defaults with any specified options
//  4. Parse CLI options and overwrite/add any specified options
//
// The above results in powcoord functioning properly without any config
// settings while still allowing the user to override settings with config
// files and command line options.  Command line options always take
// precedence.
func loadConfig(appName string) (*config, []string, error) {
	// Default config.
	cfg := config{
		HomeDir:              defaultHomeDir,
		ConfigFile:           defaultConfigFile,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		MaxLogRolls:          defaultMaxLogRolls,
		DebugLevel:           defaultLogLevel,
		RPCCert:              defaultRPCCertFile,
		RPCKey:               defaultRPCKeyFile,
		TLSCurve:             defaultTLSCurve,
		RPCMaxClients:        defaultMaxRPCClients,
		RPCMaxWebsockets:     defaultMaxRPCWebsockets,
		RPCMaxConcurrentReqs: defaultMaxRPCConcurrentReqs,
		MiningAlgo:           defaultMiningAlgo,
		PayeePercent:         memchain.DefaultPayeePercent,
		BlockMaxWeight:       mining.DefaultBlockMaxWeight,
		BlockMaxSigOps:       mining.DefaultBlockMaxSigOps,
		GenProcLimit:         defaultGenerateWorkers,
		MinRelayTxFee:        defaultMinRelayTxFee.ToBTC(),
		MaxTxFee:             defaultMaxTxFee.ToBTC(),
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified.  Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfg
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		var e *flags.Error
		if errors.As(err, &e) && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stdout, err)
			os.Exit(0)
		}
	}

	// Show the version and exit if the version flag was specified.
	if preCfg.ShowVersion {
		fmt.Printf("%s version %s (Go version %s %s/%s)\n", appName,
			version.String(), runtime.Version(), runtime.GOOS,
			runtime.GOARCH)
		os.Exit(0)
	}

	// Update the home directory if specified.  Since the home directory is
	// updated, other variables need to be updated to reflect the new
	// changes.
	if preCfg.HomeDir != "" {
		cfg.HomeDir = cleanAndExpandPath(preCfg.HomeDir)
		if preCfg.ConfigFile == defaultConfigFile {
			cfg.ConfigFile = filepath.Join(cfg.HomeDir,
				defaultConfigFilename)
		} else {
			cfg.ConfigFile = cleanAndExpandPath(preCfg.ConfigFile)
		}
		if preCfg.DataDir == defaultDataDir {
			cfg.DataDir = filepath.Join(cfg.HomeDir, defaultDataDirname)
		}
		if preCfg.LogDir == defaultLogDir {
			cfg.LogDir = filepath.Join(cfg.HomeDir, defaultLogDirname)
		}
		if preCfg.RPCKey == defaultRPCKeyFile {
			cfg.RPCKey = filepath.Join(cfg.HomeDir, "rpc.key")
		}
		if preCfg.RPCCert == defaultRPCCertFile {
			cfg.RPCCert = filepath.Join(cfg.HomeDir, "rpc.cert")
		}
	}

	// Write a commented sample config file when the default one is missing.
	if cfg.ConfigFile == filepath.Join(cfg.HomeDir, defaultConfigFilename) {
		if err := writeSampleConfig(cfg.ConfigFile); err != nil {
			fmt.Fprintf(os.Stderr, "Unable to write sample config "+
				"file: %v\n", err)
		}
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfg, flags.Default)
	err = flags.NewIniParser(parser).ParseFile(cfg.ConfigFile)
	if err != nil {
		var pathErr *os.PathError
		if !errors.As(err, &pathErr) {
			return nil, nil, fmt.Errorf("error parsing config file: %w", err)
		}
		configFileError = err
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		var e *flags.Error
		if !errors.As(err, &e) || e.Type != flags.ErrHelp {
			return nil, nil, err
		}
		return nil, nil, errSuppressUsage(err.Error())
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(cfg.HomeDir, 0700)
	if err != nil {
		str := "%s: failed to create home directory: %v"
		return nil, nil, errSuppressUsage(fmt.Sprintf(str, funcName, err))
	}

	// Multiple networks can't be selected simultaneously.
	numNets := 0
	cfg.params = &mainNetParams
	if cfg.TestNet {
		numNets++
		cfg.params = &testNetParams
	}
	if cfg.SimNet {
		numNets++
		cfg.params = &simNetParams
	}
	if numNets > 1 {
		str := "%s: the testnet and simnet params can't be used together " +
			"-- choose one of the two"
		return nil, nil, fmt.Errorf(str, funcName)
	}
	activeNetParams = cfg.params

	// Append the network type to the data and log directories so they are
	// "namespaced" per network.
	cfg.DataDir = filepath.Join(cleanAndExpandPath(cfg.DataDir),
		cfg.params.Name)
	cfg.LogDir = filepath.Join(cleanAndExpandPath(cfg.LogDir),
		cfg.params.Name)
	cfg.RPCKey = cleanAndExpandPath(cfg.RPCKey)
	cfg.RPCCert = cleanAndExpandPath(cfg.RPCCert)

	// Special show command to list supported subsystems and exit.
	if cfg.DebugLevel == "show" {
		fmt.Println("Supported subsystems", supportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation.  After log rotation has been initialized,
	// the logger variables may be used.
	if !cfg.NoFileLogging {
		initLogRotator(filepath.Join(cfg.LogDir, defaultLogFilename),
			cfg.MaxLogRolls)
	}

	// Parse, validate, and set debug log level(s).
	if err := parseAndSetDebugLevels(cfg.DebugLevel); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}

	// Validate the mining algorithm and the algorithms of the CPU miner.
	cfg.miningAlgo = algo.Parse(cfg.MiningAlgo)
	if cfg.miningAlgo == algo.Null {
		str := "%s: invalid --miningalgo %q -- supported algorithms %v"
		return nil, nil, fmt.Errorf(str, funcName, cfg.MiningAlgo, algo.All)
	}
	cfg.genAlgos = []algo.ID{cfg.miningAlgo}
	if len(cfg.GenAlgos) > 0 {
		cfg.genAlgos = make([]algo.ID, 0, len(cfg.GenAlgos))
		for _, name := range cfg.GenAlgos {
			a := algo.Parse(name)
			if a == algo.Null {
				str := "%s: invalid --genalgo %q -- supported " +
					"algorithms %v"
				return nil, nil, fmt.Errorf(str, funcName, name, algo.All)
			}
			cfg.genAlgos = append(cfg.genAlgos, a)
		}
	}
	if cfg.GenProcLimit < 1 {
		str := "%s: the genproclimit option may not be less than 1 -- " +
			"parsed [%d]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.GenProcLimit)
	}

	if cfg.MaxTipAge < 0 {
		str := "%s: the maxtipage option may not be negative -- parsed [%v]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.MaxTipAge)
	}

	// Decode the mining and payee addresses.  The CPU miner can't work
	// without a mining address.
	if cfg.MiningAddr != "" {
		cfg.payToScript, err = payToAddrScript(cfg.MiningAddr, cfg.params)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: invalid --miningaddr: %w",
				funcName, err)
		}
	}
	if cfg.Generate && len(cfg.payToScript) == 0 {
		str := "%s: the generate flag is set, but there is no mining " +
			"address specified"
		return nil, nil, fmt.Errorf(str, funcName)
	}
	if cfg.PayeeAddr != "" {
		cfg.payeeScript, err = payToAddrScript(cfg.PayeeAddr, cfg.params)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: invalid --payeeaddr: %w",
				funcName, err)
		}
	}
	if cfg.PayeePercent < 0 || cfg.PayeePercent > 100 {
		str := "%s: the payeepercent option must be between 0 and 100 " +
			"-- parsed [%d]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.PayeePercent)
	}

	if cfg.LongPollMaxWait < 0 {
		str := "%s: the longpollmaxwait option may not be negative " +
			"-- parsed [%v]"
		return nil, nil, fmt.Errorf(str, funcName, cfg.LongPollMaxWait)
	}

	// Validate the block template limits.
	if cfg.BlockMaxWeight < minBlockMaxWeight ||
		cfg.BlockMaxWeight > mining.DefaultBlockMaxWeight {

		str := "%s: the blockmaxweight option must be in between %d and " +
			"%d -- parsed [%d]"
		return nil, nil, fmt.Errorf(str, funcName, minBlockMaxWeight,
			mining.DefaultBlockMaxWeight, cfg.BlockMaxWeight)
	}
	if cfg.BlockMaxSigOps <= 0 ||
		cfg.BlockMaxSigOps > mining.DefaultBlockMaxSigOps {

		str := "%s: the blockmaxsigops option must be in between 1 and " +
			"%d -- parsed [%d]"
		return nil, nil, fmt.Errorf(str, funcName,
			mining.DefaultBlockMaxSigOps, cfg.BlockMaxSigOps)
	}

	// Validate the mempool fee options.
	cfg.minRelayFee, err = btcutil.NewAmount(cfg.MinRelayTxFee)
	if err != nil || cfg.minRelayFee < 0 {
		str := "%s: invalid minrelaytxfee: %v"
		return nil, nil, fmt.Errorf(str, funcName, cfg.MinRelayTxFee)
	}
	cfg.maxTxFee, err = btcutil.NewAmount(cfg.MaxTxFee)
	if err != nil || cfg.maxTxFee < 0 {
		str := "%s: invalid maxtxfee: %v"
		return nil, nil, fmt.Errorf(str, funcName, cfg.MaxTxFee)
	}

	// Validate the RPC limits.
	if cfg.RPCMaxClients < 1 || cfg.RPCMaxConcurrentReqs < 1 ||
		cfg.RPCMaxWebsockets < 0 {

		str := "%s: the RPC client limits must be positive"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Prompt for the RPC password when requested and not configured.
	if cfg.PromptPass && cfg.RPCUser != "" && cfg.RPCPass == "" {
		cfg.RPCPass, err = promptPassword()
		if err != nil {
			return nil, nil, fmt.Errorf("%s: unable to read RPC "+
				"password: %w", funcName, err)
		}
	}

	// The RPC server is unusable without credentials.
	if cfg.RPCUser == "" || cfg.RPCPass == "" {
		str := "%s: the rpcuser and rpcpass options must be set"
		return nil, nil, fmt.Errorf(str, funcName)
	}
	if cfg.RPCUser == cfg.RPCLimitUser && cfg.RPCUser != "" {
		str := "%s: --rpcuser and --rpclimituser must not specify the " +
			"same username"
		return nil, nil, fmt.Errorf(str, funcName)
	}
	if cfg.RPCPass == cfg.RPCLimitPass && cfg.RPCPass != "" {
		str := "%s: --rpcpass and --rpclimitpass must not specify the " +
			"same password"
		return nil, nil, fmt.Errorf(str, funcName)
	}

	// Default RPC to listen on localhost only.
	if len(cfg.RPCListeners) == 0 {
		addrs, err := net.LookupHost("localhost")
		if err != nil {
			return nil, nil, err
		}
		cfg.RPCListeners = make([]string, 0, len(addrs))
		for _, addr := range addrs {
			addr = net.JoinHostPort(addr, cfg.params.DefaultRPCPort)
			cfg.RPCListeners = append(cfg.RPCListeners, addr)
		}
	}
	cfg.RPCListeners = normalizeAddresses(cfg.RPCListeners,
		cfg.params.DefaultRPCPort)

	// Only allow TLS to be disabled if the RPC is bound to localhost
	// addresses.
	if cfg.DisableTLS {
		for _, addr := range cfg.RPCListeners {
			if !isLoopbackListener(addr) {
				str := "%s: the --notls option may not be used when " +
					"binding RPC to non localhost addresses: %s"
				return nil, nil, fmt.Errorf(str, funcName, addr)
			}
		}
	}
	if _, err := tlsCurve(cfg.TLSCurve); err != nil {
		return nil, nil, fmt.Errorf("%s: %w", funcName, err)
	}

	// Warn about missing config file only after all other configuration is
	// done.  This prevents the warning on help messages and invalid
	// options.  Note this should go directly before the return.
	if configFileError != nil {
		powcLog.Warnf("%v", configFileError)
	}

	return &cfg, remainingArgs, nil
}

// writeSampleConfig writes a config file with every option commented out to
// the path when no file exists there.
func writeSampleConfig(path string) error {
	if fileExists(path) {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	var cfg config
	parser := newConfigParser(&cfg, flags.None)
	for _, opt := range parser.Command.Options() {
		if opt.LongName == "" || opt.LongName == "configfile" ||
			opt.LongName == "version" || opt.LongName == "appdata" {
			continue
		}
		fmt.Fprintf(w, "; %s\n; %s=\n\n", opt.Description,
			strings.ToLower(opt.LongName))
	}
	return w.Flush()
}
