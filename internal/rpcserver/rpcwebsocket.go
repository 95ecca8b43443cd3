// Copyright (c) 2013-2016 The btcsuite developers
// Copyright (c) 2015-2023 The Decred developers
// Copyright (c) 2024 The powcoord developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package rpcserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/decred/dcrd/crypto/rand"
	"github.com/decred/dcrd/dcrjson/v4"
	"github.com/gorilla/websocket"
	"github.com/multialgo/powcoord/internal/chainstate"
	"github.com/multialgo/powcoord/internal/metrics"
	"github.com/multialgo/powcoord/internal/mining"
	"github.com/multialgo/powcoord/rpc/jsonrpc/types"
)

const (
	// websocketSendBufferSize is the number of elements the send channel
	// can queue before blocking.  Note that this only applies to requests
	// handled directly in the websocket client input handler or the async
	// handler since notifications have their own queuing mechanism
	// independent of the send channel buffer.
	websocketSendBufferSize = 50

	// websocketReadLimitUnauthenticated is the maximum number of bytes allowed
	// for an unauthenticated JSON-RPC message read from a websocket client.
	websocketReadLimitUnauthenticated = 1 << 12 // 4 KiB

	// websocketReadLimitAuthenticated is the maximum number of bytes allowed
	// for an authenticated JSON-RPC message read from a websocket client.
	websocketReadLimitAuthenticated = 1 << 24 // 16 MiB

	// websocketPongTimeout is the maximum amount of time attempts to respond to
	// websocket ping messages with a pong will wait before giving up.
	websocketPongTimeout = time.Second * 5
)

type semaphore chan struct{}

func makeSemaphore(n int) semaphore {
	return make(chan struct{}, n)
}

func (s semaphore) acquire() { s <- struct{}{} }
func (s semaphore) release() { <-s }

// timeZeroVal is simply the zero value for a time.Time and is used to avoid
// creating multiple instances.
var timeZeroVal time.Time

// wsCommandHandler describes a callback function used to handle a specific
// command.
type wsCommandHandler func(context.Context, *wsClient, interface{}) (interface{}, error)

// wsHandlers maps RPC command strings to appropriate websocket handler
// functions.  This is set by init because help references wsHandlers and thus
// causes a dependency loop.
var wsHandlers map[types.Method]wsCommandHandler
var wsHandlersBeforeInit = map[types.Method]wsCommandHandler{
	"help":           handleWebsocketHelp,
	"notifywork":     handleNotifyWork,
	"session":        handleSession,
	"stopnotifywork": handleStopNotifyWork,
}

// WebsocketHandler handles a new websocket client by creating a new wsClient,
// starting it, and blocking until the connection closes.  Since it blocks, it
// must be run in a separate goroutine.  It should be invoked from the websocket
// server handler which runs each new connection in a new goroutine thereby
// satisfying the requirement.
func (s *Server) WebsocketHandler(ctx context.Context, conn *websocket.Conn, remoteAddr string, authenticated bool, isAdmin bool) {
	// Clear the read deadline that was set before the websocket hijacked
	// the connection.
	conn.SetReadDeadline(timeZeroVal)

	// Limit max number of websocket clients.
	log.Infof("New websocket client %s", remoteAddr)
	if s.ntfnMgr.NumClients()+1 > s.cfg.RPCMaxWebsockets {
		log.Infof("Max websocket clients exceeded [%d] - "+
			"disconnecting client %s", s.cfg.RPCMaxWebsockets,
			remoteAddr)
		conn.Close()
		return
	}

	// Create a new websocket client to handle the new websocket connection
	// and wait for it to shutdown.  Once it has shutdown (and hence
	// disconnected), remove it and any notifications it registered for.
	client := newWebsocketClient(s, conn, remoteAddr, authenticated, isAdmin)
	disconnected := metrics.WebsocketConnected()
	s.ntfnMgr.AddClient(client)
	client.Run(ctx)
	s.ntfnMgr.RemoveClient(client)
	disconnected()
	log.Infof("Disconnected websocket client %s", remoteAddr)
}

// wsNotificationManager tracks the connected websocket clients and delivers
// new work notifications to the ones that registered for them.
//
// Work notifications supersede each other, so only the most recent tip that
// has not been delivered yet is kept.  Publishing a tip never blocks the chain
// state subscribers.
type wsNotificationManager struct {
	mtx         sync.Mutex
	clients     map[*wsClient]struct{}
	workClients map[*wsClient]struct{}

	// pendingWork holds the most recent work not delivered yet.
	pendingWork chan *notificationWork
}

// notificationWork describes new work available to miners.
type notificationWork struct {
	hash       string
	height     int64
	longPollID string
}

// NotifyWork passes a new best chain tip to the notification manager.  Any
// work that was not delivered yet is replaced.  The mempool version is the one
// the next template builds from.
func (m *wsNotificationManager) NotifyWork(tip *chainstate.Entry, mempoolVersion uint64) {
	hash := tip.Hash()
	n := &notificationWork{
		hash:       hash.String(),
		height:     tip.Height(),
		longPollID: mining.LongPollID(hash, mempoolVersion),
	}
	for {
		select {
		case m.pendingWork <- n:
			return
		default:
		}

		// Drop the stale work and retry.
		select {
		case <-m.pendingWork:
		default:
		}
	}
}

// workRecipients returns the clients registered for work notifications.
func (m *wsNotificationManager) workRecipients() []*wsClient {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	recipients := make([]*wsClient, 0, len(m.workClients))
	for c := range m.workClients {
		recipients = append(recipients, c)
	}
	return recipients
}

// deliverWork sends the work notification to every registered client.
func (m *wsNotificationManager) deliverWork(n *notificationWork) {
	recipients := m.workRecipients()
	if len(recipients) == 0 {
		return
	}

	ntfn := types.NewNewWorkNtfn(n.hash, n.height, n.longPollID)
	marshalled, err := dcrjson.MarshalCmd("1.0", nil, ntfn)
	if err != nil {
		log.Errorf("Failed to marshal new work notification: %v", err)
		return
	}
	log.Debugf("Notifying %d websocket clients of new work at height %d",
		len(recipients), n.height)
	for _, c := range recipients {
		c.QueueNotification(marshalled)
	}
}

// NumClients returns the number of clients actively being served.
func (m *wsNotificationManager) NumClients() int {
	m.mtx.Lock()
	n := len(m.clients)
	m.mtx.Unlock()
	return n
}

// RegisterWorkUpdates requests work update notifications to the passed
// websocket client.
func (m *wsNotificationManager) RegisterWorkUpdates(wsc *wsClient) {
	m.mtx.Lock()
	if _, ok := m.clients[wsc]; ok {
		m.workClients[wsc] = struct{}{}
	}
	m.mtx.Unlock()
}

// UnregisterWorkUpdates removes work update notifications for the passed
// websocket client.
func (m *wsNotificationManager) UnregisterWorkUpdates(wsc *wsClient) {
	m.mtx.Lock()
	delete(m.workClients, wsc)
	m.mtx.Unlock()
}

// AddClient adds the passed websocket client to the notification manager.
func (m *wsNotificationManager) AddClient(wsc *wsClient) {
	m.mtx.Lock()
	m.clients[wsc] = struct{}{}
	m.mtx.Unlock()
}

// RemoveClient removes the passed websocket client and its work registration.
func (m *wsNotificationManager) RemoveClient(wsc *wsClient) {
	m.mtx.Lock()
	delete(m.workClients, wsc)
	delete(m.clients, wsc)
	m.mtx.Unlock()
}

// Run delivers work notifications until the provided context is cancelled.
// All clients are disconnected on return.
func (m *wsNotificationManager) Run(ctx context.Context) {
	for {
		select {
		case n := <-m.pendingWork:
			m.deliverWork(n)

		case <-ctx.Done():
			m.mtx.Lock()
			clients := make([]*wsClient, 0, len(m.clients))
			for c := range m.clients {
				clients = append(clients, c)
			}
			m.mtx.Unlock()
			for _, c := range clients {
				c.Disconnect()
			}
			return
		}
	}
}

// newWsNotificationManager returns a new notification manager ready for use.
func newWsNotificationManager() *wsNotificationManager {
	return &wsNotificationManager{
		clients:     make(map[*wsClient]struct{}),
		workClients: make(map[*wsClient]struct{}),
		pendingWork: make(chan *notificationWork, 1),
	}
}

// wsResponse houses a message to send to a connected websocket client as
// well as a channel to reply on when the message is sent.
type wsResponse struct {
	msg      []byte
	doneChan chan bool
}

// wsClient serves a single websocket connection.  Requests are read by
// inHandler and serviced concurrently up to the configured limit.  Replies go
// through SendMessage, whose buffered channel bounds the outstanding requests.
// Work notifications go through QueueNotification, which keeps only the
// newest one.  outHandler writes both to the connection.
type wsClient struct {
	disconnected atomic.Bool // Websocket client disconnected?

	// server is the RPC server that is servicing the client.
	rpcServer *Server

	// conn is the underlying websocket connection.
	conn *websocket.Conn

	// addr is the remote address of the client.
	addr string

	// authenticated specifies whether a client has been authenticated
	// and therefore is allowed to communicated over the websocket.
	authenticated bool

	// isAdmin specifies whether a client may change the state of the server;
	// false means its access is only to the limited set of RPC calls.
	isAdmin bool

	// sessionID is a random ID generated for each client when connected.
	// These IDs may be queried by a client using the session RPC.  A change
	// to the session ID indicates that the client reconnected.
	sessionID uint64

	// Networking infrastructure.
	serviceRequestSem semaphore
	ntfnChan          chan []byte
	sendChan          chan wsResponse
	quit              chan struct{}
	wg                sync.WaitGroup
}

// shouldLogReadError returns whether or not the passed error, which is expected
// to have come from reading from the websocket client in the inHandler, should
// be logged.
func (c *wsClient) shouldLogReadError(err error) bool {
	// No logging when the client is being forcibly disconnected from the server
	// side.
	if c.disconnected.Load() {
		return false
	}

	// No logging when the remote client has disconnected.
	if errors.Is(err, io.EOF) || websocket.IsCloseError(err,
		websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {

		return false
	}

	return true
}

// errDisconnectClient is returned by checkRequest when the client must be
// disconnected.
var errDisconnectClient = errors.New("disconnect websocket client")

// checkRequest parses the request and applies the authentication rules of
// the connection.  It returns the command to service or the reply to send
// instead.  Both are nil when nothing is due.  The client is to be
// disconnected when errDisconnectClient is returned, which happens when the
// first request of an unauthenticated websocket client is not the
// authenticate request, an authenticate request is received when the client
// is already authenticated, or incorrect credentials are provided.
func (c *wsClient) checkRequest(req *dcrjson.Request) (*parsedRPCCmd, []byte, error) {
	if req.Method == "" {
		jsonErr := &dcrjson.RPCError{
			Code:    dcrjson.ErrRPCInvalidRequest.Code,
			Message: "Invalid request: malformed",
		}
		reply, err := createMarshalledReply(req.Jsonrpc, req.ID, nil, jsonErr)
		return nil, reply, err
	}

	// Valid requests with no ID (notifications) must not have a response
	// per the JSON-RPC spec.
	if req.ID == nil {
		if !c.authenticated {
			return nil, nil, errDisconnectClient
		}
		return nil, nil, nil
	}

	cmd := parseCmd(req)
	if cmd.err != nil {
		// Only process requests from authenticated clients
		if !c.authenticated {
			return nil, nil, errDisconnectClient
		}
		reply, err := createMarshalledReply(cmd.jsonrpc, cmd.id, nil, cmd.err)
		return nil, reply, err
	}

	log.Debugf("Received command <%s> from %s", cmd.method, c.addr)

	switch authCmd, ok := cmd.params.(*types.AuthenticateCmd); {
	case c.authenticated && ok:
		log.Warnf("Websocket client %s is already authenticated", c.addr)
		return nil, nil, errDisconnectClient

	case !c.authenticated && !ok:
		log.Warnf("Unauthenticated websocket message received")
		return nil, nil, errDisconnectClient

	case !c.authenticated:
		// Check credentials.
		c.authenticated, c.isAdmin = c.rpcServer.checkAuthUserPass(
			authCmd.Username, authCmd.Passphrase, c.addr)
		if !c.authenticated {
			return nil, nil, errDisconnectClient
		}

		// Increase the read limits for authenticated connections.
		c.conn.SetReadLimit(websocketReadLimitAuthenticated)

		reply, err := createMarshalledReply(cmd.jsonrpc, cmd.id, nil, nil)
		return nil, reply, err
	}

	// Check if the client is using limited RPC credentials and error when
	// not authorized to call the supplied RPC.
	if !c.isAdmin {
		if _, ok := rpcLimited[req.Method]; !ok {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidParams.Code,
				Message: "limited user not authorized for this method",
			}
			reply, err := createMarshalledReply("", req.ID, nil, jsonErr)
			return nil, reply, err
		}
	}

	return cmd, nil, nil
}

// parseFailureReply returns the reply to a message that is not valid JSON.
func parseFailureReply(rpcVersion string, code dcrjson.RPCErrorCode, err error) []byte {
	jsonErr := &dcrjson.RPCError{
		Code:    code,
		Message: "Failed to parse request: " + err.Error(),
	}
	reply, err := createMarshalledReply(rpcVersion, nil, nil, jsonErr)
	if err != nil {
		log.Errorf("Failed to marshal reply: %v", err)
		return nil
	}
	return reply
}

// inHandler handles all incoming messages for the websocket connection.  It
// must be run as a goroutine.
func (c *wsClient) inHandler(ctx context.Context) {
out:
	for !c.disconnected.Load() {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			// Log the error if it's not due to disconnecting.
			if c.shouldLogReadError(err) {
				log.Errorf("Websocket receive error from %s: %v", c.addr, err)
			}
			break out
		}

		// Process a single request
		if !bytes.HasPrefix(msg, batchedRequestPrefix) {
			var req dcrjson.Request
			if err := json.Unmarshal(msg, &req); err != nil {
				// only process requests from authenticated clients
				if !c.authenticated {
					break out
				}
				if reply := parseFailureReply("1.0", dcrjson.ErrRPCParse.Code,
					err); reply != nil {

					c.SendMessage(reply, nil)
				}
				continue
			}

			cmd, reply, err := c.checkRequest(&req)
			switch {
			case errors.Is(err, errDisconnectClient):
				break out
			case err != nil:
				log.Errorf("Failed to marshal reply: %v", err)
				continue
			case reply != nil:
				c.SendMessage(reply, nil)
				continue
			case cmd == nil:
				continue
			}

			// Asynchronously handle the request.  A semaphore is used to
			// limit the number of concurrent requests currently being
			// serviced.  If the semaphore can not be acquired, simply wait
			// until a request finished before reading the next RPC request
			// from the websocket client.
			c.serviceRequestSem.acquire()
			go func() {
				reply := c.serviceRequest(ctx, cmd)
				if reply != nil {
					c.SendMessage(reply, nil)
				}
				c.serviceRequestSem.release()
			}()
			continue
		}

		// Batched requests are only accepted from authenticated clients.
		if !c.authenticated {
			break out
		}

		var batchedRequests []json.RawMessage
		if err := json.Unmarshal(msg, &batchedRequests); err != nil {
			if reply := parseFailureReply("2.0", dcrjson.ErrRPCParse.Code,
				err); reply != nil {

				c.SendMessage(reply, nil)
			}
			continue
		}

		// Respond with an empty batch error if the batch size is zero.
		if len(batchedRequests) == 0 {
			jsonErr := &dcrjson.RPCError{
				Code:    dcrjson.ErrRPCInvalidRequest.Code,
				Message: "Invalid request: empty batch",
			}
			reply, err := createMarshalledReply("2.0", nil, nil, jsonErr)
			if err != nil {
				log.Errorf("Failed to marshal reply: %v", err)
				continue
			}
			c.SendMessage(reply, nil)
			continue
		}

		// Process each batch entry individually.  The entries are
		// serviced in order and replied to at once.
		results := make([][]byte, 0, len(batchedRequests))
		for _, entry := range batchedRequests {
			var req dcrjson.Request
			if err := json.Unmarshal(entry, &req); err != nil {
				reply := parseFailureReply("", dcrjson.ErrRPCInvalidRequest.Code,
					err)
				if reply != nil {
					results = append(results, reply)
				}
				continue
			}

			cmd, reply, err := c.checkRequest(&req)
			switch {
			case errors.Is(err, errDisconnectClient):
				break out
			case err != nil:
				log.Errorf("Failed to marshal reply: %v", err)
				continue
			case reply != nil:
				results = append(results, reply)
				continue
			case cmd == nil:
				continue
			}

			c.serviceRequestSem.acquire()
			reply = c.serviceRequest(ctx, cmd)
			c.serviceRequestSem.release()
			if reply != nil {
				results = append(results, reply)
			}
		}
		if len(results) == 0 {
			continue
		}

		var buffer bytes.Buffer
		buffer.WriteByte('[')
		buffer.Write(bytes.Join(results, []byte{','}))
		buffer.WriteByte(']')
		c.SendMessage(buffer.Bytes(), nil)
	}

	// Ensure the connection is closed.
	c.Disconnect()
	c.wg.Done()
	log.Tracef("Websocket client input handler done for %s", c.addr)
}

// serviceRequest services a parsed RPC request by looking up and executing the
// appropriate RPC handler and returns the marshalled response.
func (c *wsClient) serviceRequest(ctx context.Context, r *parsedRPCCmd) []byte {
	var (
		result interface{}
		err    error
	)

	// Lookup the websocket extension for the command and if it doesn't
	// exist fallback to handling the command as a standard command.
	wsHandler, ok := wsHandlers[r.method]
	if ok {
		started := time.Now()
		result, err = wsHandler(ctx, c, r.params)
		metrics.ObserveRPC(string(r.method), err, started)
	} else {
		result, err = c.rpcServer.standardCmdResult(ctx, r)
	}
	reply, err := createMarshalledReply(r.jsonrpc, r.id, result, err)
	if err != nil {
		log.Errorf("Failed to marshal reply for <%s> "+
			"command: %v", r.method, err)
		return nil
	}
	return reply
}

// outHandler writes replies and notifications to the websocket connection
// until the client disconnects.  Replies are written in the order they were
// sent.  A pending notification is written as soon as the connection is
// free.  It must be run as a goroutine.
func (c *wsClient) outHandler() {
	defer c.wg.Done()
	for {
		var msg []byte
		var doneChan chan bool
		select {
		case r := <-c.sendChan:
			msg, doneChan = r.msg, r.doneChan
		case msg = <-c.ntfnChan:
		case <-c.quit:
			log.Tracef("Websocket client output handler done for %s", c.addr)
			return
		}

		err := c.conn.WriteMessage(websocket.TextMessage, msg)
		if doneChan != nil {
			doneChan <- err == nil
		}
		if err != nil {
			c.Disconnect()
			log.Tracef("Websocket client output handler done for %s",
				c.addr)
			return
		}
	}
}

// SendMessage sends the passed json to the websocket client.  It is backed
// by a buffered channel, so it will not block until the send channel is full.
// Note however that QueueNotification must be used for sending async
// notifications instead of the this function.  This approach allows a limit to
// the number of outstanding requests a client can make without preventing or
// blocking on async notifications.
func (c *wsClient) SendMessage(marshalledJSON []byte, doneChan chan bool) {
	// Don't send the message if disconnected.
	if c.Disconnected() {
		if doneChan != nil {
			doneChan <- false
		}
		return
	}

	// Use select statement to unblock enqueuing the message once the client has
	// begun shutting down.
	select {
	case c.sendChan <- wsResponse{msg: marshalledJSON, doneChan: doneChan}:
	case <-c.quit:
		if doneChan != nil {
			doneChan <- false
		}
	}
}

// ErrClientQuit describes the error where a client send is not processed due
// to the client having already been disconnected or dropped.
var ErrClientQuit = errors.New("client quit")

// QueueNotification queues the passed work notification to be sent to the
// websocket client.  It never blocks: a notification the client has not been
// sent yet is replaced since newer work supersedes it.
//
// If the client is in the process of shutting down, this function returns
// ErrClientQuit.
func (c *wsClient) QueueNotification(marshalledJSON []byte) error {
	if c.Disconnected() {
		return ErrClientQuit
	}

	for {
		select {
		case c.ntfnChan <- marshalledJSON:
			return nil
		default:
		}

		select {
		case <-c.ntfnChan:
		default:
		}
	}
}

// Disconnected returns whether or not the websocket client is disconnected.
func (c *wsClient) Disconnected() bool {
	return c.disconnected.Load()
}

// Disconnect disconnects the websocket client.
func (c *wsClient) Disconnect() {
	// Nothing to do if already disconnected.
	if !c.disconnected.CompareAndSwap(false, true) {
		return
	}

	log.Tracef("Disconnecting websocket client %s", c.addr)
	close(c.quit)
	c.conn.Close()
}

// Run starts the websocket client and all other goroutines necessary for it to
// function properly and blocks until the provided context is cancelled.
func (c *wsClient) Run(ctx context.Context) {
	log.Tracef("Starting websocket client %s", c.addr)

	// Start processing input and output.
	c.wg.Add(2)
	go c.inHandler(ctx)
	go c.outHandler()

	// Forcibly disconnect the websocket client when the context is cancelled
	// which also closes the quit channel and thus ensures all of the above
	// goroutines are shutdown.
	c.wg.Add(1)
	go func(ctx context.Context) {
		// Select across the quit channel as well since the context is not
		// cancelled when the connection is closed due to websocket connection
		// hijacking.
		select {
		case <-ctx.Done():
			c.Disconnect()
		case <-c.quit:
		}
		c.wg.Done()
	}(ctx)

	c.wg.Wait()
}

// newWebsocketClient returns a new websocket client given the notification
// manager, websocket connection, remote address, and whether or not the client
// has already been authenticated (via HTTP Basic access authentication).  The
// returned client is ready to start.
func newWebsocketClient(server *Server, conn *websocket.Conn,
	remoteAddr string, authenticated bool, isAdmin bool) *wsClient {

	maxReqs := server.cfg.RPCMaxConcurrentReqs
	if maxReqs <= 0 {
		maxReqs = 1
	}
	return &wsClient{
		conn:              conn,
		addr:              remoteAddr,
		authenticated:     authenticated,
		isAdmin:           isAdmin,
		sessionID:         rand.Uint64(),
		rpcServer:         server,
		serviceRequestSem: makeSemaphore(maxReqs),
		ntfnChan:          make(chan []byte, 1),
		sendChan:          make(chan wsResponse, websocketSendBufferSize),
		quit:              make(chan struct{}),
	}
}

// handleWebsocketHelp implements the help command for websocket connections.
func handleWebsocketHelp(_ context.Context, wsc *wsClient, icmd interface{}) (interface{}, error) {
	cmd, ok := icmd.(*types.HelpCmd)
	if !ok {
		return nil, dcrjson.ErrRPCInternal
	}

	// Provide a usage overview of all commands when no specific command
	// was specified.
	var method types.Method
	if cmd.Command != nil {
		method = types.Method(*cmd.Command)
	}
	if method == "" {
		usage, err := wsc.rpcServer.helpCacher.RPCUsage(true)
		if err != nil {
			context := "Failed to generate RPC usage"
			return nil, rpcInternalError(err.Error(), context)
		}
		return usage, nil
	}

	// Check that the command asked for is supported and implemented.
	// Search the list of websocket handlers as well as the main list of
	// handlers since help should only be provided for those cases.
	valid := true
	if _, ok := rpcHandlers[method]; !ok {
		if _, ok := wsHandlers[method]; !ok {
			valid = false
		}
	}
	if !valid {
		return nil, rpcInvalidError("Unknown method: %v", method)
	}

	// Get the help for the command.
	help, err := wsc.rpcServer.helpCacher.RPCMethodHelp(method)
	if err != nil {
		context := "Failed to generate help"
		return nil, rpcInternalError(err.Error(), context)
	}
	return help, nil
}

// handleNotifyWork implements the notifywork command extension for
// websocket connections.
func handleNotifyWork(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.RegisterWorkUpdates(wsc)
	return nil, nil
}

// handleSession implements the session command extension for websocket
// connections.
func handleSession(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	return &types.SessionResult{SessionID: wsc.sessionID}, nil
}

// handleStopNotifyWork implements the stopnotifywork command extension for
// websocket connections.
func handleStopNotifyWork(_ context.Context, wsc *wsClient, _ interface{}) (interface{}, error) {
	wsc.rpcServer.ntfnMgr.UnregisterWorkUpdates(wsc)
	return nil, nil
}

func init() {
	wsHandlers = wsHandlersBeforeInit
}
