// fastview publishes idempotent view snapshots to web clients over websocket.
package fastview

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	channerics "github.com/niceyeti/channerics/channels"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 1 * time.Second
	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// The rate at which snapshots are sent to the client, so as not to overburden it.
	pubResolution  = time.Millisecond * 100
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// Client publishes snapshots unidirectionally to one web client. Snapshots must be
// idempotent: only the latest one matters, so intervening snapshots received faster
// than the publication rate are coalesced and only the newest is sent.
type Client[T any] struct {
	snapshots <-chan T
	pongs     chan struct{}
	ws        *websock
	rootCtx   context.Context
}

// NewClient upgrades the request to a websocket and returns a publisher for snapshots.
func NewClient[T any](
	snapshots <-chan T,
	w http.ResponseWriter,
	r *http.Request,
) (*Client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, fmt.Errorf("upgrade: %w", err)
	}
	ws.SetReadLimit(maxMessageSize)
	if err = ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		_ = ws.Close()
		return nil, fmt.Errorf("read deadline: %w", err)
	}

	pongs := make(chan struct{}, 1)
	// Called from within ReadMessage, hence on the reader's goroutine.
	ws.SetPongHandler(func(_ string) error {
		if err := ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
			return err
		}
		select {
		case pongs <- struct{}{}:
		default:
		}
		return nil
	})

	return &Client[T]{
		snapshots: snapshots,
		pongs:     pongs,
		ws:        newWebSocket(ws),
		rootCtx:   r.Context(),
	}, nil
}

// Sync runs the read, ping and publish pumps until the client disconnects, the
// snapshot channel closes, or an unexpected error occurs. Disconnects return nil.
// The websocket is closed before Sync returns.
func (cli *Client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)
	// The publisher ending (input closed) must also end the other pumps.
	pubCtx, pubDone := context.WithCancel(groupCtx)
	defer pubDone()

	// Closing the connection is what releases a reader blocked in ReadMessage.
	group.Go(func() error {
		<-pubCtx.Done()
		cli.ws.Close()
		return nil
	})
	group.Go(func() error {
		return cli.readMessages(pubCtx)
	})
	group.Go(func() error {
		return cli.pingPong(pubCtx)
	})
	group.Go(func() error {
		defer pubDone()
		return cli.publish(pubCtx)
	})

	err := group.Wait()
	if isClosure(err) {
		return nil
	}
	return err
}

var ErrPongDeadlineExceeded error = errors.New("client disconnect, pong deadline exceeded")

// pingPong runs the client liveness check. It requires readMessages to be running
// so that the pong handler is called.
func (cli *Client[T]) pingPong(ctx context.Context) error {
	pinger := channerics.NewTicker(ctx.Done(), pingResolution)
	lastPong := time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-pinger:
			if time.Since(lastPong) > pongWait {
				return ErrPongDeadlineExceeded
			}
			if err := cli.ping(ctx); err != nil {
				return err
			}
		case <-cli.pongs:
			lastPong = time.Now()
		}
	}
}

func (cli *Client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %w", err, err)
				}
			}
			return
		})
}

// readMessages drains client messages. Read errors are permanent, hence any error
// must trigger full teardown. Errors caused by the teardown itself are dropped.
func (cli *Client[T]) readMessages(ctx context.Context) error {
	for {
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, _, readErr = ws.ReadMessage()
				return
			})
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

// publish sends the newest snapshot at most once per pubResolution.
func (cli *Client[T]) publish(ctx context.Context) error {
	ticker := channerics.NewTicker(ctx.Done(), pubResolution)
	var (
		latest  T
		pending bool
	)
	for {
		select {
		case <-ctx.Done():
			return nil
		case snapshot, ok := <-cli.snapshots:
			if !ok {
				if pending {
					return cli.send(ctx, latest)
				}
				return nil
			}
			latest, pending = snapshot, true
		case <-ticker:
			if !pending {
				continue
			}
			pending = false
			if err := cli.send(ctx, latest); err != nil {
				return err
			}
		}
	}
}

func (cli *Client[T]) send(ctx context.Context, snapshot T) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (writeErr error) {
			if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
				return fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
			}
			if writeErr = ws.WriteJSON(snapshot); writeErr != nil && isError(writeErr) {
				writeErr = fmt.Errorf("publish failed: %T %w", writeErr, writeErr)
			}
			return
		})
}

func isError(err error) bool {
	return err != nil && websocket.IsUnexpectedCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

func isClosure(err error) bool {
	return err != nil && websocket.IsCloseError(
		err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway)
}

// ErrSockCongestion indicates there are too many waiters on the socket for a given op.
var ErrSockCongestion = errors.New("sock op failed due to congestion")

const (
	readDeadline     = time.Second
	writeDeadline    = time.Second
	closeGracePeriod = time.Second
)

// websock serializes reads and writes to the websocket, which allows only one
// concurrent reader and one concurrent writer.
type websock struct {
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func newWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Close sends a close message and closes the connection. Only the write side is
// taken, since a blocked reader is released by closing the connection.
func (sock *websock) Close() {
	sock.writeSem <- struct{}{}
	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	err := sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err == nil {
		time.Sleep(closeGracePeriod)
	}
	if err = sock.ws.Close(); err != nil {
		klog.V(2).InfoS("Websocket close", "err", err)
	}
}

// Read serializes read operations on the internal web socket.
func (sock *websock) Read(
	ctx context.Context,
	readFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.readSem <- struct{}{}:
		defer func() { <-sock.readSem }()
		return readFn(sock.ws)
	case <-time.After(readDeadline):
		return ErrSockCongestion
	}
}

// Write serializes write operations to the websocket.
func (sock *websock) Write(
	ctx context.Context,
	writeFn func(*websocket.Conn) error,
) error {
	select {
	case <-ctx.Done():
		return nil
	case sock.writeSem <- struct{}{}:
		defer func() { <-sock.writeSem }()
		return writeFn(sock.ws)
	case <-time.After(writeDeadline):
		return ErrSockCongestion
	}
}
