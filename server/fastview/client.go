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
)

const (
	writeWait = 1 * time.Second
	// Edit and control messages are tiny; anything larger is refused.
	maxMessageSize = 8192

	// At most one batch of element updates per pubResolution reaches the page.
	pubResolution  = time.Millisecond * 50
	pingResolution = time.Millisecond * 200
	// The number of pings to tolerate losing before concluding the peer is gone.
	pongWait = pingResolution * 4
)

var upgrader = websocket.Upgrader{}

// MessageHandler receives each message read from the web client. An error
// tears down the connection, so handlers should only return fatal errors.
type MessageHandler func(ctx context.Context, msg []byte) error

// A client publishes updates to a web client via websocket and passes the
// messages the page sends back (edits, controls) to a MessageHandler.
type client[T any] struct {
	updates   <-chan T
	onMessage MessageHandler
	ws        *websock
	rootCtx   context.Context
}

// NewClient upgrades the request to a websocket. Each item on @updates must carry
// the full state of the elements it names, since items arriving faster than the
// publish rate are dropped. @onMessage may be nil for publish-only clients.
func NewClient[T any](
	updates <-chan T,
	onMessage MessageHandler,
	w http.ResponseWriter,
	r *http.Request,
) (*client[T], error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// The upgrader has already replied to the request.
		return nil, err
	}
	ws.SetReadLimit(maxMessageSize)

	return &client[T]{
		updates:   updates,
		onMessage: onMessage,
		ws:        NewWebSocket(ws),
		rootCtx:   r.Context(),
	}, nil
}

// Sync reads, pings and publishes until the page goes away or one of them fails.
// A normal close from either side returns nil.
func (cli *client[T]) Sync() error {
	group, groupCtx := errgroup.WithContext(cli.rootCtx)

	// A blocked ReadMessage only returns once the connection fails, so force it.
	go func() {
		<-groupCtx.Done()
		_ = cli.ws.Conn().SetReadDeadline(time.Now())
	}()

	group.Go(func() error {
		return cli.readMessages(groupCtx)
	})
	group.Go(func() error {
		return cli.pingPong(groupCtx)
	})
	group.Go(func() error {
		return cli.publish(groupCtx)
	})

	if err := group.Wait(); !errors.Is(err, errClosed) {
		return err
	}
	return nil
}

// Close sends a close frame and closes the connection. Call it after Sync returns.
func (cli *client[T]) Close() {
	cli.ws.Close()
}

// errClosed ends the sync when either side finishes normally.
var errClosed = errors.New("client closed the connection")

// ErrPongDeadlineExceeded means the page stopped answering pings.
var ErrPongDeadlineExceeded = errors.New("page stopped answering pings")

// pingPong fails the sync once pongs stop arriving. Pong handlers only run inside
// a read, so readMessages must be running.
func (cli *client[T]) pingPong(ctx context.Context) error {
	pong := make(chan struct{}, 1)
	cli.ws.Conn().SetPongHandler(func(_ string) error {
		select {
		case pong <- struct{}{}:
		default:
		}
		return nil
	})

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
		case <-pong:
			lastPong = time.Now()
		}
	}
}

func (cli *client[T]) ping(ctx context.Context) error {
	return cli.ws.Write(
		ctx,
		func(ws *websocket.Conn) (err error) {
			if err = ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				if isError(err) {
					err = fmt.Errorf("ping failed: %T %v", err, err)
				}
			}
			return
		})
}

// readMessages hands each page message to the handler. A failed read leaves the
// connection unusable, so every read error ends the sync.
func (cli *client[T]) readMessages(ctx context.Context) error {
	for {
		var msg []byte
		err := cli.ws.Read(
			ctx,
			func(ws *websocket.Conn) (readErr error) {
				_, msg, readErr = ws.ReadMessage()
				return
			})
		switch {
		case isClosure(err):
			return errClosed
		case err != nil:
			if ctx.Err() != nil {
				return nil
			}
			return err
		case ctx.Err() != nil:
			return nil
		}

		if cli.onMessage == nil || msg == nil {
			continue
		}
		if err = cli.onMessage(ctx, msg); err != nil {
			return err
		}
	}
}

func (cli *client[T]) publish(ctx context.Context) error {
	lastSync := time.Time{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case updates, ok := <-cli.updates:
			// The broker dropped us.
			if !ok {
				return errClosed
			}
			if time.Since(lastSync) < pubResolution {
				break
			}

			lastSync = time.Now()
			err := cli.ws.Write(
				ctx,
				func(ws *websocket.Conn) (writeErr error) {
					if writeErr = ws.SetWriteDeadline(time.Now().Add(writeWait)); writeErr != nil {
						writeErr = fmt.Errorf("failed to set deadline: %T %w", writeErr, writeErr)
						return
					}

					if writeErr = ws.WriteJSON(updates); writeErr != nil {
						if isError(writeErr) {
							writeErr = fmt.Errorf("publish failed: %T %v", writeErr, writeErr)
						}
					}
					return
				})
			if err != nil {
				return err
			}
		}
	}
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
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}

// ErrSockCongestion is returned when a read or write waits too long for its turn.
var ErrSockCongestion = errors.New("websocket busy")

const (
	semaphoreWait    = time.Second
	closeGracePeriod = 500 * time.Millisecond
)

// websock allows one reader and one writer on the connection at a time.
type websock struct {
	// one-slot semaphores, so acquiring can time out
	readSem  chan struct{}
	writeSem chan struct{}
	ws       *websocket.Conn
}

func NewWebSocket(ws *websocket.Conn) *websock {
	return &websock{
		readSem:  make(chan struct{}, 1),
		writeSem: make(chan struct{}, 1),
		ws:       ws,
	}
}

// Conn is for setup only, such as installing handlers before Sync.
func (sock *websock) Conn() *websocket.Conn {
	return sock.ws
}

// Close takes both semaphores for good, says goodbye and closes the connection.
func (sock *websock) Close() {
	sock.readSem <- struct{}{}
	sock.writeSem <- struct{}{}

	_ = sock.ws.SetWriteDeadline(time.Now().Add(writeWait))
	_ = sock.ws.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	time.Sleep(closeGracePeriod)
	sock.ws.Close()
}

// Read runs @readFn once no other read is in progress.
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
	case <-time.After(semaphoreWait):
		return ErrSockCongestion
	}
}

// Write runs @writeFn once no other write is in progress.
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
	case <-time.After(semaphoreWait):
		return ErrSockCongestion
	}
}
