package net

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"njord/internal/asset"
	"njord/internal/pair"
	"njord/internal/utils"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 5 * time.Minute
)

var ErrImproperConversion = errors.New("improper type conversion")

// ClientSession contains relevant information pertaining to an individual
// connected TCP session.
type ClientSession struct {
	conn net.Conn
}

// ClientMessage links a message to the client sending it.
type ClientMessage struct {
	clientAddress string
	message       Message
}

// Server is the TCP gateway exposing the trading pair's three operations.
// All pair mutations happen on the sessionHandler goroutine, which keeps the
// pair's single-writer discipline without a lock around the hot path.
type Server struct {
	address string
	port    int
	pair    *pair.TradingPair

	pool   utils.WorkerPool
	cancel context.CancelFunc

	clientSessions     map[string]ClientSession
	clientSessionsLock sync.Mutex
	clientMessages     chan ClientMessage

	// wallet holds the ownership tokens minted for orders placed through
	// this gateway, keyed by order key. Only the sessionHandler touches it.
	wallet map[uuid.UUID]asset.Token
}

func New(address string, port int, tradingPair *pair.TradingPair) *Server {
	return &Server{
		address:        address,
		port:           port,
		pair:           tradingPair,
		pool:           utils.NewWorkerPool(defaultNWorkers),
		clientSessions: make(map[string]ClientSession),
		clientMessages: make(chan ClientMessage, 1),
		wallet:         make(map[uuid.UUID]asset.Token),
	}
}

func (s *Server) Shutdown() {
	log.Info().Msg("server shutting down")
	s.cancel()
}

func (s *Server) Run(ctx context.Context) {
	defer s.Shutdown()

	// Setup a cancel on the context for future shutdown.
	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	// Start a tcp listener.
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		log.Error().Err(err).Msg("unable to start listener")
		return
	}
	defer func() {
		if err := listener.Close(); err != nil {
			log.Error().Err(err).Msg("unable to close listener")
		}
	}()

	// Start the worker pool.
	s.pool.Setup(t, s.handleConnection)

	// Start the session handler.
	t.Go(func() error {
		return s.sessionHandler(t)
	})

	log.Info().
		Str("address", s.address).
		Int("port", s.port).
		Msg("gateway running")

	// Start accepting connections.
	for {
		select {
		case <-ctx.Done():
			return
		default:
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				log.Error().Err(err).Msg("error accepting client")
				continue
			}

			log.Info().
				Str("address", conn.RemoteAddr().String()).
				Msg("new client added")
			// Add the client to client sessions we are tracking.
			// We expect to potentially maintain a long TCP session.
			s.addClientSession(conn)

			// Pass over the connection to be read from.
			s.pool.AddTask(conn)
		}
	}
}

// sessionHandler executes client requests against the trading pair, one at a
// time, and reports the result back to the requesting session. This is the
// pair's single writer.
func (s *Server) sessionHandler(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case message := <-s.clientMessages:
			report := s.execute(message.message)
			if err := s.report(message.clientAddress, report); err != nil {
				log.Error().
					Err(err).
					Str("address", message.clientAddress).
					Msg("unable to send report")
			}
		}
	}
}

// execute runs one request against the trading pair and shapes the report.
func (s *Server) execute(message Message) Report {
	switch m := message.(type) {
	case NewLimitOrderMessage:
		deposit, err := asset.NewFunds(m.Class, m.Amount)
		if err != nil {
			return errorReport(err)
		}
		token, err := s.pair.NewLimitOrder(deposit, m.Price)
		if err != nil {
			return errorReport(err)
		}
		s.wallet[token.Key] = token
		return Report{TypeOf: OrderPlacedReport, OrderKey: token.Key}

	case NewMarketOrderMessage:
		deposit, err := asset.NewFunds(m.Class, m.Amount)
		if err != nil {
			return errorReport(err)
		}
		unspent, proceeds, err := s.pair.NewMarketOrder(deposit)
		if err != nil {
			// Partial progress is still handed back to the caller.
			log.Warn().Err(err).Msg("market order not fully executed")
			return errorReport(err)
		}
		report := Report{
			TypeOf:  MarketResultReport,
			Unspent: entryOf(unspent),
		}
		if proceeds != nil {
			report.HasProceeds = true
			report.Proceeds = entryOf(*proceeds)
		}
		return report

	case CloseOrderMessage:
		token, ok := s.wallet[m.OrderKey]
		if !ok {
			return errorReport(pair.ErrInvalidToken)
		}
		refund, traded, err := s.pair.CloseLimitOrder(token)
		if err != nil {
			return errorReport(err)
		}
		delete(s.wallet, m.OrderKey)
		return Report{
			TypeOf: OrderClosedReport,
			Refund: entryOf(refund),
			Traded: entryOf(traded),
		}

	default:
		return errorReport(ErrInvalidMessageType)
	}
}

func errorReport(err error) Report {
	return Report{TypeOf: ErrorReport, Err: err.Error()}
}

// report sends a report back to the addressed client session.
func (s *Server) report(clientAddress string, report Report) error {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	client, ok := s.clientSessions[clientAddress]
	if !ok {
		return fmt.Errorf("client %s does not exist", clientAddress)
	}

	if _, err := client.conn.Write(report.Serialize()); err != nil {
		delete(s.clientSessions, clientAddress)
		return fmt.Errorf("unable to send report: %w", err)
	}
	return nil
}

// handleConnection is a short-lived worker method which reads the next
// message off the connection, parses and passes it forward to sessionHandler
// to handle it. If the connection dies, the client session is cleaned up.
// Note, any error returned from here is fatal to the worker pool.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetReadDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().
			Str("address", conn.RemoteAddr().String()).
			Err(err).
			Msg("failed setting deadline for connection")
		s.dropClientSession(conn)
		return nil
	}

	buffer := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
		n, err := conn.Read(buffer)
		if err != nil {
			// The client most likely went away; clean up the session.
			log.Info().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("client connection closed")
			s.dropClientSession(conn)
			return nil
		}

		message, err := ParseMessage(buffer[:n])
		if err != nil {
			log.Error().
				Err(err).
				Str("address", conn.RemoteAddr().String()).
				Msg("error parsing message")
			s.dropClientSession(conn)
			return nil
		}

		// Pass over to the message handling buffer and exit this worker.
		s.clientMessages <- ClientMessage{
			message:       message,
			clientAddress: conn.RemoteAddr().String(),
		}

		// Push the client connection back to handle the next message.
		s.pool.AddTask(conn)
	}
	return nil
}

// addClientSession is an atomic map add.
func (s *Server) addClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	s.clientSessions[conn.RemoteAddr().String()] = ClientSession{conn: conn}
}

// dropClientSession is an atomic map remove; it also closes the connection.
func (s *Server) dropClientSession(conn net.Conn) {
	s.clientSessionsLock.Lock()
	defer s.clientSessionsLock.Unlock()

	delete(s.clientSessions, conn.RemoteAddr().String())
	if err := conn.Close(); err != nil {
		log.Error().Str("address", conn.RemoteAddr().String()).Err(err).Msg("unable to close connection")
	}
}
