/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

/*
Package server implements the time sync responder: a UDP server answering
requests with the time they arrived and the time the answer was sent.

Stopping is cooperative: the listener observes the stop signal between
datagrams. To keep shutdown prompt the socket is also closed on Stop, which
releases a read that is blocked waiting for the next datagram.
*/
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/examclock/examclock/sockopt"
	"github.com/examclock/examclock/timestamp"
	"github.com/examclock/examclock/timesync/protocol"
	"github.com/examclock/examclock/timesync/responder/stats"
	log "github.com/sirupsen/logrus"
)

// maxPacketSizeBytes is enough for any valid message plus some garbage
const maxPacketSizeBytes = 1024

var (
	// ErrBind is returned when the request port can't be bound
	ErrBind = errors.New("failed to bind request port")
	// ErrAlreadyRunning is returned by Start on a running server
	ErrAlreadyRunning = errors.New("server is already running")
)

// packetWriter is the part of net.UDPConn used to send responses
type packetWriter interface {
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
}

// Server is a type for UDP server which answers time sync requests.
type Server struct {
	Config Config
	// HostID returns identifier sent with every response. Called for every response.
	HostID  func() uint16
	Stats   Stats
	Checker Checker

	mu     sync.Mutex
	conn   *net.UDPConn
	cancel context.CancelFunc
	done   chan struct{}
}

// Start binds request port and starts listening in background.
// It returns once the socket is bound; the listener runs until Stop is called or ctx is done.
func (s *Server) Start(ctx context.Context) error {
	if err := s.Config.Validate(); err != nil {
		return err
	}
	if s.HostID == nil {
		return fmt.Errorf("host id accessor is not set")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Stats == nil {
		s.Stats = &stats.JSONStats{}
	}
	if s.done != nil {
		select {
		case <-s.done:
		default:
			return ErrAlreadyRunning
		}
	}

	conn, err := sockopt.ListenUDP(ctx, s.Config.IP, s.Config.RequestPort, sockopt.Options{
		ReuseAddr:    s.Config.ReuseAddr,
		Broadcast:    true,
		RXTimestamps: true,
		DSCP:         s.Config.DSCP,
	})
	if err != nil {
		return fmt.Errorf("%w %d: %w", ErrBind, s.Config.RequestPort, err)
	}
	log.Infof("Starting listener on %s", conn.LocalAddr())

	ctx, cancel := context.WithCancel(ctx)
	// closing the socket unblocks a pending read
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	s.conn = conn
	s.cancel = cancel
	s.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		defer stop()
		defer cancel()
		s.startListener(ctx, conn)
	}(s.done)
	return nil
}

// Stop requests the listener to exit. It does not wait, use Wait for that.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		log.Info("Stopping listener")
		s.cancel()
	}
}

// Wait blocks until the listener exits
func (s *Server) Wait() {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Running reports whether the listener is running
func (s *Server) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done == nil {
		return false
	}
	select {
	case <-s.done:
		return false
	default:
		return true
	}
}

// Addr returns the address listener is bound to, nil if never started
func (s *Server) Addr() *net.UDPAddr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr().(*net.UDPAddr)
}

func (s *Server) startListener(ctx context.Context, conn *net.UDPConn) {
	s.Stats.IncListeners()
	defer s.Stats.DecListeners()
	if s.Checker != nil {
		s.Checker.IncListeners()
		defer s.Checker.DecListeners()
	}

	buf := make([]byte, maxPacketSizeBytes)
	oob := make([]byte, timestamp.ControlSizeBytes)
	for {
		if ctx.Err() != nil {
			log.Warning("stop requested, exiting listener")
			return
		}
		n, addr, received, err := timestamp.ReadPacketWithRXTimestamp(conn, buf, oob)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				// our connection was closed
				log.Warning("listener connection closed, exiting listener")
				return
			}
			log.Errorf("Failed to read packet on %s: %v", conn.LocalAddr(), err)
			s.Stats.IncReadError()
			continue
		}
		s.serve(conn, buf[:n], addr, received)
	}
}

// serve parses the datagram received at given time and answers it if it is a valid request.
// Anything else is counted and dropped.
func (s *Server) serve(conn packetWriter, b []byte, addr *net.UDPAddr, received time.Time) {
	request, err := protocol.Decode(b)
	if err != nil {
		log.Debugf("Invalid datagram from %s, discarding: %v", addr, err)
		s.Stats.IncInvalidFormat()
		return
	}
	if request.Kind != protocol.KindRequest {
		log.Debugf("Unexpected %s from %s, discarding", request.Kind, addr)
		s.Stats.IncInvalidFormat()
		return
	}
	s.Stats.IncRequests()
	log.Debugf("Received request from %s: %+v", addr, request)

	extra := s.Config.ExtraOffset
	response := generateResponse(s.HostID(), request, received.Add(extra), time.Now().Add(extra))
	responseBytes := protocol.Encode(response)

	to := &net.UDPAddr{IP: addr.IP, Port: s.Config.ResponsePort}
	log.Debugf("Writing response to %s: %+v", to, response)
	if _, err := conn.WriteToUDP(responseBytes, to); err != nil {
		log.Debugf("Failed to respond to the request: %v", err)
		s.Stats.IncSendError()
		return
	}
	s.Stats.IncResponses()
}

// generateResponse echoes request send time and adds arrival and send times
func generateResponse(hostID uint16, request *protocol.Message, received, now time.Time) *protocol.Message {
	return protocol.NewResponse(hostID, request.Timestamps[0], received, now)
}
