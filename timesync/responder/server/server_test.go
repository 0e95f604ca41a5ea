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

package server

import (
	"context"
	"errors"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/examclock/examclock/timesync/protocol"
	"github.com/examclock/examclock/timesync/responder/checker"
	"github.com/examclock/examclock/timesync/responder/stats"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

var (
	localhost = net.ParseIP("127.0.0.1")
	ts        = time.Date(2025, 9, 1, 14, 0, 0, 0, time.UTC)
	client    = &net.UDPAddr{IP: net.ParseIP("192.168.0.7"), Port: 40000}
)

type fakeConn struct {
	sent [][]byte
	to   []*net.UDPAddr
	err  error
}

func (f *fakeConn) WriteToUDP(b []byte, addr *net.UDPAddr) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.sent = append(f.sent, append([]byte{}, b...))
	f.to = append(f.to, addr)
	return len(b), nil
}

func staticHostID(id uint16) func() uint16 {
	return func() uint16 { return id }
}

// listenResponses returns a socket playing the requester side
func listenResponses(t *testing.T) *net.UDPConn {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: localhost})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestGenerateResponse(t *testing.T) {
	request := protocol.NewRequest(1, ts)
	received := ts.Add(time.Second)
	now := received.Add(time.Millisecond)

	response := generateResponse(202, request, received, now)
	require.Equal(t, protocol.KindResponse, response.Kind)
	require.Equal(t, uint16(202), response.HostID)
	require.Equal(t, []time.Time{ts, received, now}, response.Timestamps)
}

func TestServeRequest(t *testing.T) {
	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort},
		HostID: staticHostID(101),
		Stats:  &stats.JSONStats{},
	}
	conn := &fakeConn{}
	before := time.Now()
	s.serve(conn, protocol.Encode(protocol.NewRequest(5, ts)), client, time.Now())
	after := time.Now()

	require.Len(t, conn.sent, 1)
	require.True(t, client.IP.Equal(conn.to[0].IP))
	require.Equal(t, DefaultResponsePort, conn.to[0].Port)

	response, err := protocol.Decode(conn.sent[0])
	require.NoError(t, err)
	require.Equal(t, protocol.KindResponse, response.Kind)
	require.Equal(t, uint16(101), response.HostID)
	require.True(t, ts.Equal(response.Timestamps[0]))
	arrival, send := response.Timestamps[1], response.Timestamps[2]
	require.False(t, send.Before(arrival))
	require.False(t, arrival.Before(protocol.Truncate(before)))
	require.False(t, send.After(after))
}

func TestServeResilience(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := NewMockStats(ctrl)
	gomock.InOrder(
		st.EXPECT().IncInvalidFormat(),
		st.EXPECT().IncRequests(),
		st.EXPECT().IncResponses(),
	)

	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort},
		HostID: staticHostID(101),
		Stats:  st,
	}
	conn := &fakeConn{}

	corrupted := protocol.Encode(protocol.NewRequest(5, ts))
	corrupted[0] = 'X'
	s.serve(conn, corrupted, client, time.Now())
	require.Empty(t, conn.sent)

	s.serve(conn, protocol.Encode(protocol.NewRequest(5, ts)), client, time.Now())
	require.Len(t, conn.sent, 1)
	response, err := protocol.Decode(conn.sent[0])
	require.NoError(t, err)
	require.True(t, ts.Equal(response.Timestamps[0]))
}

func TestServeIgnoresResponses(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := NewMockStats(ctrl)
	st.EXPECT().IncInvalidFormat()

	s := &Server{HostID: staticHostID(1), Stats: st}
	conn := &fakeConn{}
	s.serve(conn, protocol.Encode(protocol.NewResponse(2, ts, ts, ts)), client, time.Now())
	require.Empty(t, conn.sent)
}

func TestServeSendError(t *testing.T) {
	ctrl := gomock.NewController(t)
	st := NewMockStats(ctrl)
	st.EXPECT().IncRequests()
	st.EXPECT().IncSendError()

	s := &Server{Config: Config{ResponsePort: 1}, HostID: staticHostID(1), Stats: st}
	conn := &fakeConn{err: errors.New("network is unreachable")}
	s.serve(conn, protocol.Encode(protocol.NewRequest(2, ts)), client, time.Now())
}

func TestServeHostIDPerResponse(t *testing.T) {
	var id uint16
	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort},
		HostID: func() uint16 { id++; return id },
		Stats:  &stats.JSONStats{},
	}
	conn := &fakeConn{}
	request := protocol.Encode(protocol.NewRequest(9, ts))
	s.serve(conn, request, client, time.Now())
	s.serve(conn, request, client, time.Now())

	require.Len(t, conn.sent, 2)
	for i, b := range conn.sent {
		response, err := protocol.Decode(b)
		require.NoError(t, err)
		require.Equal(t, uint16(i+1), response.HostID)
	}
}

func TestServeUsesArrivalTime(t *testing.T) {
	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
		Stats:  &stats.JSONStats{},
	}
	conn := &fakeConn{}
	received := time.Now().Add(-50 * time.Millisecond)
	s.serve(conn, protocol.Encode(protocol.NewRequest(9, ts)), client, received)

	response, err := protocol.Decode(conn.sent[0])
	require.NoError(t, err)
	require.True(t, protocol.Truncate(received).Equal(response.Timestamps[1]))
	require.True(t, response.Timestamps[2].After(response.Timestamps[1]))
}

func TestServeExtraOffset(t *testing.T) {
	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort, ExtraOffset: time.Hour},
		HostID: staticHostID(1),
		Stats:  &stats.JSONStats{},
	}
	conn := &fakeConn{}
	s.serve(conn, protocol.Encode(protocol.NewRequest(9, time.Now())), client, time.Now())

	response, err := protocol.Decode(conn.sent[0])
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), response.Timestamps[2], time.Second)
}

func TestStartServesOverUDP(t *testing.T) {
	responses := listenResponses(t)
	st := &stats.JSONStats{}
	s := &Server{
		Config: Config{
			IP:           localhost,
			ResponsePort: responses.LocalAddr().(*net.UDPAddr).Port,
		},
		HostID: staticHostID(101),
		Stats:  st,
	}
	require.NoError(t, s.Start(context.Background()))
	defer s.Stop()
	require.True(t, s.Running())

	requester, err := net.DialUDP("udp4", nil, s.Addr())
	require.NoError(t, err)
	defer requester.Close()

	// garbage first, the listener must survive it
	_, err = requester.Write([]byte("not a time sync message at all"))
	require.NoError(t, err)
	_, err = requester.Write(protocol.Encode(protocol.NewRequest(7, ts)))
	require.NoError(t, err)

	require.NoError(t, responses.SetReadDeadline(time.Now().Add(2*time.Second)))
	buf := make([]byte, 128)
	n, from, err := responses.ReadFromUDP(buf)
	require.NoError(t, err)
	require.Equal(t, s.Addr().Port, from.Port)

	response, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	require.Equal(t, protocol.KindResponse, response.Kind)
	require.Equal(t, uint16(101), response.HostID)
	require.True(t, ts.Equal(response.Timestamps[0]))
	require.True(t, s.Running())
}

func TestStopIsPrompt(t *testing.T) {
	s := &Server{
		Config: Config{IP: localhost, ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
	}
	require.NoError(t, s.Start(context.Background()))

	s.Stop()
	done := make(chan struct{})
	go func() {
		s.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("listener did not exit after Stop")
	}
	require.False(t, s.Running())
	// stopping again is harmless
	s.Stop()
}

func TestStartContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		Config: Config{IP: localhost, ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
	}
	require.NoError(t, s.Start(ctx))
	cancel()
	s.Wait()
	require.False(t, s.Running())
}

func TestStartTwice(t *testing.T) {
	s := &Server{
		Config: Config{IP: localhost, ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
	}
	require.NoError(t, s.Start(context.Background()))
	require.ErrorIs(t, s.Start(context.Background()), ErrAlreadyRunning)
	s.Stop()
	s.Wait()

	// restart after stop is fine
	require.NoError(t, s.Start(context.Background()))
	s.Stop()
	s.Wait()
}

func TestStartConcurrent(t *testing.T) {
	s := &Server{
		Config: Config{IP: localhost, ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
	}
	errs := make(chan error, 4)
	var wg sync.WaitGroup
	for i := 0; i < cap(errs); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- s.Start(context.Background())
		}()
	}
	wg.Wait()
	close(errs)
	defer s.Wait()
	defer s.Stop()

	started := 0
	for err := range errs {
		if err == nil {
			started++
			continue
		}
		require.ErrorIs(t, err, ErrAlreadyRunning)
	}
	require.Equal(t, 1, started)
	require.NotNil(t, s.Stats)
}

func TestStartBindFailure(t *testing.T) {
	busy := listenResponses(t)
	s := &Server{
		Config: Config{
			IP:           localhost,
			RequestPort:  busy.LocalAddr().(*net.UDPAddr).Port,
			ResponsePort: DefaultResponsePort,
		},
		HostID: staticHostID(1),
	}
	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrBind)
	require.False(t, s.Running())
}

func TestStartNoHostID(t *testing.T) {
	s := &Server{Config: DefaultConfig()}
	require.Error(t, s.Start(context.Background()))
}

func TestListener(t *testing.T) {
	ch := &checker.SimpleChecker{ExpectedListeners: 1}
	s := &Server{
		Config:  Config{IP: localhost, ResponsePort: DefaultResponsePort},
		HostID:  staticHostID(1),
		Checker: ch,
	}
	require.NoError(t, s.Start(context.Background()))
	require.Eventually(t, func() bool { return ch.Check() == nil }, time.Second, 10*time.Millisecond)

	s.Stop()
	s.Wait()
	require.Error(t, ch.Check())
}

func Benchmark_serve(b *testing.B) {
	s := &Server{
		Config: Config{ResponsePort: DefaultResponsePort},
		HostID: staticHostID(1),
		Stats:  &stats.JSONStats{},
	}
	conn := &fakeConn{}
	request := protocol.Encode(protocol.NewRequest(9, ts))
	for i := 0; i < b.N; i++ {
		conn.sent = conn.sent[:0]
		conn.to = conn.to[:0]
		s.serve(conn, request, client, time.Now())
	}
}
