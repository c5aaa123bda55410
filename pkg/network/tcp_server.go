package network

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"geokd/pkg/common"
	"geokd/pkg/core"
	"geokd/pkg/protocol"
)

type TCPServer struct {
	store *core.GeoStore
	log   *slog.Logger

	mu       sync.Mutex
	listener net.Listener
	closed   bool
}

func NewTCPServer(store *core.GeoStore, log *slog.Logger) *TCPServer {
	return &TCPServer{store: store, log: log}
}

func (s *TCPServer) Start(addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on l until Close is called.
func (s *TCPServer) Serve(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.log.Info("tcp_listening", "addr", l.Addr().String())

	for {
		conn, err := l.Accept()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if closed || errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("tcp_accept_failed", "error", err)
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *TCPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *TCPServer) handleConn(conn net.Conn) {
	defer conn.Close()

	for {
		req, err := protocol.Decode(conn)
		if err != nil {
			if err != io.EOF {
				s.log.Debug("tcp_decode_failed", "remote", conn.RemoteAddr().String(), "error", err)
			}
			return
		}
		if err := s.dispatch(conn, req); err != nil {
			s.log.Debug("tcp_write_failed", "remote", conn.RemoteAddr().String(), "error", err)
			return
		}
	}
}

func replyErr(w io.Writer, err error) error {
	return protocol.Encode(w, protocol.RespErr, nil, []byte(err.Error()))
}

func (s *TCPServer) dispatch(w io.Writer, req *protocol.Packet) error {
	switch req.Op {
	case protocol.OpNearest, protocol.OpNearestExact:
		// Value=[Lat][Lon], reply Key=[DistKm] Value=Records(1)
		vals, err := protocol.DecodeFloats(req.Value, 2)
		if err != nil {
			return replyErr(w, err)
		}
		var (
			rec  common.Record
			dist float64
		)
		if req.Op == protocol.OpNearestExact {
			rec, dist, err = s.store.NearestExact(vals[0], vals[1])
		} else {
			rec, dist, err = s.store.Nearest(vals[0], vals[1])
		}
		if err != nil {
			return replyErr(w, err)
		}
		return protocol.Encode(w, protocol.RespVal, protocol.EncodeFloats(dist), protocol.EncodeRecords([]common.Record{rec}))

	case protocol.OpRange:
		// Value=[MinLat][MinLon][MaxLat][MaxLon]
		vals, err := protocol.DecodeFloats(req.Value, 4)
		if err != nil {
			return replyErr(w, err)
		}
		rect, err := common.NewRect(vals[0], vals[1], vals[2], vals[3])
		if err != nil {
			return replyErr(w, err)
		}
		return protocol.Encode(w, protocol.RespVal, nil, protocol.EncodeRecords(s.store.Range(rect)))

	case protocol.OpInsert:
		// Key=[Balanced 1B], Value=Records(1)
		records, err := protocol.DecodeRecords(req.Value)
		if err != nil {
			return replyErr(w, err)
		}
		if len(records) != 1 {
			return replyErr(w, errors.New("insert expects exactly one record"))
		}
		balanced := len(req.Key) > 0 && req.Key[0] == 1
		if err := s.store.Insert(records[0], balanced); err != nil {
			return replyErr(w, err)
		}
		return protocol.Encode(w, protocol.RespOK, nil, nil)

	case protocol.OpFind:
		// Key=Name
		return protocol.Encode(w, protocol.RespVal, nil, protocol.EncodeRecords(s.store.Find(string(req.Key))))

	case protocol.OpStats:
		data, err := json.Marshal(s.store.Stats())
		if err != nil {
			return replyErr(w, err)
		}
		return protocol.Encode(w, protocol.RespVal, nil, data)
	}
	return replyErr(w, errors.New("unknown op"))
}
