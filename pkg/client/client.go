package client

import (
	"encoding/json"
	"errors"
	"net"
	"time"

	"geokd/pkg/common"
	"geokd/pkg/protocol"
)

type Client struct {
	conn net.Conn
	addr string
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	return &Client{
		conn: conn,
		addr: addr,
	}, nil
}

// Nearest returns the closest city to (lat, lon) and its distance in km.
func (c *Client) Nearest(lat, lon float64) (common.Record, float64, error) {
	return c.nearest(protocol.OpNearest, lat, lon)
}

func (c *Client) NearestExact(lat, lon float64) (common.Record, float64, error) {
	return c.nearest(protocol.OpNearestExact, lat, lon)
}

func (c *Client) nearest(op byte, lat, lon float64) (common.Record, float64, error) {
	pkg, err := c.roundTrip(op, nil, protocol.EncodeFloats(lat, lon))
	if err != nil {
		return common.Record{}, 0, err
	}
	dist, err := protocol.DecodeFloats(pkg.Key, 1)
	if err != nil {
		return common.Record{}, 0, err
	}
	records, err := protocol.DecodeRecords(pkg.Value)
	if err != nil {
		return common.Record{}, 0, err
	}
	if len(records) != 1 {
		return common.Record{}, 0, errors.New("unexpected nearest reply")
	}
	return records[0], dist[0], nil
}

func (c *Client) Range(rect common.Rect) ([]common.Record, error) {
	pkg, err := c.roundTrip(protocol.OpRange, nil, protocol.EncodeFloats(rect.MinLat, rect.MinLon, rect.MaxLat, rect.MaxLon))
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRecords(pkg.Value)
}

func (c *Client) Insert(rec common.Record, balanced bool) error {
	flag := []byte{0}
	if balanced {
		flag[0] = 1
	}
	_, err := c.roundTrip(protocol.OpInsert, flag, protocol.EncodeRecords([]common.Record{rec}))
	return err
}

func (c *Client) Find(name string) ([]common.Record, error) {
	pkg, err := c.roundTrip(protocol.OpFind, []byte(name), nil)
	if err != nil {
		return nil, err
	}
	return protocol.DecodeRecords(pkg.Value)
}

func (c *Client) Stats() (map[string]interface{}, error) {
	pkg, err := c.roundTrip(protocol.OpStats, nil, nil)
	if err != nil {
		return nil, err
	}
	stats := make(map[string]interface{})
	if err := json.Unmarshal(pkg.Value, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// roundTrip sends one request and reads its reply, redialing once when the
// connection turns out to be broken. An insert whose request may have reached
// the server is not resent, since the server could already have applied it.
func (c *Client) roundTrip(op byte, key, val []byte) (*protocol.Packet, error) {
	pkg, sent, err := c.exchange(op, key, val)
	if err == nil {
		return pkg, nil
	}
	var remote *RemoteError
	if errors.As(err, &remote) {
		return nil, err
	}
	if sent && op == protocol.OpInsert {
		return nil, err
	}
	return c.reconnectAndRetry(op, key, val)
}

// exchange reports sent once the request frame was fully written.
func (c *Client) exchange(op byte, key, val []byte) (*protocol.Packet, bool, error) {
	if err := protocol.Encode(c.conn, op, key, val); err != nil {
		return nil, false, err
	}
	pkg, err := c.readReply()
	return pkg, true, err
}

func (c *Client) readReply() (*protocol.Packet, error) {
	pkg, err := protocol.Decode(c.conn)
	if err != nil {
		return nil, err
	}

	switch pkg.Op {
	case protocol.RespOK, protocol.RespVal:
		return pkg, nil
	case protocol.RespErr:
		return nil, &RemoteError{Msg: string(pkg.Value)}
	default:
		return nil, errors.New("unknown response")
	}
}

func (c *Client) reconnectAndRetry(op byte, key, val []byte) (*protocol.Packet, error) {
	c.conn.Close()
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return nil, err
	}
	c.conn = conn

	pkg, _, err := c.exchange(op, key, val)
	return pkg, err
}

// RemoteError carries an error message reported by the server.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return "server: " + e.Msg }
