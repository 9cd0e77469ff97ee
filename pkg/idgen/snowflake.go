// Package idgen produces time-ordered 64-bit file identifiers.
package idgen

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"
)

// Layout: 41 bits of milliseconds since Epoch, 10 bits of node ID, 12 bits of sequence.
const (
	nodeBits     = 10
	sequenceBits = 12

	maxNodeID   = 1<<nodeBits - 1
	maxSequence = 1<<sequenceBits - 1

	nodeShift      = sequenceBits
	timestampShift = sequenceBits + nodeBits

	// Epoch is 2025-01-01T00:00:00Z in unix milliseconds.
	Epoch int64 = 1735689600000
)

var (
	ErrNodeIDOutOfRange = errors.New("idgen: node ID out of range")
	ErrClockMovedBack   = errors.New("idgen: clock moved backwards")
)

// Snowflake generates unique IDs for one node.
type Snowflake struct {
	mu       sync.Mutex
	clock    Clock
	nodeID   int64
	lastTime int64
	sequence int64
}

// New creates a generator for nodeID. A nil clock uses SystemClock.
func New(nodeID int64, clock Clock) (*Snowflake, error) {
	if nodeID < 0 || nodeID > maxNodeID {
		return nil, ErrNodeIDOutOfRange
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &Snowflake{clock: clock, nodeID: nodeID, lastTime: -1}, nil
}

// Next returns the next ID.
func (s *Snowflake) Next(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now, err := s.clock.NowMillis(ctx)
	if err != nil {
		return 0, err
	}
	if now < s.lastTime {
		return 0, ErrClockMovedBack
	}

	if now == s.lastTime {
		s.sequence = (s.sequence + 1) & maxSequence
		if s.sequence == 0 {
			if now, err = s.waitNextMillis(ctx); err != nil {
				return 0, err
			}
		}
	} else {
		s.sequence = 0
	}
	s.lastTime = now

	return (now-Epoch)<<timestampShift | s.nodeID<<nodeShift | s.sequence, nil
}

// NextString returns the next ID in base 10.
func (s *Snowflake) NextString(ctx context.Context) (string, error) {
	id, err := s.Next(ctx)
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(id, 10), nil
}

func (s *Snowflake) waitNextMillis(ctx context.Context) (int64, error) {
	for {
		now, err := s.clock.NowMillis(ctx)
		if err != nil {
			return 0, err
		}
		if now > s.lastTime {
			return now, nil
		}
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// Time returns the creation time encoded in id.
func Time(id int64) time.Time {
	return time.UnixMilli(id>>timestampShift + Epoch)
}
