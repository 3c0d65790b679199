package bus

import (
	"errors"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"
)

const (
	I2cWrite = iota + 1
	I2cRead
	I2cWriteRead
	I2cGet
)

var ErrSequencerClosed = errors.New("I2C sequencer is closed")

type I2cRequest struct {
	Type        int
	Addr        byte
	DataWrite   []byte
	DataRead    []byte
	GetRegister byte // Only for I2cGet
	GetSize     int  // Only for I2cGet
	Error       error

	done chan struct{}
}

func (r *I2cRequest) Wait() {
	<-r.done
}

// Sequencer executes I2C requests from multiple goroutines one after another
// in a single goroutine. It implements I2cBus itself.
type Sequencer struct {
	bus   I2cBus
	queue chan *I2cRequest

	closeLock sync.RWMutex
	closed    bool
	stopped   chan struct{}
}

func NewSequencer(bus I2cBus, queueSize int) *Sequencer {
	s := &Sequencer{
		bus:     bus,
		queue:   make(chan *I2cRequest, queueSize),
		stopped: make(chan struct{}),
	}
	go s.handleI2cRequests()
	return s
}

func (s *Sequencer) handleI2cRequests() {
	defer close(s.stopped)
	for req := range s.queue {
		switch req.Type {
		case I2cWrite:
			req.Error = s.bus.I2cWrite(req.Addr, req.DataWrite...)
		case I2cRead:
			req.Error = s.bus.I2cRead(req.Addr, req.DataRead)
		case I2cWriteRead:
			req.Error = s.bus.I2cWriteRead(req.Addr, req.DataWrite, req.DataRead)
		case I2cGet:
			req.DataRead, req.Error = s.bus.I2cGet(req.Addr, req.GetRegister, req.GetSize)
		default:
			log.Errorln("Ignoring invalid I2C request with type", req.Type)
			req.Error = fmt.Errorf("Invalid I2C request type %v", req.Type)
		}
		close(req.done)
	}
}

// QueueI2cRequest enqueues the request without waiting for its execution.
func (s *Sequencer) QueueI2cRequest(req *I2cRequest) error {
	s.closeLock.RLock()
	defer s.closeLock.RUnlock()
	if s.closed {
		return ErrSequencerClosed
	}
	req.done = make(chan struct{})
	s.queue <- req
	return nil
}

func (s *Sequencer) I2cRequest(req *I2cRequest) error {
	if err := s.QueueI2cRequest(req); err != nil {
		return err
	}
	req.Wait()
	return req.Error
}

// Close executes all queued requests and stops the sequencer goroutine.
// The underlying bus is not closed.
func (s *Sequencer) Close() {
	s.closeLock.Lock()
	if !s.closed {
		s.closed = true
		close(s.queue)
	}
	s.closeLock.Unlock()
	<-s.stopped
}

func (s *Sequencer) I2cWrite(addr byte, data ...byte) error {
	return s.I2cRequest(&I2cRequest{
		Type:      I2cWrite,
		Addr:      addr,
		DataWrite: data,
	})
}

func (s *Sequencer) I2cRead(addr byte, data []byte) error {
	return s.I2cRequest(&I2cRequest{
		Type:     I2cRead,
		Addr:     addr,
		DataRead: data,
	})
}

func (s *Sequencer) I2cWriteRead(addr byte, out, in []byte) error {
	return s.I2cRequest(&I2cRequest{
		Type:      I2cWriteRead,
		Addr:      addr,
		DataRead:  in,
		DataWrite: out,
	})
}

func (s *Sequencer) I2cGet(addr byte, registerAddr byte, size int) ([]byte, error) {
	req := &I2cRequest{
		Type:        I2cGet,
		Addr:        addr,
		GetRegister: registerAddr,
		GetSize:     size,
	}
	err := s.I2cRequest(req)
	return req.DataRead, err
}
