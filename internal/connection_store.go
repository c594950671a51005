package internal

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sessamekesh/duckpond-client/pkg/transport"
	"go.uber.org/atomic"
)

type DuplicateSlotIdError struct {
	Id uint32
}

func (e *DuplicateSlotIdError) Error() string {
	return fmt.Sprintf("Attempted to install connection with duplicate slot ID %d", e.Id)
}

type MissingSlotIdError struct {
	Id uint32
}

func (e *MissingSlotIdError) Error() string {
	return fmt.Sprintf("Missing connection with slot id=%d", e.Id)
}

type TooManyConnectionsError struct {
	Max int
}

func (e *TooManyConnectionsError) Error() string {
	return fmt.Sprintf("Too many connections are registered (max=%d) - cannot install new connection", e.Max)
}

type ConnectionMetadata struct {
	Mut  sync.RWMutex
	Conn transport.Conn

	SlotId      uint32
	Name        string
	CreatedTime int64

	LastRecvTime int64
	LastSendTime int64

	FramesReceived uint64
	FramesSent     uint64

	// Last distinct read error seen on this slot, used to rate-limit logs.
	LastReadError string
}

// ConnectionStore is the registry of installed connections. Slots are never
// removed because of a read or write error; only Remove (or CloseAll) drops one.
type ConnectionStore struct {
	MaxConnections int

	nextSlotId atomic.Uint32

	mut_connections sync.RWMutex
	connections     map[uint32]*ConnectionMetadata
}

func CreateConnectionStore(maxConnections int) *ConnectionStore {
	if maxConnections <= 0 {
		maxConnections = 1
	}

	return &ConnectionStore{
		MaxConnections:  maxConnections,
		mut_connections: sync.RWMutex{},
		connections:     make(map[uint32]*ConnectionMetadata),
	}
}

func (store *ConnectionStore) GetNewSlotId() uint32 {
	return store.nextSlotId.Add(1)
}

func (store *ConnectionStore) HasSlot(slotId uint32) bool {
	store.mut_connections.RLock()
	defer store.mut_connections.RUnlock()

	_, has := store.connections[slotId]
	return has
}

func (store *ConnectionStore) Count() int {
	store.mut_connections.RLock()
	defer store.mut_connections.RUnlock()

	return len(store.connections)
}

func (store *ConnectionStore) Install(slotId uint32, name string, conn transport.Conn, timestamp int64) error {
	store.mut_connections.Lock()
	defer store.mut_connections.Unlock()

	if _, has := store.connections[slotId]; has {
		return &DuplicateSlotIdError{Id: slotId}
	}

	if len(store.connections) >= store.MaxConnections {
		return &TooManyConnectionsError{Max: store.MaxConnections}
	}

	store.connections[slotId] = &ConnectionMetadata{
		Mut:          sync.RWMutex{},
		Conn:         conn,
		SlotId:       slotId,
		Name:         name,
		CreatedTime:  timestamp,
		LastRecvTime: timestamp,
		LastSendTime: timestamp,
	}

	return nil
}

// Remove unregisters the slot and returns its connection so the caller can close it.
func (store *ConnectionStore) Remove(slotId uint32) (transport.Conn, error) {
	store.mut_connections.Lock()
	defer store.mut_connections.Unlock()

	connection, has := store.connections[slotId]
	if !has {
		return nil, &MissingSlotIdError{Id: slotId}
	}
	delete(store.connections, slotId)
	return connection.Conn, nil
}

// Slots returns installed slot ids in install order.
func (store *ConnectionStore) Slots() []uint32 {
	store.mut_connections.RLock()
	defer store.mut_connections.RUnlock()

	slots := make([]uint32, 0, len(store.connections))
	for id := range store.connections {
		slots = append(slots, id)
	}
	sort.Slice(slots, func(i, j int) bool { return slots[i] < slots[j] })
	return slots
}

func (store *ConnectionStore) Get(slotId uint32) (*ConnectionMetadata, error) {
	store.mut_connections.RLock()
	defer store.mut_connections.RUnlock()

	connection, has := store.connections[slotId]
	if !has {
		return nil, &MissingSlotIdError{Id: slotId}
	}
	return connection, nil
}

func (store *ConnectionStore) MarkRecv(slotId uint32, timestamp int64) error {
	connection, err := store.Get(slotId)
	if err != nil {
		return err
	}

	connection.Mut.Lock()
	defer connection.Mut.Unlock()

	connection.LastRecvTime = timestamp
	connection.FramesReceived++
	return nil
}

func (store *ConnectionStore) MarkSend(slotId uint32, timestamp int64) error {
	connection, err := store.Get(slotId)
	if err != nil {
		return err
	}

	connection.Mut.Lock()
	defer connection.Mut.Unlock()

	connection.LastSendTime = timestamp
	connection.FramesSent++
	return nil
}

// RecordReadError remembers the error text for the slot and reports whether
// it differs from the previous one.
func (store *ConnectionStore) RecordReadError(slotId uint32, err error) (bool, error) {
	connection, getErr := store.Get(slotId)
	if getErr != nil {
		return false, getErr
	}

	connection.Mut.Lock()
	defer connection.Mut.Unlock()

	msg := err.Error()
	if connection.LastReadError == msg {
		return false, nil
	}
	connection.LastReadError = msg
	return true, nil
}

// CloseAll closes and unregisters every connection, returning the first close error.
func (store *ConnectionStore) CloseAll() error {
	store.mut_connections.Lock()
	defer store.mut_connections.Unlock()

	var firstErr error
	for id, connection := range store.connections {
		if connection.Conn != nil {
			if err := connection.Conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		delete(store.connections, id)
	}
	return firstErr
}
