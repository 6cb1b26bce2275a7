// Outbox is a durable retry buffer for events whose publish attempt failed,
// adapted from the teacher's asset.WAL: the same length+data+CRC framing and
// append-only file discipline, repurposed from crash-recovery replay to
// at-least-once event delivery. A failed Publish is appended here instead of
// being dropped; Replay retries every buffered entry against the underlying
// Publisher and truncates the file once all retries succeed.
package events

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"
)

// outboxEntry is one buffered, previously-failed publish attempt.
type outboxEntry struct {
	Topic string
	Key   string
	Value []byte
}

// Outbox appends failed publishes to a single file and replays them later.
// It wraps an underlying Publisher: PublishOrBuffer tries the underlying
// transport directly, and only falls back to the durable buffer on error.
type Outbox struct {
	mu   sync.Mutex
	file *os.File
	w    *bufio.Writer

	underlying Publisher
}

// NewOutbox opens (creating if absent) the outbox file at path, buffering
// for underlying whenever its Publish fails.
func NewOutbox(path string, underlying Publisher) (*Outbox, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("events: open outbox: %w", err)
	}
	return &Outbox{
		file:       file,
		w:          bufio.NewWriterSize(file, 64*1024),
		underlying: underlying,
	}, nil
}

// PublishOrBuffer tries the underlying transport; on failure it appends msg
// to the durable buffer instead of surfacing the error to the caller, so a
// transient broker outage never blocks a settlement.
func (o *Outbox) PublishOrBuffer(ctx context.Context, msg Message) error {
	if err := o.underlying.Publish(ctx, msg); err == nil {
		return nil
	}
	value, err := msg.Value()
	if err != nil {
		return fmt.Errorf("events: marshal %s: %w", msg.Topic(), err)
	}
	return o.append(outboxEntry{Topic: msg.Topic(), Key: msg.Key(), Value: value})
}

// Publish satisfies the Publisher interface by delegating to
// PublishOrBuffer, so an Outbox can be handed directly to market.Config
// as the event transport of record.
func (o *Outbox) Publish(ctx context.Context, msg Message) error {
	return o.PublishOrBuffer(ctx, msg)
}

func (o *Outbox) append(e outboxEntry) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	data := encodeOutboxEntry(e)
	length := uint32(len(data))
	crc := crc32.ChecksumIEEE(data)

	if err := binary.Write(o.w, binary.LittleEndian, length); err != nil {
		return err
	}
	if _, err := o.w.Write(data); err != nil {
		return err
	}
	if err := binary.Write(o.w, binary.LittleEndian, crc); err != nil {
		return err
	}
	return o.w.Flush()
}

// Replay reads every buffered entry in order and republishes it against the
// wrapped Publisher. Entries are retried in full, then the file is
// truncated only if every entry sends successfully — a partial failure
// leaves the whole buffer in place to retry again later.
func (o *Outbox) Replay(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if err := o.w.Flush(); err != nil {
		return err
	}
	if _, err := o.file.Seek(0, io.SeekStart); err != nil {
		return err
	}

	reader := bufio.NewReader(o.file)
	var entries []outboxEntry
	for {
		var length uint32
		if err := binary.Read(reader, binary.LittleEndian, &length); err != nil {
			if err == io.EOF {
				break
			}
			return fmt.Errorf("events: outbox read length: %w", err)
		}
		data := make([]byte, length)
		if _, err := io.ReadFull(reader, data); err != nil {
			return fmt.Errorf("events: outbox read data: %w", err)
		}
		var crc uint32
		if err := binary.Read(reader, binary.LittleEndian, &crc); err != nil {
			return fmt.Errorf("events: outbox read crc: %w", err)
		}
		if crc32.ChecksumIEEE(data) != crc {
			return errors.New("events: outbox crc mismatch")
		}
		e, err := decodeOutboxEntry(data)
		if err != nil {
			return fmt.Errorf("events: outbox decode: %w", err)
		}
		entries = append(entries, e)
	}

	for _, e := range entries {
		raw := rawMessage{topic: e.Topic, key: e.Key, value: e.Value}
		if err := o.underlying.Publish(ctx, raw); err != nil {
			return fmt.Errorf("events: outbox replay: %w", err)
		}
	}

	return o.truncate()
}

func (o *Outbox) truncate() error {
	if err := o.file.Truncate(0); err != nil {
		return err
	}
	if _, err := o.file.Seek(0, io.SeekStart); err != nil {
		return err
	}
	o.w = bufio.NewWriterSize(o.file, 64*1024)
	return nil
}

func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.w.Flush(); err != nil {
		return err
	}
	return o.file.Close()
}

var _ Publisher = (*Outbox)(nil)

func encodeOutboxEntry(e outboxEntry) []byte {
	buf := make([]byte, 0, 2+len(e.Topic)+2+len(e.Key)+4+len(e.Value))
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Topic)))
	buf = append(buf, e.Topic...)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(len(e.Key)))
	buf = append(buf, e.Key...)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(e.Value)))
	buf = append(buf, e.Value...)
	return buf
}

func decodeOutboxEntry(data []byte) (outboxEntry, error) {
	if len(data) < 4 {
		return outboxEntry{}, errors.New("events: outbox entry too short")
	}
	offset := 0
	topicLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	topic := string(data[offset : offset+topicLen])
	offset += topicLen

	keyLen := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	key := string(data[offset : offset+keyLen])
	offset += keyLen

	valueLen := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	value := make([]byte, valueLen)
	copy(value, data[offset:offset+valueLen])

	return outboxEntry{Topic: topic, Key: key, Value: value}, nil
}

// rawMessage replays a previously-marshaled event without re-encoding it.
type rawMessage struct {
	topic string
	key   string
	value []byte
}

func (r rawMessage) Topic() string          { return r.topic }
func (r rawMessage) Key() string            { return r.key }
func (r rawMessage) Value() ([]byte, error) { return r.value, nil }
