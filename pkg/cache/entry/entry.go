/*
 * Copyright 2023 The Pixcache Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package entry defines the serialized record format shared by the
// disk-tier store providers
package entry

import (
	"time"

	"github.com/tinylib/msgp/msgp"
)

// record field names as written to storage
const (
	fieldKey      = "key"
	fieldInserted = "inserted"
	fieldSize     = "size"
	fieldCodec    = "codec"
	fieldValue    = "value"
)

const fieldCount = 5

// CodecSnappy marks a record whose Value is snappy-compressed
const CodecSnappy = "snappy"

// Entry is a single disk-tier cache record. InsertedAt is stored with the
// record so that age-based purging can be decided without decoding Value.
type Entry struct {
	// Key is the cache key the record was stored under
	Key string
	// InsertedAt is the time the record was written
	InsertedAt time.Time
	// Size is the byte size declared by the caller at store time
	Size int64
	// Codec names the encoding applied to Value, empty for raw bytes
	Codec string
	// Value is the payload as stored
	Value []byte
}

// Meta is the metadata portion of an Entry, recoverable without
// deserializing the payload
type Meta struct {
	Key        string
	InsertedAt time.Time
	Size       int64
	Codec      string
}

// Msgsize returns an upper bound on the serialized size of the Entry
func (e *Entry) Msgsize() int {
	return msgp.MapHeaderSize +
		msgp.StringPrefixSize + len(fieldKey) + msgp.StringPrefixSize + len(e.Key) +
		msgp.StringPrefixSize + len(fieldInserted) + msgp.Int64Size +
		msgp.StringPrefixSize + len(fieldSize) + msgp.Int64Size +
		msgp.StringPrefixSize + len(fieldCodec) + msgp.StringPrefixSize + len(e.Codec) +
		msgp.StringPrefixSize + len(fieldValue) + msgp.BytesPrefixSize + len(e.Value)
}

// MarshalMsg appends the serialized Entry to b
func (e *Entry) MarshalMsg(b []byte) ([]byte, error) {
	o := msgp.Require(b, e.Msgsize())
	o = msgp.AppendMapHeader(o, fieldCount)
	o = msgp.AppendString(o, fieldKey)
	o = msgp.AppendString(o, e.Key)
	o = msgp.AppendString(o, fieldInserted)
	o = msgp.AppendInt64(o, e.InsertedAt.UnixNano())
	o = msgp.AppendString(o, fieldSize)
	o = msgp.AppendInt64(o, e.Size)
	o = msgp.AppendString(o, fieldCodec)
	o = msgp.AppendString(o, e.Codec)
	o = msgp.AppendString(o, fieldValue)
	o = msgp.AppendBytes(o, e.Value)
	return o, nil
}

// UnmarshalMsg deserializes an Entry from b
func (e *Entry) UnmarshalMsg(b []byte) ([]byte, error) {
	return e.unmarshal(b, true)
}

func (e *Entry) unmarshal(b []byte, withValue bool) ([]byte, error) {
	sz, o, err := msgp.ReadMapHeaderBytes(b)
	if err != nil {
		return o, err
	}
	for i := uint32(0); i < sz; i++ {
		var field []byte
		field, o, err = msgp.ReadMapKeyZC(o)
		if err != nil {
			return o, err
		}
		switch string(field) {
		case fieldKey:
			e.Key, o, err = msgp.ReadStringBytes(o)
		case fieldInserted:
			var ns int64
			ns, o, err = msgp.ReadInt64Bytes(o)
			if err == nil {
				e.InsertedAt = time.Unix(0, ns)
			}
		case fieldSize:
			e.Size, o, err = msgp.ReadInt64Bytes(o)
		case fieldCodec:
			e.Codec, o, err = msgp.ReadStringBytes(o)
		case fieldValue:
			if withValue {
				e.Value, o, err = msgp.ReadBytesBytes(o, nil)
			} else {
				o, err = msgp.Skip(o)
			}
		default:
			o, err = msgp.Skip(o)
		}
		if err != nil {
			return o, err
		}
	}
	return o, nil
}

// ToBytes returns a serialized byte slice representing the Entry
func (e *Entry) ToBytes() []byte {
	b, _ := e.MarshalMsg(nil)
	return b
}

// FromBytes returns a deserialized Entry from a serialized byte slice
func FromBytes(data []byte) (*Entry, error) {
	e := &Entry{}
	_, err := e.UnmarshalMsg(data)
	return e, err
}

// ReadMeta deserializes only the metadata of a record, skipping the
// payload bytes. Purge(PurgeExpired) uses this to recover the insertion
// timestamp cheaply.
func ReadMeta(data []byte) (*Meta, error) {
	e := &Entry{}
	if _, err := e.unmarshal(data, false); err != nil {
		return nil, err
	}
	return &Meta{Key: e.Key, InsertedAt: e.InsertedAt, Size: e.Size, Codec: e.Codec}, nil
}
