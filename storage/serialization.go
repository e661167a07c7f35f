// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/raw"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/lexmap/core"
)

// float32Size is the encoded width of one raw float32.
const float32Size = 4

func MarshalID(id core.ID) []byte {
	buf := make([]byte, varint.Uint64.Size(uint64(id)))
	varint.Uint64.Marshal(uint64(id), buf)
	return buf
}

func UnmarshalID(data []byte) (core.ID, error) {
	v, _, err := varint.Uint64.Unmarshal(data)
	if err != nil {
		return 0, fmt.Errorf("%w: id: %w", ErrSerializationFailed, err)
	}
	return core.ID(v), nil
}

// MarshalVector encodes a vector as a varint length followed by raw float32s.
func MarshalVector(vector []float32) []byte {
	buf := make([]byte, vectorSize(vector))
	marshalVector(vector, buf)
	return buf
}

func UnmarshalVector(data []byte) ([]float32, error) {
	vector, _, err := unmarshalVector(data)
	if err != nil {
		return nil, fmt.Errorf("%w: vector: %w", ErrSerializationFailed, err)
	}
	return vector, nil
}

func MarshalHistoryEntry(entry *core.HistoryEntry) []byte {
	buf := make([]byte, historyEntrySize(entry))
	n := varint.Uint64.Marshal(uint64(entry.Id), buf)
	n += ord.String.Marshal(entry.SessionID, buf[n:])
	n += ord.String.Marshal(entry.Query, buf[n:])
	n += ord.String.Marshal(entry.Section, buf[n:])
	n += ord.String.Marshal(entry.Offense, buf[n:])
	n += ord.String.Marshal(entry.SuccessorRef, buf[n:])
	n += raw.Float32.Marshal(entry.Score, buf[n:])
	varint.Int64.Marshal(entry.Timestamp.UnixMicro(), buf[n:])
	return buf
}

func UnmarshalHistoryEntry(data []byte) (*core.HistoryEntry, error) {
	entry, err := unmarshalHistoryEntry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: history entry: %w", ErrSerializationFailed, err)
	}
	return entry, nil
}

func vectorSize(vector []float32) int {
	return varint.Int.Size(len(vector)) + len(vector)*float32Size
}

func marshalVector(vector []float32, bs []byte) (n int) {
	n = varint.Int.Marshal(len(vector), bs)
	for _, v := range vector {
		n += raw.Float32.Marshal(v, bs[n:])
	}
	return n
}

func unmarshalVector(bs []byte) (vector []float32, n int, err error) {
	length, n, err := varint.Int.Unmarshal(bs)
	if err != nil {
		return nil, n, err
	}
	if length < 0 || length > (len(bs)-n)/float32Size {
		return nil, n, ErrTruncatedData
	}
	vector = make([]float32, length)
	for i := range vector {
		v, m, err := raw.Float32.Unmarshal(bs[n:])
		if err != nil {
			return nil, n, err
		}
		vector[i] = v
		n += m
	}
	return vector, n, nil
}

func historyEntrySize(entry *core.HistoryEntry) int {
	return varint.Uint64.Size(uint64(entry.Id)) +
		ord.String.Size(entry.SessionID) +
		ord.String.Size(entry.Query) +
		ord.String.Size(entry.Section) +
		ord.String.Size(entry.Offense) +
		ord.String.Size(entry.SuccessorRef) +
		float32Size +
		varint.Int64.Size(entry.Timestamp.UnixMicro())
}

func unmarshalHistoryEntry(bs []byte) (*core.HistoryEntry, error) {
	var (
		entry core.HistoryEntry
		n     int
	)
	id, m, err := varint.Uint64.Unmarshal(bs)
	if err != nil {
		return nil, err
	}
	entry.Id = core.ID(id)
	n += m

	fields := []*string{&entry.SessionID, &entry.Query, &entry.Section, &entry.Offense, &entry.SuccessorRef}
	for _, field := range fields {
		s, m, err := ord.String.Unmarshal(bs[n:])
		if err != nil {
			return nil, err
		}
		*field = s
		n += m
	}

	score, m, err := raw.Float32.Unmarshal(bs[n:])
	if err != nil {
		return nil, err
	}
	entry.Score = score
	n += m

	micros, _, err := varint.Int64.Unmarshal(bs[n:])
	if err != nil {
		return nil, err
	}
	entry.Timestamp = time.UnixMicro(micros).UTC()
	return &entry, nil
}
