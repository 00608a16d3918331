// Copyright 2025 Openlexica
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
	"github.com/openlexica/legisport/core"
)

// MarshalOutcomeRecord serializes an OutcomeRecord to bytes.
func MarshalOutcomeRecord(rec *core.OutcomeRecord) []byte {
	buf := make([]byte, core.OutcomeRecordMUS.Size(*rec))
	core.OutcomeRecordMUS.Marshal(*rec, buf)
	return buf
}

// UnmarshalOutcomeRecord deserializes an OutcomeRecord from bytes.
func UnmarshalOutcomeRecord(data []byte) (*core.OutcomeRecord, error) {
	rec, _, err := core.OutcomeRecordMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarshalCheckpointMeta serializes a CheckpointMeta to bytes.
func MarshalCheckpointMeta(meta *core.CheckpointMeta) []byte {
	buf := make([]byte, core.CheckpointMetaMUS.Size(*meta))
	core.CheckpointMetaMUS.Marshal(*meta, buf)
	return buf
}

// UnmarshalCheckpointMeta deserializes a CheckpointMeta from bytes.
func UnmarshalCheckpointMeta(data []byte) (*core.CheckpointMeta, error) {
	meta, _, err := core.CheckpointMetaMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &meta, nil
}

// MarshalCachedResponse serializes a CachedResponse to bytes.
func MarshalCachedResponse(resp *core.CachedResponse) []byte {
	buf := make([]byte, core.CachedResponseMUS.Size(*resp))
	core.CachedResponseMUS.Marshal(*resp, buf)
	return buf
}

// UnmarshalCachedResponse deserializes a CachedResponse from bytes.
func UnmarshalCachedResponse(data []byte) (*core.CachedResponse, error) {
	resp, _, err := core.CachedResponseMUS.Unmarshal(data)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
