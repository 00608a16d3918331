package core

import (
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
)

// Hand-written MUS serializers for the types persisted in BadgerDB.
// Timestamps are stored as Unix microseconds.

// OutcomeRecordMUS serializes OutcomeRecord values.
var OutcomeRecordMUS = outcomeRecordMUS{}

type outcomeRecordMUS struct{}

func (s outcomeRecordMUS) Marshal(v OutcomeRecord, bs []byte) (n int) {
	n = ord.String.Marshal(v.Ident, bs)
	n += varint.Int.Marshal(int(v.Outcome), bs[n:])
	n += ord.String.Marshal(v.Reason, bs[n:])
	n += varint.Int64.Marshal(v.At.UnixMicro(), bs[n:])
	return n
}

func (s outcomeRecordMUS) Unmarshal(bs []byte) (v OutcomeRecord, n int, err error) {
	var n1 int
	v.Ident, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	var outcome int
	outcome, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Outcome = Outcome(outcome)
	v.Reason, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var at int64
	at, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.At = time.UnixMicro(at).UTC()
	return
}

func (s outcomeRecordMUS) Size(v OutcomeRecord) (size int) {
	size = ord.String.Size(v.Ident)
	size += varint.Int.Size(int(v.Outcome))
	size += ord.String.Size(v.Reason)
	size += varint.Int64.Size(v.At.UnixMicro())
	return size
}

// CheckpointMetaMUS serializes CheckpointMeta values.
var CheckpointMetaMUS = checkpointMetaMUS{}

type checkpointMetaMUS struct{}

func (s checkpointMetaMUS) Marshal(v CheckpointMeta, bs []byte) (n int) {
	n = varint.Int.Marshal(v.Candidates, bs)
	n += ord.String.Marshal(v.Cursor, bs[n:])
	n += varint.Int64.Marshal(v.UpdatedAt.UnixMicro(), bs[n:])
	return n
}

func (s checkpointMetaMUS) Unmarshal(bs []byte) (v CheckpointMeta, n int, err error) {
	var n1 int
	v.Candidates, n, err = varint.Int.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Cursor, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var at int64
	at, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.UpdatedAt = time.UnixMicro(at).UTC()
	return
}

func (s checkpointMetaMUS) Size(v CheckpointMeta) (size int) {
	size = varint.Int.Size(v.Candidates)
	size += ord.String.Size(v.Cursor)
	size += varint.Int64.Size(v.UpdatedAt.UnixMicro())
	return size
}

// CachedResponseMUS serializes CachedResponse values.
var CachedResponseMUS = cachedResponseMUS{}

type cachedResponseMUS struct{}

func (s cachedResponseMUS) Marshal(v CachedResponse, bs []byte) (n int) {
	n = ord.String.Marshal(v.URL, bs)
	n += varint.Int.Marshal(v.Status, bs[n:])
	n += ord.String.Marshal(v.MediaType, bs[n:])
	n += ord.String.Marshal(string(v.Body), bs[n:])
	n += varint.Int64.Marshal(v.FetchedAt.UnixMicro(), bs[n:])
	return n
}

func (s cachedResponseMUS) Unmarshal(bs []byte) (v CachedResponse, n int, err error) {
	var n1 int
	v.URL, n, err = ord.String.Unmarshal(bs)
	if err != nil {
		return
	}
	v.Status, n1, err = varint.Int.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.MediaType, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	var body string
	body, n1, err = ord.String.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.Body = []byte(body)
	var at int64
	at, n1, err = varint.Int64.Unmarshal(bs[n:])
	n += n1
	if err != nil {
		return
	}
	v.FetchedAt = time.UnixMicro(at).UTC()
	return
}

func (s cachedResponseMUS) Size(v CachedResponse) (size int) {
	size = ord.String.Size(v.URL)
	size += varint.Int.Size(v.Status)
	size += ord.String.Size(v.MediaType)
	size += ord.String.Size(string(v.Body))
	size += varint.Int64.Size(v.FetchedAt.UnixMicro())
	return size
}
