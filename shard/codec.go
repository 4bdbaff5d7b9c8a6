package shard

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
	"github.com/wkalt/newsledger/news"
)

/*
Shard objects are zstd-compressed JSON documents. The format version is part of
the document so the decoder can reject objects written by an incompatible
release. A zero-length object is a shard that was created but never written.
*/

////////////////////////////////////////////////////////////////////////////////

const formatVersion = 1

// ErrEmptyShard is returned when reading a shard that was created but never
// written.
var ErrEmptyShard = errors.New("shard has not been written")

// EncodeAll and DecodeAll are safe for concurrent use on shared coders.
var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

type shardFile struct {
	Version int           `json:"version"`
	Start   uint64        `json:"start"`
	End     uint64        `json:"end"`
	Records []news.Record `json:"records"`
}

func encode(records []news.Record) ([]byte, error) {
	if len(records) == 0 {
		return nil, errors.New("refusing to encode empty shard")
	}
	start := records[0].Index
	for i, r := range records {
		if r.Index != start+uint64(i) {
			return nil, fmt.Errorf("records are not contiguous at position %d", i)
		}
	}
	data, err := json.Marshal(shardFile{
		Version: formatVersion,
		Start:   start,
		End:     start + uint64(len(records)),
		Records: records,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode shard: %w", err)
	}
	return encoder.EncodeAll(data, nil), nil
}

func decode(data []byte) (*shardFile, error) {
	if len(data) == 0 {
		return nil, ErrEmptyShard
	}
	raw, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress shard: %w", err)
	}
	file := &shardFile{}
	if err := json.Unmarshal(raw, file); err != nil {
		return nil, fmt.Errorf("failed to decode shard: %w", err)
	}
	if file.Version != formatVersion {
		return nil, fmt.Errorf("unsupported shard format version %d", file.Version)
	}
	if file.End-file.Start != uint64(len(file.Records)) {
		return nil, fmt.Errorf("shard range [%d, %d) holds %d records", file.Start, file.End, len(file.Records))
	}
	for i, r := range file.Records {
		if r.Index != file.Start+uint64(i) {
			return nil, fmt.Errorf("shard record %d has index %d, expected %d", i, r.Index, file.Start+uint64(i))
		}
	}
	return file, nil
}
