package storage

import (
	"testing"

	"github.com/poiesic/snapshelf/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalUnmarshalRecord(t *testing.T) {
	tests := []struct {
		name   string
		record *core.Record
	}{
		{
			name:   "empty payload object",
			record: &core.Record{Timestamp: "2024-03-09T14:05:07.000Z", Payload: core.Payload(`{}`)},
		},
		{
			name: "nested payload",
			record: &core.Record{
				Timestamp: "2024-03-09T14:05:07.123Z",
				Payload:   core.Payload(`{"location":{"city":"Oslo","latitude":59.91},"online":true}`),
			},
		},
		{
			name: "unicode payload",
			record: &core.Record{
				Timestamp: "2024-03-09T14:05:07.456Z",
				Payload:   core.Payload(`{"referrer":"https://例え.jp/パス"}`),
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalRecord(tt.record)
			require.NoError(t, err)

			decoded, err := UnmarshalRecord(data)
			require.NoError(t, err)
			assert.Equal(t, tt.record.Timestamp, decoded.Timestamp)
			assert.JSONEq(t, string(tt.record.Payload), string(decoded.Payload))
		})
	}
}

func TestUnmarshalRecord_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty data", []byte{}},
		{"not json", []byte("garbage")},
		{"missing timestamp", []byte(`{"payload":{}}`)},
		{"bad timestamp", []byte(`{"timestamp":"soon","payload":{}}`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRecord(tt.data)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestMarshalUnmarshalRecords_PreservesOrder(t *testing.T) {
	records := []*core.Record{
		{Timestamp: "2024-03-09T14:05:07.003Z", Payload: core.Payload(`{"n":3}`)},
		{Timestamp: "2024-03-09T14:05:07.001Z", Payload: core.Payload(`{"n":1}`)},
		{Timestamp: "2024-03-09T14:05:07.002Z", Payload: core.Payload(`{"n":2}`)},
	}

	data, err := MarshalRecords(records)
	require.NoError(t, err)

	decoded, err := UnmarshalRecords(data)
	require.NoError(t, err)
	require.Len(t, decoded, 3)
	for i := range records {
		assert.Equal(t, records[i].Timestamp, decoded[i].Timestamp)
		assert.Equal(t, string(records[i].Payload), string(decoded[i].Payload))
	}
}

func TestMarshalRecords_Nil(t *testing.T) {
	data, err := MarshalRecords(nil)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestUnmarshalRecords_Invalid(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"truncated array", []byte(`[{"timestamp":"2024-03-09T14:05:07.000Z"`)},
		{"object instead of array", []byte(`{"timestamp":"2024-03-09T14:05:07.000Z"}`)},
		{"invalid entry", []byte(`[{"timestamp":"2024-03-09T14:05:07.000Z"},{"timestamp":""}]`)},
		{"null entry", []byte(`[null]`)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalRecords(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}

func TestEncodeDecodeRecord(t *testing.T) {
	record := &core.Record{
		Timestamp: "2024-03-09T14:05:07.123Z",
		Payload:   core.Payload(`{"ip":"203.0.113.7","location":{"city":"Oslo"}}`),
	}

	data := EncodeRecord(record)
	assert.Equal(t, core.RecordMUS.Size(*record), len(data))

	decoded, err := DecodeRecord(data)
	require.NoError(t, err)
	assert.Equal(t, record.Timestamp, decoded.Timestamp)
	assert.JSONEq(t, string(record.Payload), string(decoded.Payload))
}

func TestDecodeRecord_Invalid(t *testing.T) {
	valid := EncodeRecord(&core.Record{Timestamp: "2024-03-09T14:05:07.000Z", Payload: core.Payload(`{}`)})

	tests := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "truncated", data: valid[:len(valid)-1]},
		{name: "trailing bytes", data: append(append([]byte(nil), valid...), 0x00)},
		{name: "invalid timestamp", data: EncodeRecord(&core.Record{Timestamp: "yesterday", Payload: core.Payload(`{}`)})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeRecord(tt.data)
			assert.ErrorIs(t, err, ErrSerializationFailed)
		})
	}
}
