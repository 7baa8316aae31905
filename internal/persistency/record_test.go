package persistency

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIdentityValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		identity Identity
		wantErr  bool
	}{
		{name: "valid", identity: NewIdentity("weatherInformation.nearby", "2643743")},
		{name: "empty collection", identity: NewIdentity("", "2643743"), wantErr: true},
		{name: "empty identifier", identity: NewIdentity("weatherInformation.nearby", ""), wantErr: true},
		{name: "both empty", identity: Identity{}, wantErr: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.identity.Validate()
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidIdentity)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestIdentityString(t *testing.T) {
	t.Parallel()

	require.Equal(t, "preferences/default", NewIdentity("preferences", "default").String())
}

func TestDecodeRecord(t *testing.T) {
	t.Parallel()

	identity := NewIdentity("weatherInformation.nearby", "1")

	record, ok := DecodeRecord[testCity](identity, []byte(`{"name":"Berlin","population":3600000}`))
	require.True(t, ok)
	require.Equal(t, identity, record.Identity)
	require.Equal(t, "Berlin", record.Entity.Name)

	_, ok = DecodeRecord[testCity](identity, nil)
	require.False(t, ok)

	_, ok = DecodeRecord[testCity](identity, []byte{})
	require.False(t, ok)

	_, ok = DecodeRecord[testCity](identity, []byte(`{truncated`))
	require.False(t, ok)
}

func TestEncodeRecordsValidatesIdentities(t *testing.T) {
	t.Parallel()

	_, err := encodeRecords([]Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Name: "ok"}),
		NewRecord(NewIdentity("weatherInformation.nearby", ""), testCity{Name: "bad"}),
	})
	require.ErrorIs(t, err, ErrInvalidIdentity)
}

func TestEncodeRecordsReportsEncodingFailure(t *testing.T) {
	t.Parallel()

	_, err := encodeRecords([]Record[testCity]{
		NewRecord(NewIdentity("weatherInformation.nearby", "1"), testCity{Latitude: math.NaN()}),
	})
	require.ErrorIs(t, err, ErrDataEncoding)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	t.Parallel()

	identity := NewIdentity("weatherStations.bookmarked", "4885")
	city := testCity{Name: "Hamburg", Population: 1800000, Latitude: 53.5511}

	rows, err := encodeRecords([]Record[testCity]{NewRecord(identity, city)})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, identity, rows[0].identity())

	record, ok := DecodeRecord[testCity](rows[0].identity(), rows[0].data)
	require.True(t, ok)
	require.Equal(t, city, record.Entity)
}

func TestDecodeRecordsDropsCorruptRows(t *testing.T) {
	t.Parallel()

	rows := []storedRow{
		{collection: "weatherInformation.nearby", identifier: "1", data: []byte(`{"name":"a"}`)},
		{collection: "weatherInformation.nearby", identifier: "2", data: []byte(`garbage`)},
		{collection: "weatherInformation.nearby", identifier: "3", data: []byte(`{"name":"c"}`)},
	}

	records := decodeRecords[testCity](rows)
	require.Len(t, records, 2)
	require.Equal(t, "a", records[0].Entity.Name)
	require.Equal(t, "c", records[1].Entity.Name)
}
