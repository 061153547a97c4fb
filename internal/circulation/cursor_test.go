package circulation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCursorEncoding(t *testing.T) {
	data := CursorData{AfterID: "c9", BorrowedOn: "2024-03-04"}

	encoded := EncodeCursor(data)
	require.NotEmpty(t, encoded)

	decoded, err := DecodeCursor(encoded)
	require.NoError(t, err)
	assert.Equal(t, data, decoded)

	day, err := decoded.BorrowedDate()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), day)
}

func TestEncodeCursor_EmptyID(t *testing.T) {
	assert.Empty(t, EncodeCursor(CursorData{BorrowedOn: "2024-03-04"}))
}

func TestDecodeCursor_Invalid(t *testing.T) {
	data, err := DecodeCursor("")
	assert.NoError(t, err)
	assert.Equal(t, CursorData{}, data)

	_, err = DecodeCursor("not base64!")
	assert.Error(t, err)

	_, err = DecodeCursor(EncodeCursor(CursorData{AfterID: "c1", BorrowedOn: "yesterday"}))
	assert.Error(t, err)
}
