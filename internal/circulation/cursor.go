package circulation

import (
	"encoding/base64"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// CursorData is the position after which the next history page starts.
type CursorData struct {
	AfterID    string `json:"after_id,omitempty"`
	BorrowedOn string `json:"borrowed_on,omitempty"`
}

// BorrowedDate parses BorrowedOn.
func (c CursorData) BorrowedDate() (time.Time, error) {
	return time.ParseInLocation(time.DateOnly, c.BorrowedOn, time.UTC)
}

// EncodeCursor encodes cursor data to a base64 string
func EncodeCursor(data CursorData) string {
	if data.AfterID == "" {
		return ""
	}
	jsonBytes, err := json.Marshal(data)
	if err != nil {
		return ""
	}
	return base64.URLEncoding.EncodeToString(jsonBytes)
}

// DecodeCursor decodes a base64 cursor string to CursorData
func DecodeCursor(cursor string) (CursorData, error) {
	if cursor == "" {
		return CursorData{}, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursor)
	if err != nil {
		return CursorData{}, err
	}

	var data CursorData
	if err := json.Unmarshal(decoded, &data); err != nil {
		return CursorData{}, err
	}
	if _, err := data.BorrowedDate(); err != nil {
		return CursorData{}, err
	}
	return data, nil
}
