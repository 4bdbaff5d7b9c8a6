package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/wkalt/newsledger/news"
)

// ReadSubmissions reads an import file. The file holds either a single
// submission object or an array of them.
func ReadSubmissions(r io.Reader) ([]news.Submission, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read submissions: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, errors.New("empty submission file")
	}
	if data[0] == '[' {
		submissions := []news.Submission{}
		if err := json.Unmarshal(data, &submissions); err != nil {
			return nil, fmt.Errorf("failed to decode submissions: %w", err)
		}
		return submissions, nil
	}
	submission := news.Submission{}
	if err := json.Unmarshal(data, &submission); err != nil {
		return nil, fmt.Errorf("failed to decode submission: %w", err)
	}
	return []news.Submission{submission}, nil
}
