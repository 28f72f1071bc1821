package fetcher

import (
	"context"
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
)

// DecodeArray streams a top-level JSON array from r, handing each element
// to fn in order. Numbers decode as json.Number. An empty body is an empty
// array. It returns how many elements fn accepted.
func DecodeArray[T any](ctx context.Context, r io.Reader, fn func(T) error) (int, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	tok, err := dec.Token()
	if err == io.EOF {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrap(err, "json: read opening token")
	}
	if d, ok := tok.(json.Delim); !ok || d != '[' {
		return 0, eris.Errorf("json: expected '[', got %v", tok)
	}

	n := 0
	for dec.More() {
		if err := ctx.Err(); err != nil {
			return n, eris.Wrap(err, "json: context done")
		}
		var item T
		if err := dec.Decode(&item); err != nil {
			return n, eris.Wrapf(err, "json: decode element %d", n)
		}
		if err := fn(item); err != nil {
			return n, err
		}
		n++
	}

	if _, err := dec.Token(); err != nil {
		return n, eris.Wrap(err, "json: read closing token")
	}
	return n, nil
}

// CollectArray decodes a top-level JSON array into a slice. Elements
// decoded before an error are returned with it.
func CollectArray[T any](ctx context.Context, r io.Reader) ([]T, error) {
	var out []T
	_, err := DecodeArray(ctx, r, func(item T) error {
		out = append(out, item)
		return nil
	})
	return out, err
}
