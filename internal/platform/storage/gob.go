package storage

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
)

// DumpGob gob-encodes v to loc unless an object already exists there. It
// reports whether anything was written.
func DumpGob(ctx context.Context, loc Location, v any) (bool, error) {
	exists, err := loc.Exists(ctx)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return false, fmt.Errorf("encode %s: %w", loc, err)
	}
	if err := loc.WriteBytes(ctx, buf.Bytes()); err != nil {
		return false, err
	}
	return true, nil
}

// LoadGob decodes the object at loc into v.
func LoadGob(ctx context.Context, loc Location, v any) error {
	b, err := loc.ReadAll(ctx)
	if err != nil {
		return err
	}
	if err := gob.NewDecoder(bytes.NewReader(b)).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", loc, err)
	}
	return nil
}
