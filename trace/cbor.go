package trace

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/krisalay/timedptr/types"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encOpts := cbor.EncOptions{
		Sort:          cbor.SortCanonical,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
	}
	encMode, err = encOpts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR encoder mode: %v", err))
	}

	decOpts := cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyQuiet,
		IndefLength:       cbor.IndefLengthAllowed,
		ExtraReturnErrors: cbor.ExtraDecErrorNone,
	}
	decMode, err = decOpts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create trace CBOR decoder mode: %v", err))
	}
}

// WriteEvents encodes events to w as a stream of CBOR items, one per event.
func WriteEvents(w io.Writer, events []types.Event) error {
	enc := encMode.NewEncoder(w)
	for i := range events {
		if err := enc.Encode(events[i]); err != nil {
			return fmt.Errorf("encode event %d: %w", i, err)
		}
	}
	return nil
}

// ReadEvents decodes a stream written by WriteEvents until EOF.
func ReadEvents(r io.Reader) ([]types.Event, error) {
	dec := decMode.NewDecoder(r)
	var events []types.Event
	for {
		var ev types.Event
		if err := dec.Decode(&ev); err != nil {
			if errors.Is(err, io.EOF) {
				return events, nil
			}
			return events, fmt.Errorf("decode event %d: %w", len(events), err)
		}
		events = append(events, ev)
	}
}
