package container

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"
)

// arrowFileMagic opens (and closes) every Arrow IPC file in random-access framing.
var arrowFileMagic = []byte("ARROW1")

// recordBatches is the subset of a record reader the extractor needs.
type recordBatches interface {
	Schema() *arrow.Schema
	Next() bool
	Record() arrow.Record
	Err() error
}

// framing is one physical layout of the Arrow IPC format.
type framing struct {
	name string
	open func(f *os.File, mem memory.Allocator) (recordBatches, func(), error)
}

// arrowFramings are tried in order. A later entry is only attempted when an earlier one
// returns ErrUnrecognizedFraming.
var arrowFramings = []framing{
	{name: "file", open: openFileFraming},
	{name: "stream", open: openStreamFraming},
}

// openFileFraming reads the random-access layout: magic, stream body, footer, magic.
func openFileFraming(f *os.File, mem memory.Allocator) (recordBatches, func(), error) {
	magic := make([]byte, len(arrowFileMagic))
	if _, err := io.ReadFull(f, magic); err != nil || !bytes.Equal(magic, arrowFileMagic) {
		return nil, nil, ErrUnrecognizedFraming
	}

	rdr, err := ipc.NewFileReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("open arrow file framing: %w", err)
	}
	return &fileBatches{rdr: rdr}, func() { rdr.Close() }, nil
}

// openStreamFraming reads the append-only layout: schema message then record batches.
func openStreamFraming(f *os.File, mem memory.Allocator) (recordBatches, func(), error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, nil, fmt.Errorf("rewind: %w", err)
	}
	rdr, err := ipc.NewReader(f, ipc.WithAllocator(mem))
	if err != nil {
		return nil, nil, fmt.Errorf("open arrow stream framing: %w", err)
	}
	return rdr, rdr.Release, nil
}

// fileBatches adapts the random-access FileReader to sequential iteration.
type fileBatches struct {
	rdr *ipc.FileReader
	i   int
	cur arrow.Record
	err error
}

func (b *fileBatches) Schema() *arrow.Schema { return b.rdr.Schema() }

func (b *fileBatches) Next() bool {
	if b.err != nil || b.i >= b.rdr.NumRecords() {
		return false
	}
	rec, err := b.rdr.Record(b.i)
	if err != nil {
		b.err = fmt.Errorf("record batch %d: %w", b.i, err)
		return false
	}
	b.i++
	b.cur = rec
	return true
}

func (b *fileBatches) Record() arrow.Record { return b.cur }

func (b *fileBatches) Err() error { return b.err }
