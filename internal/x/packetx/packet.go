// Package packetx encodes marshalkit packets as self-delimiting binary values.
package packetx

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/dogmatiq/marshalkit"
)

// maxFieldSize is the largest media-type or data field that is read.
const maxFieldSize = 64 << 20

// Marshal returns the binary representation of p.
func Marshal(p marshalkit.Packet) []byte {
	var buf bytes.Buffer
	_ = Write(&buf, p) // writes to a bytes.Buffer can not fail
	return buf.Bytes()
}

// Unmarshal parses the binary representation of a packet.
func Unmarshal(data []byte) (marshalkit.Packet, error) {
	r := bytes.NewReader(data)

	p, err := Read(r)
	if err != nil {
		return marshalkit.Packet{}, err
	}

	if r.Len() != 0 {
		return marshalkit.Packet{}, fmt.Errorf("packet is followed by %d unexpected bytes", r.Len())
	}

	return p, nil
}

// Write writes the binary representation of p to w.
func Write(w io.Writer, p marshalkit.Packet) error {
	if err := writeField(w, []byte(p.MediaType)); err != nil {
		return err
	}

	return writeField(w, p.Data)
}

// Read reads a single packet from r.
//
// It does not read beyond the end of the packet.
func Read(r io.Reader) (marshalkit.Packet, error) {
	mt, err := readField(r)
	if err != nil {
		return marshalkit.Packet{}, err
	}

	data, err := readField(r)
	if err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return marshalkit.Packet{}, err
	}

	return marshalkit.Packet{
		MediaType: string(mt),
		Data:      data,
	}, nil
}

func writeField(w io.Writer, data []byte) error {
	var size [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(size[:], uint64(len(data)))

	if _, err := w.Write(size[:n]); err != nil {
		return err
	}

	_, err := w.Write(data)
	return err
}

func readField(r io.Reader) ([]byte, error) {
	n, err := binary.ReadUvarint(byteReader{r})
	if err != nil {
		return nil, err
	}

	if n > maxFieldSize {
		return nil, fmt.Errorf("packet field of %d bytes exceeds the limit of %d bytes", n, maxFieldSize)
	}

	data := make([]byte, n)
	if _, err := io.ReadFull(r, data); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, err
	}

	return data, nil
}

// byteReader adapts an io.Reader to an io.ByteReader without buffering.
type byteReader struct {
	r io.Reader
}

func (r byteReader) ReadByte() (byte, error) {
	var b [1]byte
	_, err := io.ReadFull(r.r, b[:])
	return b[0], err
}
