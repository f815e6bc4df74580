package packetx_test

import (
	"bytes"
	"io"

	. "github.com/dogmatiq/actd/internal/x/packetx"
	"github.com/dogmatiq/marshalkit"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func Read()", func() {
	It("reads consecutive packets without consuming trailing data", func() {
		var buf bytes.Buffer

		Expect(Write(&buf, marshalkit.Packet{MediaType: "text/a", Data: []byte("<a>")})).To(Succeed())
		Expect(Write(&buf, marshalkit.Packet{MediaType: "text/b", Data: []byte("<b>")})).To(Succeed())
		buf.WriteString("<trailer>")

		p, err := Read(&buf)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(p.MediaType).To(Equal("text/a"))

		p, err = Read(&buf)
		Expect(err).ShouldNot(HaveOccurred())
		Expect(p.Data).To(Equal([]byte("<b>")))

		Expect(buf.String()).To(Equal("<trailer>"))
	})

	It("returns io.EOF if there is no packet", func() {
		_, err := Read(&bytes.Buffer{})
		Expect(err).To(Equal(io.EOF))
	})

	It("returns io.ErrUnexpectedEOF if the packet is truncated", func() {
		data := Marshal(marshalkit.Packet{MediaType: "text/plain", Data: []byte("<data>")})

		_, err := Read(bytes.NewReader(data[:len(data)-2]))
		Expect(err).To(Equal(io.ErrUnexpectedEOF))
	})
})

var _ = Describe("func Unmarshal()", func() {
	It("rejects trailing bytes", func() {
		data := Marshal(marshalkit.Packet{MediaType: "text/plain"})
		data = append(data, 0)

		_, err := Unmarshal(data)
		Expect(err).To(MatchError("packet is followed by 1 unexpected bytes"))
	})
})
