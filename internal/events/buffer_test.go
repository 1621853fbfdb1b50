package events

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("buffer", func() {
	push := func(b *buffer, data ...string) {
		for _, d := range data {
			b.PushBack(&message{Kind: RowMessageKind, Data: []byte(d)})
		}
	}

	Context("unbounded", func() {
		It("pops row events in arrival order", func() {
			b := newBuffer(0)
			push(b, "row-0", "row-1", "row-2")
			Expect(b.Size()).To(Equal(3))

			for _, want := range []string{"row-0", "row-1", "row-2"} {
				m := b.Pop()
				Expect(m).NotTo(BeNil())
				Expect(string(m.Data)).To(Equal(want))
			}
			Expect(b.Size()).To(Equal(0))
			Expect(b.Pop()).To(BeNil())
			Expect(b.Dropped()).To(Equal(0))
		})

		It("accepts events again after being drained", func() {
			b := newBuffer(0)
			push(b, "row-0")
			Expect(b.Pop()).NotTo(BeNil())
			Expect(b.Pop()).To(BeNil())

			push(b, "job")
			Expect(string(b.Pop().Data)).To(Equal("job"))
		})
	})

	Context("bounded", func() {
		It("drops the oldest event once full", func() {
			b := newBuffer(2)
			Expect(b.PushBack(&message{Kind: RowMessageKind, Data: []byte("row-0")})).To(BeFalse())
			Expect(b.PushBack(&message{Kind: RowMessageKind, Data: []byte("row-1")})).To(BeFalse())
			Expect(b.PushBack(&message{Kind: JobMessageKind, Data: []byte("job")})).To(BeTrue())

			Expect(b.Size()).To(Equal(2))
			Expect(b.Dropped()).To(Equal(1))
			Expect(string(b.Pop().Data)).To(Equal("row-1"))
			Expect(string(b.Pop().Data)).To(Equal("job"))
		})
	})
})
