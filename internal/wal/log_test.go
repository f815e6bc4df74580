package wal_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/record"
	. "github.com/dogmatiq/actd/internal/wal"
	"github.com/dogmatiq/actd/internal/x/gomegax"
	"github.com/dogmatiq/dodeca/logging"
	"github.com/dogmatiq/marshalkit"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Log", func() {
	var (
		ctx     context.Context
		memory  *MemoryStore
		store   *storeStub
		logger  *logging.BufferedLogger
		log     *Log
		records []record.Record
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)

		memory = &MemoryStore{}
		store = &storeStub{Store: memory}
		logger = &logging.BufferedLogger{}

		log = &Log{
			Store:  store,
			Logger: logger,
		}

		_, err := log.Recover(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		records = []record.Record{
			record.RegisterGroup{GroupID: "<group>"},
			record.RegisterObject{
				ObjectID:   "<object-1>",
				Descriptor: activation.Descriptor{GroupID: "<group>", Restart: true},
			},
			record.RegisterObject{
				ObjectID:   "<object-2>",
				Descriptor: activation.Descriptor{GroupID: "<group>"},
			},
			record.UpdateDescriptor{
				ObjectID:   "<object-2>",
				Descriptor: activation.Descriptor{GroupID: "<group>", ClassName: "<class>"},
			},
			record.GroupIncarnation{GroupID: "<group>", Incarnation: 1},
			record.UnregisterObject{ObjectID: "<object-1>"},
			record.UpdateGroupDescriptor{
				GroupID:    "<group>",
				Descriptor: activation.GroupDescriptor{Properties: map[string]string{"k": "v"}},
			},
		}
	})

	appendAll := func() {
		for _, r := range records {
			Expect(log.Append(ctx, r)).To(Succeed())
		}
	}

	recoverNew := func() *record.State {
		Expect(log.Close()).To(Succeed())

		log = &Log{
			Store:  store,
			Logger: logger,
		}

		s, err := log.Recover(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		return s
	}

	Describe("func Recover()", func() {
		It("reproduces the state from the log alone", func() {
			appendAll()

			expect, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state := recoverNew()
			Expect(state).To(gomegax.EqualX(expect))
			Expect(state.Objects).To(Equal(map[activation.ObjectID]activation.GroupID{
				"<object-2>": "<group>",
			}))
		})

		It("reproduces the state from a snapshot followed by the log", func() {
			log.SnapshotInterval = 3
			appendAll()

			c, err := memory.Load(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Snapshot).NotTo(BeNil())
			Expect(c.SnapshotSeq).To(BeEquivalentTo(6))
			Expect(c.Entries).To(HaveLen(1))

			expect, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			state := recoverNew()
			Expect(state).To(gomegax.EqualX(expect))
		})

		It("skips records that can not be applied", func() {
			appendAll()

			m := record.NewMarshaler()
			p, err := m.Marshal(record.UnregisterObject{ObjectID: "<unknown>"})
			Expect(err).ShouldNot(HaveOccurred())

			err = memory.Append(ctx, Item{Seq: uint64(len(records) + 1), Packet: p})
			Expect(err).ShouldNot(HaveOccurred())

			p, err = m.Marshal(record.UnregisterGroup{GroupID: "<group>"})
			Expect(err).ShouldNot(HaveOccurred())

			err = memory.Append(ctx, Item{Seq: uint64(len(records) + 2), Packet: p})
			Expect(err).ShouldNot(HaveOccurred())

			state := recoverNew()
			Expect(state.Groups).To(BeEmpty())
			Expect(logger.Messages()).To(ContainElement(
				logging.BufferedLogMessage{
					Message: "log recovery skipped record.UnregisterObject at entry 8: object with ID '<unknown>' is not registered",
				},
			))
		})

		It("rejects a snapshot with an unsupported version", func() {
			state := record.NewState()
			state.MajorVersion = 99

			p, err := record.MarshalState(record.NewMarshaler(), state)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(memory.WriteSnapshot(ctx, 0, p)).To(Succeed())

			log = &Log{Store: memory}
			_, err = log.Recover(ctx)
			Expect(err).To(MatchError("unsupported state version 99.0, expected 1.x"))
		})
	})

	Describe("func Append()", func() {
		It("does not apply a record that can not be written", func() {
			Expect(log.Append(ctx, records[0])).To(Succeed())

			store.AppendFunc = func(context.Context, Item) error {
				return errors.New("<error>")
			}

			err := log.Append(ctx, records[1])
			Expect(err).To(Equal(activation.LogWriteError{Cause: errors.New("<error>")}))

			state, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(state.Objects).To(BeEmpty())
		})

		It("writes a snapshot after the next successful append when a write fails", func() {
			store.AppendFunc = func(context.Context, Item) error {
				return errors.New("<error>")
			}

			err := log.Append(ctx, records[0])
			Expect(err).To(HaveOccurred())

			store.AppendFunc = nil

			err = log.Append(ctx, records[0])
			Expect(err).ShouldNot(HaveOccurred())

			c, err := memory.Load(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Snapshot).NotTo(BeNil())
			Expect(c.SnapshotSeq).To(BeEquivalentTo(1))
			Expect(c.Entries).To(BeEmpty())
		})

		It("reports a failed snapshot without failing the append", func() {
			var failure error
			log.SnapshotInterval = 1
			log.OnSnapshotFailure = func(err activation.SnapshotError) {
				failure = err
			}

			store.WriteSnapshotFunc = func(context.Context, uint64, marshalkit.Packet) error {
				return errors.New("<error>")
			}

			err := log.Append(ctx, records[0])
			Expect(err).ShouldNot(HaveOccurred())
			Expect(failure).To(MatchError("log snapshot failed: <error>"))

			state := recoverNew()
			Expect(state.Groups).To(HaveKey(activation.GroupID("<group>")))
		})

		It("returns the error from the gate without writing the record", func() {
			log.Gate = func() error {
				return activation.ErrShuttingDown
			}

			err := log.Append(ctx, records[0])
			Expect(err).To(Equal(activation.ErrShuttingDown))

			c, err := memory.Load(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Entries).To(BeEmpty())
		})

		It("returns an error if the log is closed", func() {
			Expect(log.Close()).To(Succeed())

			err := log.Append(ctx, records[0])
			Expect(err).To(Equal(ErrClosed))
		})

		It("returns an error without writing a record that is inconsistent with the state", func() {
			err := log.Append(ctx, record.UnregisterGroup{GroupID: "<unknown>"})
			Expect(err).To(Equal(activation.UnknownGroupError{GroupID: "<unknown>"}))

			c, err := memory.Load(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(c.Entries).To(BeEmpty())
		})
	})
})
