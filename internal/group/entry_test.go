package group_test

import (
	"context"
	"errors"
	"time"

	"github.com/dogmatiq/actd/activation"
	"github.com/dogmatiq/actd/internal/group"
	"github.com/dogmatiq/actd/internal/process/processtest"
	"github.com/dogmatiq/actd/internal/record"
	"github.com/dogmatiq/actd/internal/throttle"
	"github.com/dogmatiq/actd/internal/wal"
	"github.com/dogmatiq/dodeca/logging"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("type Entry", func() {
	var (
		ctx      context.Context
		shutdown context.Context
		stop     context.CancelFunc
		log      *wal.Log
		index    *indexStub
		launcher *processtest.Launcher
		inst     *instantiatorStub
		env      *group.Env
		entry    *group.Entry
		gdesc    activation.GroupDescriptor
	)

	const (
		groupID  activation.GroupID  = "<group>"
		objectID activation.ObjectID = "<object>"
	)

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(context.Background(), 5*time.Second)
		DeferCleanup(cancel)

		shutdown, stop = context.WithCancel(context.Background())
		DeferCleanup(stop)

		log = &wal.Log{
			Store:  &wal.MemoryStore{},
			Logger: logging.DiscardLogger{},
		}

		_, err := log.Recover(ctx)
		Expect(err).ShouldNot(HaveOccurred())

		gdesc = activation.GroupDescriptor{
			ClassName:  "<group-class>",
			Properties: map[string]string{"<key>": "<value>"},
		}

		err = log.Append(ctx, record.RegisterGroup{
			GroupID:    groupID,
			Descriptor: gdesc,
		})
		Expect(err).ShouldNot(HaveOccurred())

		index = &indexStub{}
		inst = &instantiatorStub{}
		launcher = &processtest.Launcher{
			OnLaunch: attachTo(
				func() *group.Entry { return entry },
				inst,
			),
		}

		env = &group.Env{
			Log:          log,
			Index:        index,
			Throttle:     throttle.New(0, shutdown),
			Launcher:     launcher,
			Logger:       logging.DiscardLogger{},
			Command:      []string{"/bin/group", "--flag"},
			ExecTimeout:  5 * time.Second,
			GroupTimeout: 5 * time.Second,
			Shutdown:     shutdown,
			Go: func(fn func(context.Context)) {
				go fn(ctx)
			},
		}

		entry = group.New(groupID, gdesc, env)

		err = entry.RegisterObject(
			ctx,
			objectID,
			activation.Descriptor{
				GroupID:   groupID,
				ClassName: "<class>",
			},
		)
		Expect(err).ShouldNot(HaveOccurred())
	})

	AfterEach(func() {
		stop()
		entry.ShutdownFast()
	})

	Describe("func RegisterObject()", func() {
		It("adds the object to the index", func() {
			Expect(index.Len()).To(Equal(1))
		})

		It("writes the registration to the log", func() {
			s, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Objects).To(HaveKeyWithValue(objectID, groupID))
		})

		It("returns an error if the descriptor refers to a different group", func() {
			err := entry.RegisterObject(
				ctx,
				"<other>",
				activation.Descriptor{GroupID: "<other-group>"},
			)
			Expect(err).To(MatchError(activation.InvalidDescriptorError{
				ObjectID: "<other>",
				Reason:   "descriptor contains wrong group",
			}))
			Expect(index.Len()).To(Equal(1))
		})
	})

	Describe("func UnregisterObject()", func() {
		It("removes the object from the index and the log", func() {
			err := entry.UnregisterObject(ctx, objectID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(index.Len()).To(Equal(0))

			s, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Objects).To(BeEmpty())
		})

		It("returns an error if the object is not registered", func() {
			err := entry.UnregisterObject(ctx, "<unknown>")
			Expect(err).To(MatchError(activation.UnknownObjectError{ObjectID: "<unknown>"}))
		})
	})

	Describe("func SetDescriptor()", func() {
		It("returns the previous descriptor", func() {
			old, err := entry.SetDescriptor(
				ctx,
				objectID,
				activation.Descriptor{GroupID: groupID, ClassName: "<new-class>"},
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(old.ClassName).To(Equal("<class>"))

			desc, err := entry.Descriptor(objectID)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(desc.ClassName).To(Equal("<new-class>"))
		})

		It("rejects a descriptor that refers to a different group", func() {
			_, err := entry.SetDescriptor(
				ctx,
				objectID,
				activation.Descriptor{GroupID: "<other-group>"},
			)
			Expect(err).To(MatchError(activation.InvalidDescriptorError{
				ObjectID: objectID,
				Reason:   "descriptor contains wrong group",
			}))
		})
	})

	Describe("func SetGroupDescriptor()", func() {
		It("returns the previous descriptor", func() {
			old, err := entry.SetGroupDescriptor(
				ctx,
				activation.GroupDescriptor{ClassName: "<new-class>"},
			)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(old.ClassName).To(Equal("<group-class>"))

			desc, err := entry.GroupDescriptor()
			Expect(err).ShouldNot(HaveOccurred())
			Expect(desc.ClassName).To(Equal("<new-class>"))
		})
	})

	Describe("func Activate()", func() {
		It("starts a group process and returns the new instance's handle", func() {
			h, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(h).To(Equal(activation.Handle("<object>#1")))

			Expect(launcher.Count()).To(Equal(1))

			p := launcher.Processes()[0]
			Expect(p.Command.Name).To(Equal("Group-0"))
			Expect(p.Command.Argv).To(Equal([]string{
				"/bin/group",
				"-D<key>=<value>",
				"--flag",
			}))

			i := entry.Info()
			Expect(i.Status).To(Equal(group.Normal))
			Expect(i.Incarnation).To(BeEquivalentTo(1))
			Expect(i.Active).To(BeTrue())
			Expect(i.PID).To(Equal(p.PID()))
		})

		It("uses the command environment of the group descriptor", func() {
			gdesc.Command = &activation.CommandEnvironment{
				Path:    "/bin/other",
				Options: []string{"--option"},
				Env:     map[string]string{"<var>": "<value>"},
			}

			_, err := entry.SetGroupDescriptor(ctx, gdesc)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			p := launcher.Processes()[0]
			Expect(p.Command.Argv).To(Equal([]string{
				"/bin/other",
				"--option",
				"-D<key>=<value>",
				"--flag",
			}))
			Expect(p.Command.Env).To(Equal(map[string]string{"<var>": "<value>"}))
		})

		It("records the new incarnation in the log", func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			s, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Groups[groupID].Incarnation).To(BeEquivalentTo(1))
		})

		It("returns the existing handle without contacting the group", func() {
			h1, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			h2, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h2).To(Equal(h1))
			Expect(inst.Calls()).To(Equal(1))
			Expect(launcher.Count()).To(Equal(1))
		})

		It("creates a new instance if force is true", func() {
			h1, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			h2, err := entry.Activate(ctx, objectID, true)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(h2).NotTo(Equal(h1))
			Expect(inst.Calls()).To(Equal(2))
			Expect(launcher.Count()).To(Equal(1))
		})

		It("returns an unwrapped error if the object is not registered", func() {
			_, err := entry.Activate(ctx, "<unknown>", false)
			Expect(err).To(MatchError(activation.UnknownObjectError{ObjectID: "<unknown>"}))
		})

		It("starts a new incarnation if the group process is unreachable", func() {
			inst.NewInstanceFunc = func(
				_ context.Context,
				id activation.ObjectID,
				_ activation.Descriptor,
			) (activation.Handle, error) {
				if inst.Calls() == 1 {
					return nil, activation.ErrUnreachable
				}
				return activation.Handle("<handle>"), nil
			}

			h, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(h).To(Equal(activation.Handle("<handle>")))

			Expect(launcher.Count()).To(Equal(2))
			Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrTerminated))
			Expect(entry.Info().Incarnation).To(BeEquivalentTo(2))
		})

		It("fails after two attempts", func() {
			inst.NewInstanceFunc = func(
				context.Context,
				activation.ObjectID,
				activation.Descriptor,
			) (activation.Handle, error) {
				return nil, activation.ErrUnreachable
			}

			_, err := entry.Activate(ctx, objectID, false)

			var actErr activation.ActivationError
			Expect(errors.As(err, &actErr)).To(BeTrue())
			Expect(actErr.ObjectID).To(Equal(objectID))
			Expect(actErr.Attempts).To(Equal(group.MaxAttempts))
			Expect(err).To(MatchError(activation.ErrUnreachable))
			Expect(inst.Calls()).To(Equal(2))
		})

		It("does not retry an error reported by the object", func() {
			cause := errors.New("<error>")
			inst.NewInstanceFunc = func(
				context.Context,
				activation.ObjectID,
				activation.Descriptor,
			) (activation.Handle, error) {
				return nil, cause
			}

			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).To(MatchError(cause))
			Expect(err).To(BeAssignableToTypeOf(activation.ActivationError{}))
			Expect(err.(activation.ActivationError).Attempts).To(Equal(1))
			Expect(inst.Calls()).To(Equal(1))
		})

		It("retries a remote error without replacing the process", func() {
			inst.NewInstanceFunc = func(
				context.Context,
				activation.ObjectID,
				activation.Descriptor,
			) (activation.Handle, error) {
				if inst.Calls() == 1 {
					return nil, activation.RemoteError{Cause: errors.New("<remote>")}
				}
				return activation.Handle("<handle>"), nil
			}

			h, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(h).To(Equal(activation.Handle("<handle>")))

			Expect(inst.Calls()).To(Equal(2))
			Expect(launcher.Count()).To(Equal(1))
			Expect(launcher.Processes()[0].Done()).ShouldNot(BeClosed())
			Expect(entry.Info().Incarnation).To(BeEquivalentTo(1))
		})

		It("reports the first remote error if both attempts fail", func() {
			first := activation.RemoteError{Cause: errors.New("<first>")}
			second := activation.RemoteError{Cause: errors.New("<second>")}

			inst.NewInstanceFunc = func(
				context.Context,
				activation.ObjectID,
				activation.Descriptor,
			) (activation.Handle, error) {
				if inst.Calls() == 1 {
					return nil, first
				}
				return nil, second
			}

			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).To(MatchError(activation.ActivationError{
				ObjectID: objectID,
				Attempts: group.MaxAttempts,
				Cause:    first,
			}))

			Expect(inst.Calls()).To(Equal(2))
			Expect(launcher.Count()).To(Equal(1))
			Expect(launcher.Processes()[0].Done()).ShouldNot(BeClosed())
		})

		DescribeTable(
			"replaces the process if it no longer serves the object",
			func(cause error) {
				inst.NewInstanceFunc = func(
					context.Context,
					activation.ObjectID,
					activation.Descriptor,
				) (activation.Handle, error) {
					if inst.Calls() == 1 {
						return nil, cause
					}
					return activation.Handle("<handle>"), nil
				}

				h, err := entry.Activate(ctx, objectID, false)
				Expect(err).ShouldNot(HaveOccurred())
				Expect(h).To(Equal(activation.Handle("<handle>")))

				Expect(launcher.Count()).To(Equal(2))
				Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrTerminated))
				Expect(entry.Info().Incarnation).To(BeEquivalentTo(2))
			},
			Entry("inactive group", activation.ErrInactiveGroup),
			Entry("no such object", activation.ErrNoSuchObject),
		)

		It("does not start the process if the exec policy denies it", func() {
			env.Policy = activation.ExecPolicyFunc(
				func(_ activation.GroupDescriptor, argv []string) error {
					return activation.ExecDeniedError{Argv: argv, Reason: "<reason>"}
				},
			)

			_, err := entry.Activate(ctx, objectID, false)

			var denied activation.ExecDeniedError
			Expect(errors.As(err, &denied)).To(BeTrue())
			Expect(denied.Reason).To(Equal("<reason>"))

			Expect(launcher.Count()).To(Equal(0))
			Expect(entry.Info().Incarnation).To(BeEquivalentTo(0))
		})

		It("fails if the process does not attach within the exec timeout", func() {
			env.ExecTimeout = 20 * time.Millisecond
			launcher.OnLaunch = nil

			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).To(MatchError(activation.TimeoutError{GroupID: groupID}))

			p := launcher.Processes()[0]
			Eventually(p.Done()).Should(BeClosed())
			Expect(p.Err()).To(Equal(processtest.ErrTerminated))
		})

		It("fails if the process exits before attaching", func() {
			launcher.OnLaunch = func(p *processtest.Process) {
				go func() {
					<-p.StdinClosed()
					p.Exit(errors.New("<exit>"))
				}()
			}

			_, err := entry.Activate(ctx, objectID, false)

			var spawnErr activation.SpawnError
			Expect(errors.As(err, &spawnErr)).To(BeTrue())
			Expect(spawnErr.GroupID).To(Equal(groupID))

			Eventually(func() int {
				return entry.Info().PID
			}).Should(Equal(0))

			Consistently(launcher.Count).Should(Equal(1))
		})

		It("fails if the daemon is shutting down", func() {
			stop()

			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).To(MatchError(activation.ErrShuttingDown))
			Expect(launcher.Count()).To(Equal(0))
		})
	})

	When("the group process exits unexpectedly", func() {
		const restartID activation.ObjectID = "<restart>"

		BeforeEach(func() {
			err := entry.RegisterObject(
				ctx,
				restartID,
				activation.Descriptor{
					GroupID: groupID,
					Restart: true,
				},
			)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			_, err = entry.Activate(ctx, restartID, false)
			Expect(err).ShouldNot(HaveOccurred())

			launcher.Processes()[0].Exit(errors.New("<crash>"))
		})

		It("reactivates only the objects marked for restart", func() {
			Eventually(launcher.Count).Should(Equal(2))
			Eventually(inst.Calls).Should(Equal(3))
			Consistently(inst.Calls).Should(Equal(3))

			Expect(entry.Info().Incarnation).To(BeEquivalentTo(2))
		})

		It("activates other objects on demand", func() {
			Eventually(inst.Calls).Should(Equal(3))

			h, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(h).To(Equal(activation.Handle("<object>#4")))
		})
	})

	Describe("func ActiveGroup()", func() {
		BeforeEach(func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("succeeds if the same instantiator is already attached", func() {
			err := entry.ActiveGroup(inst, 1)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("returns an error if a different instantiator is attached", func() {
			err := entry.ActiveGroup(&instantiatorStub{}, 1)
			Expect(err).To(MatchError(activation.ErrGroupAlreadyActive))
		})

		It("returns an error if the incarnation is not current", func() {
			err := entry.ActiveGroup(inst, 2)
			Expect(err).To(MatchError(activation.IncarnationError{
				GroupID:     groupID,
				Incarnation: 2,
				Current:     1,
			}))
		})
	})

	Describe("func InactiveGroup()", func() {
		BeforeEach(func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("terminates the process before the group is next used", func() {
			err := entry.InactiveGroup(1, false)
			Expect(err).ShouldNot(HaveOccurred())

			i := entry.Info()
			Expect(i.Status).To(Equal(group.Terminate))
			Expect(i.Active).To(BeFalse())

			_, err = entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrTerminated))
			Expect(launcher.Count()).To(Equal(2))
		})

		It("terminates the process immediately if it crashed", func() {
			err := entry.InactiveGroup(1, true)
			Expect(err).ShouldNot(HaveOccurred())

			Eventually(launcher.Processes()[0].Done()).Should(BeClosed())
		})

		It("returns an error if the incarnation is not current", func() {
			err := entry.InactiveGroup(0, false)
			Expect(err).To(MatchError(activation.IncarnationError{
				GroupID:     groupID,
				Incarnation: 0,
				Current:     1,
			}))
		})
	})

	Describe("func Shutdown()", func() {
		It("terminates the process and waits for it to exit", func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			stop()

			err = entry.Shutdown(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrTerminated))
			Expect(entry.Info()).To(Equal(group.Info{
				Status:      group.Normal,
				Incarnation: 1,
				Objects:     1,
			}))
		})

		It("kills the process if it does not exit within the group timeout", func() {
			env.GroupTimeout = 20 * time.Millisecond
			attach := launcher.OnLaunch
			launcher.OnLaunch = func(p *processtest.Process) {
				p.IgnoreTerminate = true
				attach(p)
			}

			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			stop()

			err = entry.Shutdown(ctx)
			Expect(err).ShouldNot(HaveOccurred())

			Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrKilled))
		})
	})

	Describe("func Unregister()", func() {
		BeforeEach(func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).ShouldNot(HaveOccurred())

			err = entry.Unregister(ctx)
			Expect(err).ShouldNot(HaveOccurred())
		})

		It("kills the process", func() {
			Expect(launcher.Processes()[0].Err()).To(Equal(processtest.ErrKilled))
		})

		It("removes the group's objects from the index", func() {
			Expect(index.Len()).To(Equal(0))

			s, err := log.State(ctx)
			Expect(err).ShouldNot(HaveOccurred())
			Expect(s.Objects).To(BeEmpty())
			Expect(s.Groups).To(BeEmpty())
		})

		It("causes subsequent operations to fail", func() {
			_, err := entry.Activate(ctx, objectID, false)
			Expect(err).To(MatchError(activation.UnknownObjectError{ObjectID: objectID}))

			_, err = entry.GroupDescriptor()
			Expect(err).To(MatchError(activation.UnknownGroupError{GroupID: groupID}))

			err = entry.Unregister(ctx)
			Expect(err).To(MatchError(activation.UnknownGroupError{GroupID: groupID}))
		})
	})
})
