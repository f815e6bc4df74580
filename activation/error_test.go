package activation_test

import (
	"errors"
	"fmt"

	. "github.com/dogmatiq/actd/activation"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("func IsNotFound()", func() {
	It("returns true for unknown objects", func() {
		err := fmt.Errorf("<context>: %w", UnknownObjectError{ObjectID: "<object>"})
		Expect(IsNotFound(err)).To(BeTrue())
	})

	It("returns true for unknown groups", func() {
		err := SpawnError{
			GroupID: "<group>",
			Cause:   UnknownGroupError{GroupID: "<group>"},
		}
		Expect(IsNotFound(err)).To(BeTrue())
	})

	It("returns false for other errors", func() {
		Expect(IsNotFound(ErrShuttingDown)).To(BeFalse())
		Expect(IsNotFound(nil)).To(BeFalse())
	})
})

var _ = Describe("type ActivationError", func() {
	Describe("func Error()", func() {
		It("includes the number of attempts and the cause", func() {
			err := ActivationError{
				ObjectID: "<object>",
				Attempts: 2,
				Cause:    errors.New("<cause>"),
			}

			Expect(err).To(MatchError("activation of object '<object>' failed after 2 tries: <cause>"))
		})
	})

	Describe("func Unwrap()", func() {
		It("returns the cause", func() {
			err := ActivationError{Cause: ErrUnreachable}
			Expect(errors.Is(err, ErrUnreachable)).To(BeTrue())
		})
	})
})

var _ = Describe("type IncarnationError", func() {
	Describe("func Error()", func() {
		It("includes both incarnations", func() {
			err := IncarnationError{
				GroupID:     "<group>",
				Incarnation: 1,
				Current:     3,
			}

			Expect(err).To(MatchError("invalid incarnation of group '<group>': got 1, current incarnation is 3"))
		})
	})
})

var _ = Describe("type ExecDeniedError", func() {
	Describe("func Error()", func() {
		It("includes the command line", func() {
			err := ExecDeniedError{
				Argv:   []string{"/bin/group", "-v"},
				Reason: "<reason>",
			}

			Expect(err).To(MatchError("exec policy denied command [/bin/group -v]: <reason>"))
		})
	})
})
