package transport_test

import (
	"time"

	"code.cloudfoundry.org/devicetest/transport"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("Context", func() {
	It("rejects an invalid diode size", func() {
		_, err := transport.NewContext(transport.WithDiodeSize(0))
		Expect(err).To(HaveOccurred())
	})

	It("rejects an invalid poll interval", func() {
		_, err := transport.NewContext(transport.WithPollInterval(-time.Millisecond))
		Expect(err).To(HaveOccurred())
	})

	It("rejects a nil drop alerter", func() {
		_, err := transport.NewContext(transport.WithDropAlerter(nil))
		Expect(err).To(HaveOccurred())
	})

	It("rejects unknown socket types", func() {
		ctx, err := transport.NewContext()
		Expect(err).ToNot(HaveOccurred())
		defer ctx.Close()

		_, err = ctx.NewSocket(transport.SocketType(42))
		Expect(err).To(MatchError(transport.ErrUnknownSocketType))
	})

	Describe("Close", func() {
		var (
			ctx    *transport.Context
			pull   *transport.Socket
			closed chan error
		)

		BeforeEach(func() {
			var err error
			ctx, err = transport.NewContext()
			Expect(err).ToNot(HaveOccurred())

			pull, err = ctx.NewSocket(transport.Pull)
			Expect(err).ToNot(HaveOccurred())
			Expect(pull.Bind("inproc://close")).To(Succeed())

			closed = make(chan error, 1)
		})

		It("unblocks a pending Recv", func() {
			go func() {
				_, err := pull.Recv()
				closed <- err
			}()

			Consistently(closed).ShouldNot(Receive())
			Expect(ctx.Close()).To(Succeed())
			Eventually(closed).Should(Receive(MatchError(transport.ErrContextTerminated)))
		})

		It("terminates every socket", func() {
			Expect(ctx.Close()).To(Succeed())

			Expect(ctx.Terminated()).To(BeTrue())
			_, err := pull.Poll(time.Millisecond)
			Expect(err).To(MatchError(transport.ErrContextTerminated))
			Expect(pull.Close()).To(MatchError(transport.ErrContextTerminated))
		})

		It("refuses new sockets", func() {
			Expect(ctx.Close()).To(Succeed())

			_, err := ctx.NewSocket(transport.Push)
			Expect(err).To(MatchError(transport.ErrContextTerminated))
		})

		It("is idempotent", func() {
			Expect(ctx.Close()).To(Succeed())
			Expect(ctx.Close()).To(Succeed())
		})
	})
})
