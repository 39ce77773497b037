package notification_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/frahmantamala/creatorpay/internal"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
)

var _ = Describe("Service", func() {
	var (
		repo    *memoryRepository
		service *notification.Service
		ctx     context.Context
		inf     = internal.Actor{ID: "inf-1", Role: internal.RoleInfluencer}
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = &memoryRepository{}
		service = notification.NewService(repo)
		Expect(repo.Create(ctx, &notifdm.Notification{UserID: "inf-1", Type: notifdm.TypePaymentReceived, Title: "Paid", Data: []byte(`{"amount":9500}`)})).To(Succeed())
		Expect(repo.Create(ctx, &notifdm.Notification{UserID: "brand-1", Type: notifdm.TypePaymentConfirmed, Title: "Confirmed"})).To(Succeed())
	})

	It("lists only the actor's notifications with decoded data", func() {
		items, err := service.List(ctx, inf, false, 20, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(items).To(HaveLen(1))
		Expect(items[0].Data).To(HaveKeyWithValue("amount", BeNumerically("==", 9500)))
	})

	It("marks a notification read and filters it from the unread list", func() {
		items, err := service.List(ctx, inf, true, 20, 0)
		Expect(err).ToNot(HaveOccurred())

		read, err := service.MarkRead(ctx, inf, items[0].ID)
		Expect(err).ToNot(HaveOccurred())
		Expect(read.ReadAt).ToNot(BeNil())

		items, err = service.List(ctx, inf, true, 20, 0)
		Expect(err).ToNot(HaveOccurred())
		Expect(items).To(BeEmpty())
	})

	It("does not mark another user's notification", func() {
		_, err := service.MarkRead(ctx, inf, "n-brand-1-payment_confirmed")
		Expect(err).To(HaveOccurred())
	})
})
