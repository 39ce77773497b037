package postgres_test

import (
	"context"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/frahmantamala/creatorpay/internal"
	notifdm "github.com/frahmantamala/creatorpay/internal/core/datamodel/notification"
	"github.com/frahmantamala/creatorpay/internal/notification"
	"github.com/frahmantamala/creatorpay/internal/notification/postgres"
)

func TestNotificationRepository(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Notification Repository Suite")
}

var _ = Describe("NotificationRepository", func() {
	var (
		db   *gorm.DB
		repo *postgres.NotificationRepository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger:         logger.Default.LogMode(logger.Silent),
			TranslateError: true,
		})
		Expect(err).ToNot(HaveOccurred())
		sqlDB, err := db.DB()
		Expect(err).ToNot(HaveOccurred())
		sqlDB.SetMaxOpenConns(1)
		Expect(db.AutoMigrate(&notifdm.Notification{})).To(Succeed())

		repo = postgres.NewNotificationRepository(db)
		ctx = context.Background()
	})

	AfterEach(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})

	create := func(userID string) *notifdm.Notification {
		n := &notifdm.Notification{UserID: userID, Type: notifdm.TypePayoutSent, Title: "Payout sent"}
		Expect(repo.Create(ctx, n)).To(Succeed())
		return n
	}

	It("filters by user and read state", func() {
		first := create("inf-1")
		create("inf-1")
		create("inf-2")

		_, err := repo.MarkRead(ctx, first.ID, "inf-1", time.Now().UTC())
		Expect(err).ToNot(HaveOccurred())

		all, err := repo.List(ctx, notification.ListFilter{UserID: "inf-1"})
		Expect(err).ToNot(HaveOccurred())
		Expect(all).To(HaveLen(2))

		unread, err := repo.List(ctx, notification.ListFilter{UserID: "inf-1", UnreadOnly: true})
		Expect(err).ToNot(HaveOccurred())
		Expect(unread).To(HaveLen(1))
	})

	It("keeps the first read timestamp", func() {
		n := create("inf-1")
		first := time.Now().UTC().Add(-time.Hour).Truncate(time.Second)

		read, err := repo.MarkRead(ctx, n.ID, "inf-1", first)
		Expect(err).ToNot(HaveOccurred())
		Expect(read.ReadAt.Equal(first)).To(BeTrue())

		again, err := repo.MarkRead(ctx, n.ID, "inf-1", time.Now().UTC())
		Expect(err).ToNot(HaveOccurred())
		Expect(again.ReadAt.Equal(first)).To(BeTrue())
	})

	It("hides other users' notifications", func() {
		n := create("inf-1")
		_, err := repo.MarkRead(ctx, n.ID, "inf-2", time.Now().UTC())
		Expect(internal.HasCode(err, internal.ErrCodeNotificationNotFound)).To(BeTrue())
	})
})
