//go:build integration

package reporting_test

import (
	"time"

	"github.com/jackc/pgx/v5"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/fleetpulse/fleetpulse/internal/reporting"
	"github.com/fleetpulse/fleetpulse/pkg/api"
)

var _ = Describe("PostgresStore", Ordered, func() {
	var store *reporting.PostgresStore

	BeforeAll(func() {
		m, err := reporting.NewMigrator(databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(m.Close)

		Expect(m.Up()).To(Succeed())
		Expect(m.Up()).To(Succeed(), "re-applying migrations is a no-op")

		version, dirty, err := m.Version()
		Expect(err).NotTo(HaveOccurred())
		Expect(dirty).To(BeFalse())
		Expect(version).To(Equal(uint(1)))

		ctx, cancel := withTimeout()
		defer cancel()
		store, err = reporting.NewPostgresStore(ctx, databaseURL)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)

		for _, r := range []reporting.Report{
			{Hostname: "web-01", OS: "ubuntu", Date: parse("2024-06-01"), Packages: []api.PackageChange{
				{Name: "nginx", OldVersion: "1.18", NewVersion: "1.20"},
				{Name: "libssl", OldVersion: "1.1", NewVersion: "3.0"},
			}},
			{Hostname: "db-01", OS: "centos", Date: parse("2024-06-03"), Packages: []api.PackageChange{
				{Name: "postgresql", OldVersion: "13", NewVersion: "14"},
			}},
			{Hostname: "web-01", OS: "ubuntu", Date: parse("2024-06-05"), Packages: []api.PackageChange{
				{Name: "OpenSSL", OldVersion: "3.0", NewVersion: "3.1"},
			}},
			{Hostname: "web-01", OS: "ubuntu", Date: parse("2024-06-01"), Packages: []api.PackageChange{
				{Name: "my_pkg", OldVersion: "1", NewVersion: "2"},
			}},
		} {
			n, err := store.InsertReport(ctx, r)
			Expect(err).NotTo(HaveOccurred())
			Expect(n).To(Equal(len(r.Packages)))
		}
	})

	It("answers pings", func(ctx SpecContext) {
		Expect(store.Ping(ctx)).To(Succeed())
	})

	It("lists distinct hosts in order", func(ctx SpecContext) {
		Expect(store.ListHosts(ctx)).To(Equal([]string{"db-01", "web-01"}))
	})

	It("returns the newest record per host", func(ctx SpecContext) {
		Expect(store.LastUpdates(ctx)).To(Equal([]api.HostInfo{
			{Hostname: "db-01", OS: "centos", LastUpdate: "2024-06-03"},
			{Hostname: "web-01", OS: "ubuntu", LastUpdate: "2024-06-05"},
		}))
	})

	DescribeTable("History",
		func(ctx SpecContext, filter reporting.HistoryFilter, wantNames []string, wantTotal int) {
			items, total, err := store.History(ctx, "web-01", filter)
			Expect(err).NotTo(HaveOccurred())
			Expect(total).To(Equal(wantTotal))

			names := make([]string, 0, len(items))
			for _, it := range items {
				names = append(names, it.Name)
			}
			Expect(names).To(Equal(wantNames))
		},
		Entry("newest first with id tiebreak", reporting.HistoryFilter{},
			[]string{"OpenSSL", "my_pkg", "libssl", "nginx"}, 4),
		Entry("inclusive dates", reporting.HistoryFilter{DateFrom: parse("2024-06-01"), DateTo: parse("2024-06-01")},
			[]string{"my_pkg", "libssl", "nginx"}, 3),
		Entry("case-insensitive substring", reporting.HistoryFilter{Package: "ssl"},
			[]string{"OpenSSL", "libssl"}, 2),
		Entry("underscore is literal", reporting.HistoryFilter{Package: "y_p"},
			[]string{"my_pkg"}, 1),
		Entry("wildcards are literal", reporting.HistoryFilter{Package: "%"},
			[]string{}, 0),
		Entry("exact os", reporting.HistoryFilter{OS: "debian"},
			[]string{}, 0),
		Entry("page", reporting.HistoryFilter{Limit: 2, Offset: 1},
			[]string{"my_pkg", "libssl"}, 4),
		Entry("offset past the end", reporting.HistoryFilter{Limit: 2, Offset: 10},
			[]string{}, 4),
	)

	It("serves the reporting API", func(ctx SpecContext) {
		result, err := reporting.Seed(ctx, store, reporting.SampleReports(parse("2024-06-15")))
		Expect(err).NotTo(HaveOccurred())
		Expect(result).To(Equal(reporting.SeedResult{Hosts: 5, Packages: 11}))

		items, total, err := store.History(ctx, "web-server-01", reporting.HistoryFilter{Limit: 50})
		Expect(err).NotTo(HaveOccurred())
		Expect(total).To(Equal(2))
		Expect(items).To(HaveEach(HaveField("UpdateDate", "2024-06-15")))
	})

	It("keeps records in the package_updates table", func(ctx SpecContext) {
		conn, err := pgx.Connect(ctx, databaseURL)
		Expect(err).NotTo(HaveOccurred())
		defer conn.Close(ctx)

		var count int
		Expect(conn.QueryRow(ctx, "SELECT count(*) FROM package_updates").Scan(&count)).To(Succeed())
		Expect(count).To(Equal(16))
	})
})

func parse(s string) time.Time {
	t, ok := api.ParseDate(s)
	if !ok {
		panic("bad date " + s)
	}
	return t
}
