package sqlitevec_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/ladleworks/pantry/pkg/vector"
	"github.com/ladleworks/pantry/pkg/vector/sqlitevec"
)

var _ = Describe("Index", func() {
	var (
		ctx context.Context
		idx *sqlitevec.Index
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		idx, err = sqlitevec.NewIndex(sqlitevec.Config{
			DBPath:     ":memory:",
			Table:      "meal_description",
			Dimensions: 2,
		}, zap.NewNop())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(idx.Close()).To(Succeed())
	})

	Describe("NewIndex", func() {
		It("errors when DBPath is empty", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{Table: "t", Dimensions: 2}, zap.NewNop())
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("database path is required"))
		})

		It("errors when the dimension is not specified", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{DBPath: ":memory:", Table: "t"}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})

		It("errors when the table name is missing", func() {
			_, err := sqlitevec.NewIndex(sqlitevec.Config{DBPath: ":memory:", Dimensions: 2}, zap.NewNop())
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Interface compliance", func() {
		It("implements vector.Index", func() {
			var _ vector.Index = (*sqlitevec.Index)(nil)
		})
	})

	Describe("Upsert", func() {
		It("stores an entry", func() {
			Expect(idx.Upsert(ctx, "m1", []float32{1, 0})).To(Succeed())

			size, err := idx.Size(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(1))
		})

		It("replaces on re-insert with the same id", func() {
			Expect(idx.Upsert(ctx, "m1", []float32{1, 0})).To(Succeed())
			Expect(idx.Upsert(ctx, "m1", []float32{0, 1})).To(Succeed())

			size, err := idx.Size(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(1))

			results, err := idx.Query(ctx, []float32{0, 1}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results[0].ID).To(Equal("m1"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-4))
		})

		It("rejects an off-norm vector", func() {
			err := idx.Upsert(ctx, "m1", []float32{3, 4})
			Expect(err).To(BeAssignableToTypeOf(vector.NormError{}))
		})

		It("rejects a mismatched dimension", func() {
			err := idx.Upsert(ctx, "m1", []float32{1, 0, 0})
			Expect(err).To(BeAssignableToTypeOf(vector.DimensionError{}))
		})
	})

	Describe("Query", func() {
		BeforeEach(func() {
			Expect(idx.Upsert(ctx, "m1", []float32{1, 0})).To(Succeed())
			Expect(idx.Upsert(ctx, "m2", []float32{0, 1})).To(Succeed())
		})

		It("returns the nearest entry with cosine score", func() {
			results, err := idx.Query(ctx, []float32{1, 0}, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(1))
			Expect(results[0].ID).To(Equal("m1"))
			Expect(results[0].Score).To(BeNumerically("~", 1.0, 1e-4))
		})

		It("orders results by descending similarity", func() {
			results, err := idx.Query(ctx, []float32{0, 1}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
			Expect(results[0].ID).To(Equal("m2"))
			Expect(results[1].ID).To(Equal("m1"))
		})
	})

	Describe("Remove", func() {
		It("removes an entry", func() {
			Expect(idx.Upsert(ctx, "m1", []float32{1, 0})).To(Succeed())
			Expect(idx.Remove(ctx, "m1")).To(Succeed())

			size, err := idx.Size(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(size).To(Equal(0))
		})

		It("is a no-op for an absent id", func() {
			Expect(idx.Remove(ctx, "missing")).To(Succeed())
		})
	})
})
