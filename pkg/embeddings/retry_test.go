package embeddings_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ladleworks/pantry/pkg/embeddings"
)

// flakyEmbedder fails a fixed number of times before succeeding.
type flakyEmbedder struct {
	failures int
	calls    int
	vec      []float32
}

func (f *flakyEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, errors.New("transient backend failure")
	}
	return f.vec, nil
}

func (f *flakyEmbedder) Close() error { return nil }

var _ = Describe("Retrying", func() {
	It("returns the vector when the first attempt succeeds", func() {
		inner := &flakyEmbedder{vec: []float32{1, 0}}
		r := embeddings.NewRetrying(inner, 3, time.Millisecond)

		vec, err := r.Embed(context.Background(), "pasta")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{1, 0}))
		Expect(inner.calls).To(Equal(1))
	})

	It("retries transient failures until success", func() {
		inner := &flakyEmbedder{failures: 2, vec: []float32{0, 1}}
		r := embeddings.NewRetrying(inner, 3, time.Millisecond)

		vec, err := r.Embed(context.Background(), "rice")
		Expect(err).NotTo(HaveOccurred())
		Expect(vec).To(Equal([]float32{0, 1}))
		Expect(inner.calls).To(Equal(3))
	})

	It("surfaces ErrUnavailable after exhausting attempts", func() {
		inner := &flakyEmbedder{failures: 10}
		r := embeddings.NewRetrying(inner, 2, time.Millisecond)

		_, err := r.Embed(context.Background(), "pasta")
		Expect(err).To(HaveOccurred())
		Expect(errors.Is(err, embeddings.ErrUnavailable)).To(BeTrue())
		Expect(inner.calls).To(Equal(2))
	})

	It("stops immediately when the context is cancelled", func() {
		inner := &flakyEmbedder{failures: 10}
		r := embeddings.NewRetrying(inner, 5, 10*time.Millisecond)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := r.Embed(ctx, "pasta")
		Expect(err).To(MatchError(context.Canceled))
		Expect(inner.calls).To(Equal(1))
	})
})
