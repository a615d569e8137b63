package session_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ladleworks/pantry/pkg/session"
)

var _ = Describe("Basket", func() {
	var basket *session.Basket

	BeforeEach(func() {
		basket = session.NewBasket()
	})

	It("adding three then removing one leaves two", func() {
		basket.Add("meal-1", 3)
		basket.Remove("meal-1", 1)
		Expect(basket.Quantity("meal-1")).To(Equal(2))
	})

	It("removing the remaining quantity drops the line", func() {
		basket.Add("meal-1", 2)
		basket.Remove("meal-1", 2)
		Expect(basket.Empty()).To(BeTrue())
	})

	It("removing with no quantity drops the whole line", func() {
		basket.Add("meal-1", 5)
		basket.Remove("meal-1", 0)
		Expect(basket.Quantity("meal-1")).To(BeZero())
	})

	It("removing an absent meal is a no-op", func() {
		basket.Add("meal-1", 1)
		basket.Remove("meal-2", 1)
		Expect(basket.Lines()).To(HaveLen(1))
	})

	It("adjusting to zero removes the line entirely", func() {
		basket.Add("meal-1", 4)
		basket.Adjust("meal-1", 0)
		Expect(basket.Empty()).To(BeTrue())
	})

	It("adjusting sets an absolute quantity", func() {
		basket.Add("meal-1", 1)
		basket.Adjust("meal-1", 7)
		Expect(basket.Quantity("meal-1")).To(Equal(7))
	})

	It("preserves insertion order", func() {
		basket.Add("meal-b", 1)
		basket.Add("meal-a", 1)
		basket.Add("meal-b", 1)

		lines := basket.Lines()
		Expect(lines).To(HaveLen(2))
		Expect(lines[0].MealID).To(Equal("meal-b"))
		Expect(lines[0].Quantity).To(Equal(2))
		Expect(lines[1].MealID).To(Equal("meal-a"))
	})

	It("returns copies of its lines", func() {
		basket.Add("meal-1", 1)
		lines := basket.Lines()
		lines[0].Quantity = 99
		Expect(basket.Quantity("meal-1")).To(Equal(1))
	})
})
