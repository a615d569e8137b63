package keyword_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/ladleworks/pantry/pkg/intent"
	"github.com/ladleworks/pantry/pkg/intent/keyword"
)

var _ = Describe("Interpreter", func() {
	var (
		interp *keyword.Interpreter
		ctx    context.Context
	)

	BeforeEach(func() {
		interp = keyword.NewInterpreter()
		ctx = context.Background()
	})

	It("parses a search", func() {
		got, err := interp.Interpret(ctx, "find something spicy with noodles")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindSearchMeals))
		Expect(got.Query).To(Equal("something spicy with noodles"))
	})

	It("parses add with an explicit quantity", func() {
		got, err := interp.Interpret(ctx, "add 3 meal-42")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindAddItem))
		Expect(got.MealID).To(Equal("meal-42"))
		Expect(got.Quantity).To(Equal(3))
	})

	It("defaults add quantity to one", func() {
		got, err := interp.Interpret(ctx, "add meal-42")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Quantity).To(Equal(1))
	})

	It("parses remove", func() {
		got, err := interp.Interpret(ctx, "remove meal-42")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindRemoveItem))
		Expect(got.MealID).To(Equal("meal-42"))
		Expect(got.Quantity).To(BeZero())
	})

	It("parses remove with a partial quantity", func() {
		got, err := interp.Interpret(ctx, "remove 1 meal-42")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindRemoveItem))
		Expect(got.MealID).To(Equal("meal-42"))
		Expect(got.Quantity).To(Equal(1))
	})

	It("parses set with the to connective", func() {
		got, err := interp.Interpret(ctx, "set meal-42 to 5")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindAdjustQuantity))
		Expect(got.MealID).To(Equal("meal-42"))
		Expect(got.Quantity).To(Equal(5))
	})

	It("parses a substitution", func() {
		got, err := interp.Interpret(ctx, "swap ing-cream for something dairy free")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindSubstitute))
		Expect(got.IngredientID).To(Equal("ing-cream"))
		Expect(got.Query).To(Equal("something dairy free"))
	})

	It("parses checkout and end", func() {
		got, err := interp.Interpret(ctx, "checkout")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindCheckout))

		got, err = interp.Interpret(ctx, "bye")
		Expect(err).NotTo(HaveOccurred())
		Expect(got.Kind).To(Equal(intent.KindEndSession))
	})

	It("rejects utterances with no recognizable verb", func() {
		_, err := interp.Interpret(ctx, "the weather is nice")
		Expect(err).To(BeAssignableToTypeOf(intent.UnrecognizedError{}))
	})

	It("rejects an empty utterance", func() {
		_, err := interp.Interpret(ctx, "   ")
		Expect(err).To(BeAssignableToTypeOf(intent.UnrecognizedError{}))
	})
})
