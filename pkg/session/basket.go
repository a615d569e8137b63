package session

// Line is one basket entry: a meal and how many of it.
type Line struct {
	MealID   string `json:"meal_id"`
	Quantity int    `json:"quantity"`
}

// Basket is a session's in-progress selection. Lines keep insertion order. A
// basket is owned by exactly one agent and exists only for the session's
// lifetime; it is never persisted while the session is open.
type Basket struct {
	lines []Line
}

func NewBasket() *Basket {
	return &Basket{}
}

// Add increases a line's quantity by delta, creating the line if absent.
// Non-positive deltas are ignored.
func (b *Basket) Add(mealID string, delta int) {
	if delta <= 0 {
		return
	}

	for i := range b.lines {
		if b.lines[i].MealID == mealID {
			b.lines[i].Quantity += delta
			return
		}
	}

	b.lines = append(b.lines, Line{MealID: mealID, Quantity: delta})
}

// Remove decreases a line's quantity by delta, dropping the line when it
// reaches zero. A delta of zero or less removes the whole line. Removing an
// absent meal is a no-op.
func (b *Basket) Remove(mealID string, delta int) {
	for i := range b.lines {
		if b.lines[i].MealID != mealID {
			continue
		}

		if delta > 0 && b.lines[i].Quantity > delta {
			b.lines[i].Quantity -= delta
			return
		}

		b.lines = append(b.lines[:i], b.lines[i+1:]...)
		return
	}
}

// Adjust sets a line's quantity to an absolute value. A target of zero or
// less removes the line; adjusting an absent meal to a positive quantity
// creates the line.
func (b *Basket) Adjust(mealID string, quantity int) {
	if quantity <= 0 {
		b.Remove(mealID, 0)
		return
	}

	for i := range b.lines {
		if b.lines[i].MealID == mealID {
			b.lines[i].Quantity = quantity
			return
		}
	}

	b.lines = append(b.lines, Line{MealID: mealID, Quantity: quantity})
}

// Quantity returns the line quantity for a meal, zero if absent.
func (b *Basket) Quantity(mealID string) int {
	for _, line := range b.lines {
		if line.MealID == mealID {
			return line.Quantity
		}
	}
	return 0
}

// Empty reports whether the basket has no lines.
func (b *Basket) Empty() bool {
	return len(b.lines) == 0
}

// Lines returns a copy of the basket lines in insertion order.
func (b *Basket) Lines() []Line {
	out := make([]Line, len(b.lines))
	copy(out, b.lines)
	return out
}
