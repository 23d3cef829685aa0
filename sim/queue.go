// Implements the CheckoutLine, the live FIFO of customers waiting to pay.
// The line is rebuilt every tick from actor state rather than maintained incrementally.

package sim

import (
	"sort"
	"strings"
)

// CheckoutLine is the ordered set of customers standing in the queue column,
// front (closest to the counter) first.
type CheckoutLine struct {
	queue []*Actor
}

// BuildCheckoutLine collects every non-owner actor heading for the register
// whose column equals queueCol, sorted by row so the smallest row is the front.
func BuildCheckoutLine(actors []*Actor, queueCol int) *CheckoutLine {
	cl := &CheckoutLine{}
	for _, a := range actors {
		if a.IsOwner || !a.Active {
			continue
		}
		if a.TargetKind == TargetRegister && a.Pos.Col == queueCol {
			cl.queue = append(cl.queue, a)
		}
	}
	sort.SliceStable(cl.queue, func(i, j int) bool {
		return cl.queue[i].Pos.Row < cl.queue[j].Pos.Row
	})
	return cl
}

// Len returns the number of customers in line.
func (cl *CheckoutLine) Len() int {
	return len(cl.queue)
}

// Peek returns the customer at the front without removing it.
// Returns nil if the line is empty.
func (cl *CheckoutLine) Peek() *Actor {
	if len(cl.queue) == 0 {
		return nil
	}
	return cl.queue[0]
}

// Names returns the customers' names in line order.
func (cl *CheckoutLine) Names() []string {
	names := make([]string, len(cl.queue))
	for i, a := range cl.queue {
		names[i] = a.Name
	}
	return names
}

func (cl *CheckoutLine) String() string {
	return "[" + strings.Join(cl.Names(), " ") + "]"
}
