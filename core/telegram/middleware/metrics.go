package middleware

import (
	tele "gopkg.in/telebot.v4"
)

const deliveriesKey = "deliveries"

// deliveries counts what the handlers of one update sent back.
type deliveries struct {
	messages int
	keyboard bool
}

func deliveriesOf(c tele.Context) *deliveries {
	if d, ok := c.Get(deliveriesKey).(*deliveries); ok {
		return d
	}
	d := &deliveries{}
	c.Set(deliveriesKey, d)
	return d
}

func (d *deliveries) add(hasKB bool) {
	d.messages++
	d.keyboard = d.keyboard || hasKB
}

func hasKeyboard(opts []any) bool {
	for _, o := range opts {
		switch v := o.(type) {
		case *tele.SendOptions:
			if v != nil && v.ReplyMarkup != nil {
				return true
			}
		case *tele.ReplyMarkup:
			if v != nil {
				return true
			}
		}
	}
	return false
}

// countingContext counts successful sends and edits made through
// tele.Context. Edits count as responses too.
type countingContext struct{ tele.Context }

func (m countingContext) count(err error, opts []any) error {
	if err == nil {
		deliveriesOf(m.Context).add(hasKeyboard(opts))
	}
	return err
}

func (m countingContext) Send(what any, opts ...any) error {
	return m.count(m.Context.Send(what, opts...), opts)
}

func (m countingContext) Reply(what any, opts ...any) error {
	return m.count(m.Context.Reply(what, opts...), opts)
}

func (m countingContext) Edit(what any, opts ...any) error {
	return m.count(m.Context.Edit(what, opts...), opts)
}

func (m countingContext) EditOrSend(what any, opts ...any) error {
	return m.count(m.Context.EditOrSend(what, opts...), opts)
}

func (m countingContext) EditOrReply(what any, opts ...any) error {
	return m.count(m.Context.EditOrReply(what, opts...), opts)
}

// MessageMetricsMiddleware counts the messages each update produces so the
// handler summary can report them.
func MessageMetricsMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		c.Set(deliveriesKey, &deliveries{})
		return next(countingContext{Context: c})
	}
}

// CountMessage records a message delivered outside tele.Context, such as a
// screen render.
func CountMessage(c tele.Context, hasKB bool) {
	if c != nil {
		deliveriesOf(c).add(hasKB)
	}
}

// GetCounters returns the number of messages sent for the update in c and
// whether any of them carried a keyboard.
func GetCounters(c tele.Context) (int, bool) {
	d, ok := c.Get(deliveriesKey).(*deliveries)
	if !ok {
		return 0, false
	}
	return d.messages, d.keyboard
}
