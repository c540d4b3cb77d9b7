// Package functions holds the tool catalog offered to the model and the
// dispatcher that runs the tools it asks for.
package functions

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/room4-2/concierge/logging"
	"github.com/room4-2/concierge/metrics"
	"github.com/room4-2/concierge/notify"
	"github.com/room4-2/concierge/pms"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
	"github.com/tidwall/gjson"
	"google.golang.org/genai"
)

// Spoken replies
const (
	HoldMessage      = "Please hold while I connect you to the front desk."
	NoBookingTicket  = "I couldn't find an active booking for this number, so I can't open a ticket. The front desk can help you directly."
	NoBookingBill    = "No active booking found."
	ServiceTrouble   = "I'm sorry, I couldn't complete that just now. Please try again in a moment."
	maxOrderQuantity = 20
)

// Publisher takes outbound notification events without blocking.
type Publisher interface {
	Publish(notify.Event) bool
}

// Outcome is what the tool calls of one turn decided.
type Outcome struct {
	// Text replaces the model's text when non-empty.
	Text     string
	Transfer bool
	// Executed counts recognised tool calls.
	Executed int
}

// Dispatcher maps tool names to typed handlers.
type Dispatcher struct {
	store      pms.Store
	events     Publisher
	hotelName  string
	staffPhone string
	metrics    *metrics.Metrics
}

// Options configures a Dispatcher. Events and Metrics may be nil.
type Options struct {
	Store      pms.Store
	Events     Publisher
	HotelName  string
	StaffPhone string
	Metrics    *metrics.Metrics
}

// NewDispatcher creates a Dispatcher from opts.
func NewDispatcher(opts Options) *Dispatcher {
	return &Dispatcher{
		store:      opts.Store,
		events:     opts.Events,
		hotelName:  opts.HotelName,
		staffPhone: opts.StaffPhone,
		metrics:    opts.Metrics,
	}
}

type ticketArgs struct {
	IssueType   string `json:"issue_type"`
	Description string `json:"description"`
}

type roomServiceArgs struct {
	Item     string
	Quantity int
}

type transferArgs struct {
	Reason string `json:"reason"`
}

// Dispatch runs every call in order. The last handler that produced text
// wins, except that a transfer always wins with the fixed hold message.
func (d *Dispatcher) Dispatch(ctx context.Context, callID, phone string, calls []*genai.FunctionCall) Outcome {
	var out Outcome
	for _, fc := range calls {
		if fc == nil {
			continue
		}
		log.Info().Str("call", logging.ShortID(callID)).Str("tool", fc.Name).Msg("🔧 Function call")

		var (
			text     string
			transfer bool
			status   = "ok"
		)

		switch fc.Name {
		case CreateMaintenanceTicket:
			var args ticketArgs
			if err := decodeArgs(fc.Args, &args); err != nil {
				status = "bad_args"
				text = ServiceTrouble
				break
			}
			text, status = d.createTicket(ctx, phone, args)

		case CheckBill:
			text, status = d.checkBill(ctx, phone)

		case BookRoomService:
			args := roomServiceArgsFrom(fc.Args)
			if args.Item == "" {
				status = "bad_args"
				text = "Which item from the menu would you like?"
				break
			}
			text, status = d.bookRoomService(ctx, phone, args)

		case TransferCall:
			var args transferArgs
			_ = decodeArgs(fc.Args, &args)
			log.Info().Str("call", logging.ShortID(callID)).Str("reason", args.Reason).Msg("📞 Transfer requested")
			transfer = true

		default:
			log.Warn().Str("call", logging.ShortID(callID)).Str("tool", fc.Name).Msg("⚠️ Unknown function called, ignoring")
			d.metrics.RecordToolCall("unknown", "ignored")
			continue
		}

		d.metrics.RecordToolCall(fc.Name, status)
		out.Executed++
		if transfer {
			out.Transfer = true
		} else if text != "" {
			out.Text = text
		}
	}

	if out.Transfer {
		out.Text = HoldMessage
	}
	return out
}

func (d *Dispatcher) createTicket(ctx context.Context, phone string, args ticketArgs) (string, string) {
	kind := pms.NormalizeTicketType(args.IssueType)
	description := strings.TrimSpace(args.Description)
	if description == "" {
		description = string(kind) + " request"
	}

	id, err := d.store.CreateTicket(ctx, phone, kind, description)
	if errors.Is(err, pms.ErrNotFound) {
		return NoBookingTicket, "not_found"
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ Ticket creation failed")
		return ServiceTrouble, "error"
	}

	if d.staffPhone != "" && d.events != nil {
		room := ""
		if b, err := d.store.GetActiveBooking(ctx, phone); err == nil {
			room = " for room " + b.Room
		}
		d.events.Publish(notify.Event{
			Kind:    notify.KindTicket,
			To:      d.staffPhone,
			Message: fmt.Sprintf("New %s ticket %s%s: %s", kind, id, room, description),
		})
	}

	return fmt.Sprintf("I've opened ticket %s with our %s team. Someone will be with you shortly.",
		id, strings.ToLower(string(kind))), "ok"
}

func (d *Dispatcher) checkBill(ctx context.Context, phone string) (string, string) {
	b, err := d.store.GetActiveBooking(ctx, phone)
	if errors.Is(err, pms.ErrNotFound) {
		return NoBookingBill, "not_found"
	}
	if err != nil {
		log.Error().Err(err).Msg("❌ Bill lookup failed")
		return ServiceTrouble, "error"
	}
	return fmt.Sprintf("Room %s: Current Balance is $%.2f. Includes Room Rate and Taxes.", b.Room, b.Balance), "ok"
}

func (d *Dispatcher) bookRoomService(ctx context.Context, phone string, args roomServiceArgs) (string, string) {
	qty := args.Quantity
	if qty <= 0 {
		qty = 1
	}
	if qty > maxOrderQuantity {
		qty = maxOrderQuantity
	}
	item := args.Item
	order := fmt.Sprintf("%d x %s", qty, item)

	if err := d.store.UpdateGuest(ctx, phone, pms.GuestUpdate{LastOrder: &order}); err != nil {
		// the order itself still goes through
		log.Error().Err(err).Msg("❌ Failed to save last order")
	}

	if d.events != nil {
		d.events.Publish(notify.Event{
			Kind:    notify.KindRoomService,
			To:      phone,
			Message: fmt.Sprintf("%s: your room service order (%s) is confirmed and on its way.", d.hotelName, order),
		})
	}

	if qty == 1 {
		return fmt.Sprintf("Your %s is ordered and will be up shortly.", item), "ok"
	}
	return fmt.Sprintf("Your order of %d %s is confirmed and will be up shortly.", qty, item), "ok"
}

// roomServiceArgsFrom reads the order loosely: the model sends quantities as
// integers, fractions or strings. Anything unreadable counts as one.
func roomServiceArgsFrom(args map[string]any) roomServiceArgs {
	raw, err := sonic.Marshal(args)
	if err != nil {
		return roomServiceArgs{}
	}

	out := roomServiceArgs{Quantity: 1}
	if item := gjson.GetBytes(raw, "item"); item.Type == gjson.String {
		out.Item = strings.TrimSpace(item.Str)
	}

	qty := gjson.GetBytes(raw, "quantity")
	switch qty.Type {
	case gjson.Number:
		out.Quantity = roundQuantity(qty.Num)
	case gjson.String:
		if f, err := strconv.ParseFloat(strings.TrimSpace(qty.Str), 64); err == nil {
			out.Quantity = roundQuantity(f)
		}
	}
	return out
}

func roundQuantity(f float64) int {
	switch {
	case math.IsNaN(f) || f < 1:
		return 1
	case f > maxOrderQuantity:
		return maxOrderQuantity
	}
	return int(math.Round(f))
}

// decodeArgs converts the model's loose argument map into a typed struct.
func decodeArgs(args map[string]any, v any) error {
	if len(args) == 0 {
		return nil
	}
	raw, err := sonic.Marshal(args)
	if err != nil {
		return err
	}
	return sonic.Unmarshal(raw, v)
}
